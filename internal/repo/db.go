package repo

import (
	"FadNote/internal/model"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// sqlitePrefix отличает путь к файлу SQLite от DSN Postgres в DATABASE_URI.
const sqlitePrefix = "sqlite:"

// InitDB открывает БД по DSN и выполняет миграции.
// "sqlite:<path>" - SQLite (modernc, без cgo), всё остальное - DSN Postgres.
func InitDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	var dial gorm.Dialector
	if strings.HasPrefix(dsn, sqlitePrefix) {
		dial = gormsqlite.Dialector{DriverName: "sqlite", DSN: strings.TrimPrefix(dsn, sqlitePrefix)}
	} else {
		dial = postgres.Open(dsn)
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate создаёт таблицу заметок и индексы.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Note{}); err != nil {
		return fmt.Errorf("migrate notes: %w", err)
	}
	return nil
}
