package repo

import (
	"FadNote/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLRepository - хранилище заметок поверх gorm (Postgres или SQLite).
// Встроенного TTL у БД нет, поэтому истёкшие строки удаляются при чтении и через DeleteExpired.
type SQLRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ NoteRepository = (*SQLRepository)(nil)
	_ Taker          = (*SQLRepository)(nil)
	_ ExpiredDeleter = (*SQLRepository)(nil)
	_ Remote         = (*SQLRepository)(nil)
)

// NewSQLRepository создаёт реализацию хранилища на *gorm.DB.
func NewSQLRepository(db *gorm.DB) *SQLRepository {
	return &SQLRepository{db: db, now: time.Now}
}

func (r *SQLRepository) Name() string { return "sql" }

// Remote - true для Postgres; SQLite работает с локальным файлом.
func (r *SQLRepository) Remote() bool { return r.db.Dialector.Name() == "postgres" }

func (r *SQLRepository) clock() time.Time { return r.now().UTC() }

func (r *SQLRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Note{}).
		Where("id = ? AND expires_at > ?", id, r.clock()).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Set вставляет запись, если id свободен. Истёкшая строка с тем же id сначала удаляется.
func (r *SQLRepository) Set(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	now := r.clock()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND expires_at <= ?", id, now).Delete(&model.Note{}).Error; err != nil {
			return err
		}
		n := &model.Note{ID: id, Payload: payload, CreatedAt: now, ExpiresAt: ExpiresAt(now, ttl)}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(n)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyExists
		}
		return nil
	})
}

func (r *SQLRepository) Get(ctx context.Context, id string) ([]byte, error) {
	now := r.clock()
	var n model.Note
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if Expired(n.ExpiresAt, now) {
		if err := r.db.WithContext(ctx).Where("id = ? AND expires_at <= ?", id, now).Delete(&model.Note{}).Error; err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return n.Payload, nil
}

// Take читает и удаляет строку в одной транзакции. Побеждает тот, чей DELETE затронул строку.
func (r *SQLRepository) Take(ctx context.Context, id string) ([]byte, error) {
	now := r.clock()
	var payload []byte
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND expires_at <= ?", id, now).Delete(&model.Note{}).Error; err != nil {
			return err
		}
		var n model.Note
		if err := tx.Where("id = ?", id).Take(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Note{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		payload = n.Payload
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Note{}).Error
}

// DeleteExpired удаляет все истёкшие строки одним запросом.
func (r *SQLRepository) DeleteExpired(ctx context.Context) (int, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", r.clock()).Delete(&model.Note{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *SQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
