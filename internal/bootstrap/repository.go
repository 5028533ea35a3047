package bootstrap

import (
	"FadNote/internal/config"
	"FadNote/internal/repo"
	boltrepo "FadNote/internal/repo/bolt"
	fsrepo "FadNote/internal/repo/fs"
	"FadNote/internal/repo/memory"
	mongorepo "FadNote/internal/repo/mongo"
	redisrepo "FadNote/internal/repo/redis"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// OpenRepository открывает хранилище, выбранное в STORAGE_TYPE,
// и возвращает (repo, cleanup, error).
// cleanup необходимо вызвать при остановке сервера, чтобы закрыть соединения и файлы.
func OpenRepository(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (repo.NoteRepository, func() error, error) {
	r, err := open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s storage: %w", cfg.StorageType, err)
	}
	logger.Infow("storage opened", "type", r.Name())

	closed := false
	cleanup := func() error {
		if closed {
			return nil
		}
		closed = true
		return r.Close()
	}
	return r, cleanup, nil
}

func open(ctx context.Context, cfg *config.Config) (repo.NoteRepository, error) {
	switch cfg.StorageType {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageFilesystem:
		return fsrepo.New(cfg.FSStoragePath)
	case config.StorageRedis:
		return redisrepo.Open(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case config.StorageMongo:
		return mongorepo.Open(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
	case config.StorageSQL:
		db, err := repo.InitDB(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return repo.NewSQLRepository(db), nil
	case config.StorageBolt:
		return boltrepo.Open(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}
