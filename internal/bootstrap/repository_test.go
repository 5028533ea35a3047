package bootstrap

import (
	"FadNote/internal/config"
	"FadNote/internal/repo"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenRepository_Variants(t *testing.T) {
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	tests := []struct {
		name     string
		cfg      config.Config
		wantName string
	}{
		{"memory", config.Config{StorageType: config.StorageMemory}, "memory"},
		{"filesystem", config.Config{StorageType: config.StorageFilesystem, FSStoragePath: filepath.Join(dir, "notes")}, "filesystem"},
		{"bolt", config.Config{StorageType: config.StorageBolt, BoltPath: filepath.Join(dir, "bolt", "notes.db")}, "bolt"},
		{"sql", config.Config{StorageType: config.StorageSQL, DatabaseDSN: "sqlite:" + filepath.Join(dir, "notes.sqlite")}, "sql"},
		{"redis", config.Config{StorageType: config.StorageRedis, RedisURL: "redis://" + mr.Addr()}, "redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			r, done, err := OpenRepository(ctx, &tt.cfg, zap.NewNop().Sugar())
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, r.Name())

			// хранилище должно быть рабочим
			require.NoError(t, r.Set(ctx, "probe", []byte("x"), time.Minute))
			got, err := r.Get(ctx, "probe")
			require.NoError(t, err)
			assert.Equal(t, "x", string(got))
			assert.NoError(t, r.Ping(ctx))

			require.NoError(t, done())
			// повторный вызов cleanup не должен падать
			assert.NoError(t, done())
		})
	}
}

func TestOpenRepository_UnknownType(t *testing.T) {
	_, _, err := OpenRepository(context.Background(), &config.Config{StorageType: "tape"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

// Доп.кейс: FS_STORAGE_PATH указывает на обычный файл
func TestOpenRepository_FilesystemPathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, _, err := OpenRepository(context.Background(), &config.Config{
		StorageType:   config.StorageFilesystem,
		FSStoragePath: file,
	}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestOpenRepository_SweepableBackends(t *testing.T) {
	dir := t.TempDir()
	r, done, err := OpenRepository(context.Background(), &config.Config{
		StorageType: config.StorageBolt, BoltPath: filepath.Join(dir, "n.db"),
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = done() })

	_, ok := r.(repo.ExpiredDeleter)
	assert.True(t, ok)
}
