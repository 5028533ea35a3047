package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlagSet создаёт новый FlagSet перед каждым вызовом NewConfig,
// чтобы избежать повторной регистрации одних и тех же флагов между тестами.
func resetFlagSet(t *testing.T, args ...string) {
	t.Helper()
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	// подавляем вывод парсера флагов в тестах
	flag.CommandLine.SetOutput(os.Stderr)

	orig := os.Args
	os.Args = append([]string{orig[0]}, args...)
	t.Cleanup(func() { os.Args = orig })
}

// clearEnv обнуляет все переменные, которые читает конфиг.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "STORAGE_TYPE", "FS_STORAGE_PATH", "REDIS_URL", "REDIS_PREFIX", "MONGO_URI",
		"MONGO_DB", "MONGO_COLLECTION", "DATABASE_URI", "BOLT_PATH", "DEFAULT_TTL_SECONDS",
		"MAX_NOTE_BYTES", "SWEEP_INTERVAL", "BACKEND_TIMEOUT", "RATE_LIMIT_PER_MINUTE",
		"CORS_ORIGIN", "BASE_URL", "ENABLE_HTTPS", "CONFIG_FILE", "FADNOTE_URL", "NOTE_TTL_SECONDS",
	} {
		t.Setenv(k, "")
	}
}

func TestNewConfig_DefaultsWhenEnvEmpty(t *testing.T) {
	clearEnv(t)
	resetFlagSet(t)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost:3000", cfg.BaseURL)
	assert.Equal(t, "http://localhost:3000", cfg.ServerURL)
	assert.Equal(t, StorageFilesystem, cfg.StorageType)
	assert.Equal(t, "./data/notes", cfg.FSStoragePath)
	assert.Equal(t, "fadnote:", cfg.RedisPrefix)
	assert.Equal(t, 86400, cfg.DefaultTTL)
	assert.Equal(t, 24*time.Hour, cfg.DefaultTTLDuration())
	assert.Equal(t, 1<<20, cfg.MaxNoteBytes)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 10, cfg.RatePerMinute)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_BaseURLAndHTTPS(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASE_URL", "example.com:443")
	t.Setenv("ENABLE_HTTPS", "true")
	t.Setenv("MAX_NOTE_BYTES", "2048")
	t.Setenv("SWEEP_INTERVAL", "15m")

	resetFlagSet(t)
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "example.com:443", cfg.BaseURL)
	assert.Equal(t, "https://example.com:443", cfg.ServerURL)
	assert.Equal(t, 2048, cfg.MaxNoteBytes)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
}

func TestNewConfig_InvalidBaseURLFallback(t *testing.T) {
	clearEnv(t)
	// Невалидный BASE_URL (со схемой) должен откатиться на localhost:3000
	t.Setenv("BASE_URL", "http://bad:8080")

	resetFlagSet(t)
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost:3000", cfg.BaseURL)
	assert.True(t, strings.HasPrefix(cfg.ServerURL, "http://localhost:3000"))
}

func TestNewConfig_ExplicitServerURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("FADNOTE_URL", "https://notes.example.org/")

	resetFlagSet(t)
	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://notes.example.org", cfg.ServerURL)
}

func TestNewConfig_Precedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "fadnote.yaml")
	yml := "storage_type: bolt\nbolt_path: /tmp/yaml.db\nrate_limit_per_minute: 30\nsweep_interval: 10m\ncors_origin: https://yaml.example\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	// env перекрывает YAML, флаг перекрывает env
	t.Setenv("RATE_LIMIT_PER_MINUTE", "50")
	t.Setenv("STORAGE_TYPE", "memory")

	resetFlagSet(t, "-config", path, "-storage", "sql", "-d", "sqlite:/tmp/x.db")
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, StorageSQL, cfg.StorageType)
	assert.Equal(t, "sqlite:/tmp/x.db", cfg.DatabaseDSN)
	assert.Equal(t, "/tmp/yaml.db", cfg.BoltPath)
	assert.Equal(t, 50, cfg.RatePerMinute)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "https://yaml.example", cfg.CORSOrigin)
}

func TestNewConfig_ConfigFileFromEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_type: redis\nredis_url: redis://localhost:6379/0\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	resetFlagSet(t)
	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageRedis, cfg.StorageType)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_BrokenYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_type: [unterminated"), 0o600))

	resetFlagSet(t, "--config="+path)
	_, err := NewConfig()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{StorageType: StorageMemory}, ""},
		{"redis without url", Config{StorageType: StorageRedis}, "REDIS_URL"},
		{"mongo without uri", Config{StorageType: StorageMongo}, "MONGO_URI"},
		{"sql without dsn", Config{StorageType: StorageSQL}, "DATABASE_URI"},
		{"sql with dsn", Config{StorageType: StorageSQL, DatabaseDSN: "sqlite:x.db"}, ""},
		{"unknown", Config{StorageType: "s3"}, "unknown STORAGE_TYPE"},
		{"negative client ttl", Config{StorageType: StorageMemory, NoteTTLSeconds: -5}, "NOTE_TTL_SECONDS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Warnings(t *testing.T) {
	c := Config{AppEnv: "production", CORSOrigin: "*"}
	assert.True(t, c.IsProduction())
	assert.Len(t, c.Warnings(), 1)

	c.CORSOrigin = "https://fadnote.example"
	assert.Empty(t, c.Warnings())

	dev := Config{CORSOrigin: "*"}
	assert.Empty(t, dev.Warnings())
}
