package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Поддерживаемые значения STORAGE_TYPE.
const (
	StorageMemory     = "memory"
	StorageFilesystem = "filesystem"
	StorageRedis      = "redis"
	StorageMongo      = "mongo"
	StorageSQL        = "sql"
	StorageBolt       = "bolt"
)

const (
	defaultBaseURL       = "localhost:3000"
	defaultFSPath        = "./data/notes"
	defaultBoltPath      = "./data/notes.db"
	defaultRedisPrefix   = "fadnote:"
	defaultMongoDB       = "fadnote"
	defaultMongoColl     = "notes"
	defaultTTLSeconds    = 86400
	defaultMaxNoteBytes  = 1 << 20
	defaultSweepInterval = time.Hour
	defaultBackendTO     = 5 * time.Second
	defaultRatePerMinute = 10
	defaultCORSOrigin    = "*"
)

var hostPortRe = regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)

type Config struct {
	// Server-side settings
	AppEnv          string        `env:"APP_ENV" yaml:"app_env"`
	StorageType     string        `env:"STORAGE_TYPE" yaml:"storage_type"`
	FSStoragePath   string        `env:"FS_STORAGE_PATH" yaml:"fs_storage_path"`
	RedisURL        string        `env:"REDIS_URL" yaml:"redis_url"`
	RedisPrefix     string        `env:"REDIS_PREFIX" yaml:"redis_prefix"`
	MongoURI        string        `env:"MONGO_URI" yaml:"mongo_uri"`
	MongoDB         string        `env:"MONGO_DB" yaml:"mongo_db"`
	MongoCollection string        `env:"MONGO_COLLECTION" yaml:"mongo_collection"`
	DatabaseDSN     string        `env:"DATABASE_URI" yaml:"database_uri"`
	BoltPath        string        `env:"BOLT_PATH" yaml:"bolt_path"`
	DefaultTTL      int           `env:"DEFAULT_TTL_SECONDS" yaml:"default_ttl_seconds"`
	MaxNoteBytes    int           `env:"MAX_NOTE_BYTES" yaml:"max_note_bytes"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" yaml:"sweep_interval"`
	BackendTimeout  time.Duration `env:"BACKEND_TIMEOUT" yaml:"backend_timeout"`
	RatePerMinute   int           `env:"RATE_LIMIT_PER_MINUTE" yaml:"rate_limit_per_minute"`
	CORSOrigin      string        `env:"CORS_ORIGIN" yaml:"cors_origin"`

	// Shared settings
	BaseURL     string `env:"BASE_URL" yaml:"base_url"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS" yaml:"enable_https"`
	ConfigFile  string `env:"CONFIG_FILE" yaml:"-"`

	// Client-side settings
	ServerURL      string `env:"FADNOTE_URL" yaml:"fadnote_url"`
	NoteTTLSeconds int    `env:"NOTE_TTL_SECONDS" yaml:"note_ttl_seconds"`
	Version        bool   `env:"-" yaml:"-"` // show client version and exit (flag only)
}

// NewConfig собирает конфигурацию: значения по умолчанию < YAML < окружение (.env) < флаги.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	path := configFileArg(os.Args[1:])
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ConfigFile = path

	// флаги переопределяют env только если заданы явно
	flag.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "path to YAML config file")
	// Server flags
	flag.StringVar(&cfg.StorageType, "storage", cfg.StorageType, "storage backend: memory|filesystem|redis|mongo|sql|bolt")
	flag.StringVar(&cfg.FSStoragePath, "fs-path", cfg.FSStoragePath, "directory for filesystem storage")
	flag.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis connection URL")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "mongodb connection URI")
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "строка подключения к БД (postgres DSN или sqlite:<path>)")
	flag.StringVar(&cfg.BoltPath, "bolt-path", cfg.BoltPath, "path to bolt database file")
	flag.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "interval between expiry sweeps")
	// Shared/client flags
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "address of the FadNote server (host:port)")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "enable HTTPS (client: prefer https scheme for BaseURL)")
	// Client flags
	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "full server URL for the client, overrides base-url")
	flag.IntVar(&cfg.NoteTTLSeconds, "ttl", cfg.NoteTTLSeconds, "note lifetime in seconds (client)")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show client version and exit")

	flag.Parse()

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// configFileArg находит -config до разбора остальных флагов: YAML должен лечь под env.
func configFileArg(args []string) string {
	for i, a := range args {
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "-config="):
			return strings.TrimPrefix(a, "-config=")
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}

func (c *Config) applyDefaults() {
	// validate BaseURL: must be in "address:port" (no scheme, no path). Otherwise use default.
	if !hostPortRe.MatchString(c.BaseURL) {
		c.BaseURL = defaultBaseURL
	}
	if c.ServerURL == "" {
		if c.EnableHTTPS {
			c.ServerURL = "https://" + c.BaseURL
		} else {
			c.ServerURL = "http://" + c.BaseURL
		}
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")

	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))
	if c.StorageType == "" {
		c.StorageType = StorageFilesystem
	}
	if c.FSStoragePath == "" {
		c.FSStoragePath = defaultFSPath
	}
	if c.BoltPath == "" {
		c.BoltPath = defaultBoltPath
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = defaultRedisPrefix
	}
	if c.MongoDB == "" {
		c.MongoDB = defaultMongoDB
	}
	if c.MongoCollection == "" {
		c.MongoCollection = defaultMongoColl
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultTTLSeconds
	}
	if c.MaxNoteBytes <= 0 {
		c.MaxNoteBytes = defaultMaxNoteBytes
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = defaultBackendTO
	}
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = defaultRatePerMinute
	}
	if c.CORSOrigin == "" {
		c.CORSOrigin = defaultCORSOrigin
	}
}

// IsProduction сообщает, запущен ли сервер в боевом окружении.
func (c *Config) IsProduction() bool { return strings.EqualFold(c.AppEnv, "production") }

// DefaultTTLDuration - TTL по умолчанию как time.Duration.
func (c *Config) DefaultTTLDuration() time.Duration {
	return time.Duration(c.DefaultTTL) * time.Second
}

// Validate проверяет, что для выбранного хранилища заданы обязательные параметры.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageType {
	case StorageMemory, StorageFilesystem, StorageBolt:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for redis storage"))
		}
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for mongo storage"))
		}
	case StorageSQL:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_URI is required for sql storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_TYPE %q", c.StorageType))
	}
	if c.NoteTTLSeconds < 0 {
		errs = append(errs, errors.New("NOTE_TTL_SECONDS must not be negative"))
	}
	return errors.Join(errs...)
}

// Warnings - допустимые, но сомнительные настройки; сервер выводит их в лог при старте.
func (c *Config) Warnings() []string {
	var w []string
	if c.IsProduction() && c.CORSOrigin == "*" {
		w = append(w, "CORS_ORIGIN is '*' in production; set it to the web client origin")
	}
	return w
}
