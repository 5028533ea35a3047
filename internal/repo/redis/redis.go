// Package redis - хранилище заметок в Redis. Истечение выполняет сам Redis (EXPIRE),
// поэтому фоновая очистка для этой реализации не нужна.
package redis

import (
	"FadNote/internal/repo"
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix - пространство имён ключей заметок.
const DefaultPrefix = "fadnote:"

// Repository хранит payload под ключом prefix+id с TTL на стороне Redis.
type Repository struct {
	client goredis.UniversalClient
	prefix string
}

var (
	_ repo.NoteRepository = (*Repository)(nil)
	_ repo.Taker          = (*Repository)(nil)
	_ repo.Remote         = (*Repository)(nil)
)

// New оборачивает готовый клиент. Пустой prefix заменяется на DefaultPrefix.
func New(client goredis.UniversalClient, prefix string) *Repository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Repository{client: client, prefix: prefix}
}

// Open разбирает redis:// URL, подключается и проверяет соединение.
func Open(ctx context.Context, url, prefix string) (*Repository, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := New(goredis.NewClient(opts), prefix)
	if err := r.Ping(ctx); err != nil {
		_ = r.client.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Name() string { return "redis" }

func (r *Repository) Remote() bool { return true }

func (r *Repository) key(id string) string { return r.prefix + id }

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Set использует SET NX PX: запись и проверка занятости id выполняются одной командой.
// Заметка с прошедшим сроком не записывается вовсе.
func (r *Repository) Set(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = repo.DefaultTTL
	}
	if ttl < 0 {
		ok, err := r.Exists(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			return repo.ErrAlreadyExists
		}
		return nil
	}
	ok, err := r.client.SetNX(ctx, r.key(id), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repo.ErrAlreadyExists
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Take выполняет GETDEL (Redis >= 6.2).
func (r *Repository) Take(ctx context.Context, id string) ([]byte, error) {
	b, err := r.client.GetDel(ctx, r.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrUnavailable, err)
	}
	return nil
}

func (r *Repository) Close() error { return r.client.Close() }
