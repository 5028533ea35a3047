// Package bolt - встраиваемое хранилище заметок в одном файле bbolt.
// Значение записи: 8 байт срока истечения (unix nano, big-endian) и payload.
package bolt

import (
	"FadNote/internal/repo"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketNotes = []byte("notes")

const expiryLen = 8

// Repository хранит заметки в бакете notes. Все записи выполняются в Update-транзакциях,
// bbolt сериализует их сам, поэтому Set и Take атомарны без дополнительных блокировок.
type Repository struct {
	db       *bbolt.DB
	path     string
	now      func() time.Time
	readOnly bool
}

var (
	_ repo.NoteRepository = (*Repository)(nil)
	_ repo.Taker          = (*Repository)(nil)
	_ repo.ExpiredDeleter = (*Repository)(nil)
)

// Option настраивает Repository.
type Option func(*Repository)

// WithNow подменяет источник времени (для тестов).
func WithNow(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithReadOnly открывает существующий файл только на чтение (разбор инцидентов, резервные копии).
// Записи и ленивое удаление истёкших заметок возвращают ошибку bbolt.
func WithReadOnly() Option {
	return func(r *Repository) { r.readOnly = true }
}

// Open открывает (или создаёт) файл БД и бакет заметок.
func Open(path string, opts ...Option) (*Repository, error) {
	if path == "" {
		return nil, errors.New("bolt path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	r := &Repository{path: path, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second, ReadOnly: r.readOnly})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	if r.readOnly {
		err = db.View(func(tx *bbolt.Tx) error {
			if tx.Bucket(bucketNotes) == nil {
				return errors.New("bucket notes is missing")
			}
			return nil
		})
	} else {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketNotes)
			return err
		})
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	r.db = db
	return r, nil
}

func (r *Repository) Name() string { return "bolt" }

func encode(payload []byte, expiresAt time.Time) []byte {
	v := make([]byte, expiryLen+len(payload))
	binary.BigEndian.PutUint64(v[:expiryLen], uint64(expiresAt.UnixNano()))
	copy(v[expiryLen:], payload)
	return v
}

func decodeExpiry(v []byte) time.Time {
	if len(v) < expiryLen {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v[:expiryLen])))
}

// live возвращает значение, если запись есть и не истекла. Значение валидно только внутри tx.
func (r *Repository) live(b *bbolt.Bucket, id string) []byte {
	v := b.Get([]byte(id))
	if v == nil || len(v) < expiryLen {
		return nil
	}
	if repo.Expired(decodeExpiry(v), r.now()) {
		return nil
	}
	return v
}

func (r *Repository) Exists(_ context.Context, id string) (bool, error) {
	var ok bool
	err := r.db.View(func(tx *bbolt.Tx) error {
		ok = r.live(tx.Bucket(bucketNotes), id) != nil
		return nil
	})
	return ok, err
}

func (r *Repository) Set(_ context.Context, id string, payload []byte, ttl time.Duration) error {
	if id == "" {
		return repo.ErrInvalidKey
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotes)
		if r.live(b, id) != nil {
			return repo.ErrAlreadyExists
		}
		return b.Put([]byte(id), encode(payload, repo.ExpiresAt(r.now(), ttl)))
	})
}

func (r *Repository) Get(_ context.Context, id string) ([]byte, error) {
	var out []byte
	var stale bool
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotes)
		if v := r.live(b, id); v != nil {
			out = append([]byte{}, v[expiryLen:]...)
			return nil
		}
		stale = b.Get([]byte(id)) != nil
		return repo.ErrNotFound
	})
	if stale {
		if derr := r.deleteIfExpired(id); derr != nil {
			return nil, fmt.Errorf("delete expired note: %w", derr)
		}
	}
	return out, err
}

func (r *Repository) deleteIfExpired(id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotes)
		v := b.Get([]byte(id))
		if v != nil && repo.Expired(decodeExpiry(v), r.now()) {
			return b.Delete([]byte(id))
		}
		return nil
	})
}

// Take читает и удаляет запись в одной Update-транзакции. Истёкшая запись удаляется без выдачи.
func (r *Repository) Take(_ context.Context, id string) ([]byte, error) {
	var out []byte
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotes)
		v := b.Get([]byte(id))
		if v == nil {
			return repo.ErrNotFound
		}
		if r.live(b, id) != nil {
			out = append([]byte{}, v[expiryLen:]...)
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, repo.ErrNotFound
	}
	return out, nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNotes).Delete([]byte(id))
	})
}

// DeleteExpired собирает истёкшие ключи курсором и удаляет их в той же транзакции.
func (r *Repository) DeleteExpired(_ context.Context) (int, error) {
	var n int
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotes)
		now := r.now()
		var expired [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if repo.Expired(decodeExpiry(v), now) {
				expired = append(expired, append([]byte{}, k...))
			}
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete %x: %w", k, err)
			}
		}
		n = len(expired)
		return nil
	})
	return n, err
}

// Len возвращает число записей в бакете, включая ещё не удалённые истёкшие.
func (r *Repository) Len() int {
	var n int
	_ = r.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketNotes).Stats().KeyN
		return nil
	})
	return n
}

func (r *Repository) Ping(_ context.Context) error {
	err := r.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketNotes) == nil {
			return errors.New("notes bucket missing")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", repo.ErrUnavailable, err)
	}
	return nil
}

func (r *Repository) Close() error { return r.db.Close() }
