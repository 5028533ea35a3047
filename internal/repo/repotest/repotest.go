// Package repotest содержит общий набор проверок контракта repo.NoteRepository.
// Каждая реализация хранилища прогоняет его в своих тестах.
package repotest

import (
	"FadNote/internal/repo"
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory создаёт новое пустое хранилище для одного подтеста.
type Factory func(t *testing.T) repo.NoteRepository

func open(t *testing.T, f Factory) repo.NoteRepository {
	t.Helper()
	r := f(t)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// Run проверяет базовый контракт: одноразовость, коллизии, истечение, идемпотентное удаление.
func Run(t *testing.T, f Factory) {
	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		r := open(t, f)
		payload := []byte(`{"ciphertext":"AAEC","iv":"AAAA","salt":"BBBB"}`)

		ok, err := r.Exists(ctx, "note-1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, r.Set(ctx, "note-1", payload, time.Hour))

		ok, err = r.Exists(ctx, "note-1")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := r.Get(ctx, "note-1")
		require.NoError(t, err)
		assert.Equal(t, payload, got)

		require.NoError(t, r.Delete(ctx, "note-1"))
		ok, err = r.Exists(ctx, "note-1")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = r.Get(ctx, "note-1")
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("get missing", func(t *testing.T) {
		r := open(t, f)
		_, err := r.Get(ctx, "never-existed")
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		r := open(t, f)
		assert.NoError(t, r.Delete(ctx, "absent"))
		require.NoError(t, r.Set(ctx, "twice", []byte("x"), time.Hour))
		assert.NoError(t, r.Delete(ctx, "twice"))
		assert.NoError(t, r.Delete(ctx, "twice"))
	})

	t.Run("collision keeps original", func(t *testing.T) {
		r := open(t, f)
		require.NoError(t, r.Set(ctx, "dup", []byte("first"), time.Hour))
		err := r.Set(ctx, "dup", []byte("second"), time.Hour)
		assert.ErrorIs(t, err, repo.ErrAlreadyExists)

		got, err := r.Get(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, "first", string(got))
	})

	t.Run("past expiry is absent without sweep", func(t *testing.T) {
		r := open(t, f)
		require.NoError(t, r.Set(ctx, "expired", []byte("stale"), -time.Second))

		_, err := r.Get(ctx, "expired")
		assert.ErrorIs(t, err, repo.ErrNotFound)
		ok, err := r.Exists(ctx, "expired")
		require.NoError(t, err)
		assert.False(t, ok)

		// истёкший id снова свободен
		require.NoError(t, r.Set(ctx, "expired", []byte("fresh"), time.Hour))
		got, err := r.Get(ctx, "expired")
		require.NoError(t, err)
		assert.Equal(t, "fresh", string(got))
	})

	t.Run("binary payload up to 1MiB", func(t *testing.T) {
		r := open(t, f)
		payload := make([]byte, 1<<20)
		_, err := rand.Read(payload)
		require.NoError(t, err)

		require.NoError(t, r.Set(ctx, "big", payload, time.Hour))
		got, err := r.Get(ctx, "big")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payload, got))
	})

	t.Run("concurrent set single winner", func(t *testing.T) {
		r := open(t, f)
		const n = 16
		var wins, collisions atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := r.Set(ctx, "race", []byte(fmt.Sprintf("writer-%d", i)), time.Hour)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, repo.ErrAlreadyExists):
					collisions.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(n-1), collisions.Load())
	})

	t.Run("ping", func(t *testing.T) {
		r := open(t, f)
		assert.NoError(t, r.Ping(ctx))
		assert.NotEmpty(t, r.Name())
	})

	t.Run("take", func(t *testing.T) {
		r := open(t, f)
		tk, ok := r.(repo.Taker)
		if !ok {
			t.Skip("backend has no atomic take")
		}
		require.NoError(t, r.Set(ctx, "once", []byte("payload"), time.Hour))

		got, err := tk.Take(ctx, "once")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(got))

		_, err = tk.Take(ctx, "once")
		assert.ErrorIs(t, err, repo.ErrNotFound)
		ok, err = r.Exists(ctx, "once")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, r.Set(ctx, "stale", []byte("x"), -time.Second))
		_, err = tk.Take(ctx, "stale")
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("concurrent take single reader", func(t *testing.T) {
		r := open(t, f)
		tk, ok := r.(repo.Taker)
		if !ok {
			t.Skip("backend has no atomic take")
		}
		require.NoError(t, r.Set(ctx, "contested", []byte("secret"), time.Hour))

		const n = 16
		var reads, misses atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := tk.Take(ctx, "contested")
				switch {
				case err == nil:
					assert.Equal(t, "secret", string(got))
					reads.Add(1)
				case errors.Is(err, repo.ErrNotFound):
					misses.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), reads.Load())
		assert.Equal(t, int32(n-1), misses.Load())
	})
}

// RunSweep проверяет DeleteExpired: из N истёкших и M живых удаляются ровно N.
func RunSweep(t *testing.T, f Factory) {
	ctx := context.Background()
	r := open(t, f)
	d, ok := r.(repo.ExpiredDeleter)
	require.True(t, ok, "backend must implement repo.ExpiredDeleter")

	const expired, alive = 5, 3
	for i := 0; i < expired; i++ {
		require.NoError(t, r.Set(ctx, fmt.Sprintf("old-%d", i), []byte("old"), -time.Second))
	}
	for i := 0; i < alive; i++ {
		require.NoError(t, r.Set(ctx, fmt.Sprintf("live-%d", i), []byte("live"), time.Hour))
	}

	n, err := d.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, expired, n)

	for i := 0; i < alive; i++ {
		ok, err := r.Exists(ctx, fmt.Sprintf("live-%d", i))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	n, err = d.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// очистка уже удалённого id - не ошибка
	require.NoError(t, r.Delete(ctx, "live-0"))
	n, err = d.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
