package fs

import (
	"FadNote/internal/repo"
	"FadNote/internal/repo/repotest"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	r, err := New(filepath.Join(t.TempDir(), "notes"), opts...)
	require.NoError(t, err)
	return r
}

func TestRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.NoteRepository { return newTestRepo(t) })
}

func TestRepository_Sweep(t *testing.T) {
	repotest.RunSweep(t, func(t *testing.T) repo.NoteRepository { return newTestRepo(t) })
}

func TestRepository_Layout(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	before := time.Now()

	require.NoError(t, r.Set(ctx, "layout", []byte("blob"), time.Hour))

	b, err := os.ReadFile(filepath.Join(r.Dir(), "layout.enc"))
	require.NoError(t, err)
	assert.Equal(t, "blob", string(b))

	raw, err := os.ReadFile(filepath.Join(r.Dir(), "layout.enc.meta"))
	require.NoError(t, err)
	var m meta
	require.NoError(t, json.Unmarshal(raw, &m))
	exp := time.UnixMilli(m.Expires)
	assert.WithinDuration(t, before.Add(time.Hour), exp, 2*time.Second)

	// временные файлы не остаются
	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, r.Delete(ctx, "layout"))
	entries, err = os.ReadDir(r.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRepository_SanitizesPath(t *testing.T) {
	base := t.TempDir()
	r, err := New(filepath.Join(base, "notes"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "../escape", []byte("x"), time.Hour))

	_, err = os.Stat(filepath.Join(base, "escape.enc"))
	assert.True(t, os.IsNotExist(err), "file must not be written outside storage dir")
	_, err = os.Stat(filepath.Join(r.Dir(), "escape.enc"))
	assert.NoError(t, err)

	err = r.Set(ctx, "../../", []byte("x"), time.Hour)
	assert.ErrorIs(t, err, repo.ErrInvalidKey)
	_, err = r.Get(ctx, "/")
	assert.ErrorIs(t, err, repo.ErrInvalidKey)
}

func TestRepository_LazyExpiryWithClock(t *testing.T) {
	now := time.Now()
	r := newTestRepo(t, WithNow(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "later", []byte("x"), time.Minute))
	got, err := r.Get(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	now = now.Add(2 * time.Minute)
	_, err = r.Get(ctx, "later")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	_, err = os.Stat(filepath.Join(r.Dir(), "later.enc"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(r.Dir(), "later.enc.meta"))
	assert.True(t, os.IsNotExist(err))
}

func TestRepository_PayloadWithoutMetaIsPending(t *testing.T) {
	now := time.Now()
	r := newTestRepo(t, WithNow(func() time.Time { return now }))
	ctx := context.Background()
	path := filepath.Join(r.Dir(), "pending.enc")
	require.NoError(t, os.WriteFile(path, []byte("half"), 0o600))

	// payload без sidecar ещё не опубликован
	_, err := r.Get(ctx, "pending")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.Take(ctx, "pending")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	ok, err := r.Exists(ctx, "pending")
	require.NoError(t, err)
	assert.False(t, ok)

	// id занят, чужой payload не перезаписывается
	err = r.Set(ctx, "pending", []byte("mine"), time.Hour)
	assert.ErrorIs(t, err, repo.ErrAlreadyExists)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "half", string(b))

	n, err := r.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = os.Stat(path)
	require.NoError(t, err, "fresh pending payload must survive a sweep")

	now = now.Add(PendingGrace + time.Minute)
	n, err = r.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "abandoned payload must be reclaimed")
}

func TestRepository_SweepRemovesOrphanMeta(t *testing.T) {
	now := time.Now()
	r := newTestRepo(t, WithNow(func() time.Time { return now }))
	ctx := context.Background()

	m, err := json.Marshal(meta{Expires: now.Add(time.Minute).UnixMilli()})
	require.NoError(t, err)
	path := filepath.Join(r.Dir(), "orphan.enc.meta")
	require.NoError(t, os.WriteFile(path, m, 0o600))

	_, err = r.DeleteExpired(ctx)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err, "unexpired sidecar is kept")

	now = now.Add(2 * time.Minute)
	n, err := r.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Два Repository на одном каталоге ведут себя как два процесса: блокировки по id у них свои.
func TestRepository_SharedDirCollisionKeepsWinner(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	a, err := New(dir)
	require.NoError(t, err)
	b, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	big := bytes.Repeat([]byte("a"), 1<<20)

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("shared-%d", i)
		var errA, errB error
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			errA = a.Set(ctx, id, big, time.Hour)
		}()
		go func() {
			defer wg.Done()
			<-start
			errB = b.Set(ctx, id, []byte("b"), -time.Second)
		}()
		close(start)
		wg.Wait()

		if errA != nil {
			require.ErrorIs(t, errA, repo.ErrAlreadyExists, "round %d", i)
		}
		if errB != nil {
			require.ErrorIs(t, errB, repo.ErrAlreadyExists, "round %d", i)
		}
		require.False(t, errA != nil && errB != nil, "round %d: somebody must win", i)

		got, err := a.Get(ctx, id)
		if errA == nil {
			// A записал последним (или B был отвергнут): его заметка читается целиком
			require.NoError(t, err, "round %d: accepted note must stay readable", i)
			require.True(t, bytes.Equal(big, got), "round %d", i)
		} else {
			// победил B с уже истёкшей заметкой: чужой sidecar не должен её оживить
			require.ErrorIs(t, err, repo.ErrNotFound, "round %d: expired note must stay unreadable", i)
		}
	}
}

func TestRepository_PingFailsWhenDirRemoved(t *testing.T) {
	r := newTestRepo(t)
	require.NoError(t, r.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(r.Dir()))
	err := r.Ping(context.Background())
	assert.ErrorIs(t, err, repo.ErrUnavailable)
}

func TestNew_EmptyDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
