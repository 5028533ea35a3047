package bolt

import (
	"FadNote/internal/repo"
	"FadNote/internal/repo/repotest"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "notes.db"), opts...)
	require.NoError(t, err)
	return r
}

func TestRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.NoteRepository { return newTestRepo(t) })
}

func TestRepository_Sweep(t *testing.T) {
	repotest.RunSweep(t, func(t *testing.T) repo.NoteRepository { return newTestRepo(t) })
}

func TestRepository_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "notes.db")
	ctx := context.Background()

	r, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r.Set(ctx, "persist", []byte("cipher"), time.Hour))
	require.NoError(t, r.Close())

	r, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	got, err := r.Take(ctx, "persist")
	require.NoError(t, err)
	assert.Equal(t, "cipher", string(got))
}

func TestRepository_LazyExpiryWithClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRepo(t, WithNow(func() time.Time { return now }))
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "clock", []byte("x"), time.Minute))
	assert.Equal(t, 1, r.Len())

	now = now.Add(time.Minute)
	_, err := r.Get(ctx, "clock")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestRepository_LazyExpiryDeleteFailureIsReported(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := WithNow(func() time.Time { return now })
	path := filepath.Join(t.TempDir(), "notes.db")
	ctx := context.Background()

	r, err := Open(path, clock)
	require.NoError(t, err)
	require.NoError(t, r.Set(ctx, "stuck", []byte("x"), time.Minute))
	require.NoError(t, r.Close())

	ro, err := Open(path, clock, WithReadOnly())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ro.Close() })

	got, err := ro.Get(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	now = now.Add(time.Minute)
	_, err = ro.Get(ctx, "stuck")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repo.ErrNotFound, "failed cleanup must not look like a clean miss")
	assert.Contains(t, err.Error(), "delete expired note")
}

func TestOpen_ReadOnlyMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.db"), WithReadOnly())
	assert.Error(t, err)
}

func TestRepository_PingAfterClose(t *testing.T) {
	r := newTestRepo(t)
	assert.NoError(t, r.Ping(context.Background()))
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Ping(context.Background()), repo.ErrUnavailable)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
