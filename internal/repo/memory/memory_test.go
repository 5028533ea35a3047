package memory

import (
	"FadNote/internal/repo"
	"FadNote/internal/repo/repotest"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.NoteRepository { return New() })
}

func TestRepository_Sweep(t *testing.T) {
	repotest.RunSweep(t, func(t *testing.T) repo.NoteRepository { return New() })
}

func TestRepository_ExpiresWithClock(t *testing.T) {
	now := time.Now()
	r := New(WithNow(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "clock", []byte("x"), time.Minute))
	ok, err := r.Exists(ctx, "clock")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, err = r.Get(ctx, "clock")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	// истёкшая запись удалена при чтении, без очистки
	assert.Equal(t, 0, r.Len())
}

func TestRepository_DefaultTTL(t *testing.T) {
	now := time.Now()
	r := New(WithNow(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "def", []byte("x"), 0))
	now = now.Add(repo.DefaultTTL - time.Second)
	ok, _ := r.Exists(ctx, "def")
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, _ = r.Exists(ctx, "def")
	assert.False(t, ok)
}

func TestRepository_SetCopiesPayload(t *testing.T) {
	r := New()
	ctx := context.Background()
	p := []byte("abc")
	require.NoError(t, r.Set(ctx, "copy", p, 0))
	p[0] = 'X'
	got, err := r.Get(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
