package sweeper

import (
	"FadNote/internal/repo/memory"
	"FadNote/internal/repo/redis"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDeleter struct {
	calls   atomic.Int32
	n       int
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeDeleter) DeleteExpired(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.n, f.err
}

func TestSweeper_RemovesExpired(t *testing.T) {
	r := memory.New()
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "old", []byte("x"), -time.Second))
	require.NoError(t, r.Set(ctx, "new", []byte("y"), time.Hour))

	s := ForRepository(r, time.Minute, zap.NewNop().Sugar(), nil)
	require.NotNil(t, s)

	n, ran := s.SweepOnce(ctx)
	assert.True(t, ran)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.Len())
}

func TestSweeper_ForRepositoryWithNativeTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	r := redis.New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = r.Close() })

	assert.Nil(t, ForRepository(r, time.Minute, zap.NewNop().Sugar(), nil))
}

func TestSweeper_FailureDoesNotStopLoop(t *testing.T) {
	f := &fakeDeleter{err: errors.New("io error")}
	s := New(f, 10*time.Millisecond, zap.NewNop().Sugar(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_NotReentrant(t *testing.T) {
	f := &fakeDeleter{n: 2, block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := New(f, time.Hour, zap.NewNop().Sugar(), nil)
	ctx := context.Background()

	first := make(chan int)
	go func() {
		n, _ := s.SweepOnce(ctx)
		first <- n
	}()
	<-f.entered

	n, ran := s.SweepOnce(ctx)
	assert.False(t, ran)
	assert.Zero(t, n)

	close(f.block)
	assert.Equal(t, 2, <-first)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestSweeper_RunsImmediately(t *testing.T) {
	f := &fakeDeleter{}
	s := New(f, time.Hour, zap.NewNop().Sugar(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(&fakeDeleter{}, 0, zap.NewNop().Sugar(), nil)
	assert.Equal(t, DefaultInterval, s.interval)
}

// slowDeleter не смотрит на ctx, как файловое хранилище: проход доходит до конца.
type slowDeleter struct {
	entered  chan struct{}
	release  chan struct{}
	finished atomic.Bool
}

func (d *slowDeleter) DeleteExpired(context.Context) (int, error) {
	d.entered <- struct{}{}
	<-d.release
	d.finished.Store(true)
	return 0, nil
}

func TestSweeper_StopWaitsForRunningPass(t *testing.T) {
	d := &slowDeleter{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(d, time.Hour, zap.NewNop().Sugar(), nil)

	stop := s.Start(context.Background())
	<-d.entered

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a sweep pass was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(d.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the pass finished")
	}
	assert.True(t, d.finished.Load())
}

func TestSweeper_StopAfterParentCancel(t *testing.T) {
	f := &fakeDeleter{}
	s := New(f, time.Hour, zap.NewNop().Sugar(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	stop := s.Start(ctx)
	cancel()
	stop()
	assert.GreaterOrEqual(t, f.calls.Load(), int32(1))
}
