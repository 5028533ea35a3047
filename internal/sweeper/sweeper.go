// Package sweeper периодически удаляет истёкшие заметки у хранилищ без встроенного TTL.
package sweeper

import (
	"FadNote/internal/metrics"
	"FadNote/internal/repo"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval - период очистки по умолчанию.
const DefaultInterval = time.Hour

// Sweeper запускает DeleteExpired сразу при старте и далее по таймеру.
// Проходы не пересекаются: если предыдущий ещё идёт, новый пропускается.
type Sweeper struct {
	target   repo.ExpiredDeleter
	interval time.Duration
	timeout  time.Duration
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics

	running sync.Mutex
}

func New(target repo.ExpiredDeleter, interval time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		timeout:  interval,
		logger:   logger,
		metrics:  m,
	}
}

// ForRepository возвращает Sweeper, если хранилищу нужна внешняя очистка, иначе nil.
func ForRepository(r repo.NoteRepository, interval time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *Sweeper {
	d, ok := r.(repo.ExpiredDeleter)
	if !ok {
		return nil
	}
	return New(d, interval, logger, m)
}

// Run блокируется до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Infow("expiry sweeper started", "interval", s.interval.String())
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// Start запускает Run в отдельной горутине. Возвращённая stop отменяет очистку
// и ждёт окончания текущего прохода: после неё хранилище можно закрывать.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// SweepOnce выполняет один проход. Возвращает число удалённых заметок и false,
// если проход пропущен из-за уже идущего.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, bool) {
	if !s.running.TryLock() {
		s.logger.Debugw("sweep skipped: previous pass still running")
		return 0, false
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.target.DeleteExpired(ctx)
	elapsed := time.Since(start)
	s.metrics.SweepDone(n, elapsed)

	if err != nil {
		// частичный результат тоже учитывается; следующий проход попробует снова
		s.logger.Errorw("expiry sweep failed", "deleted", n, "error", err)
		return n, true
	}
	if n > 0 {
		s.logger.Infow("expired notes removed", "deleted", n, "duration", elapsed.String())
	}
	return n, true
}
