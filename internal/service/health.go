package service

import (
	"FadNote/internal/repo"
	"context"
)

// Статусы хранилища в отчёте о здоровье.
const (
	StatusConnected  = "connected"
	StatusAccessible = "accessible"
	StatusError      = "error"
)

// HealthReport - состояние хранилища для GET /health.
type HealthReport struct {
	Backend string
	Status  string
	Detail  string
}

// OK сообщает, что хранилище отвечает.
func (h HealthReport) OK() bool { return h.Status != StatusError }

// Health пингует хранилище с тем же таймаутом, что и обычные операции.
func (s *NoteService) Health(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.backendTimeout)
	defer cancel()

	rep := HealthReport{Backend: s.repo.Name()}
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warnw("storage health check failed", "backend", rep.Backend, "error", err)
		rep.Status = StatusError
		rep.Detail = err.Error()
		return rep
	}
	if rm, ok := s.repo.(repo.Remote); ok && rm.Remote() {
		rep.Status = StatusConnected
	} else {
		rep.Status = StatusAccessible
	}
	return rep
}
