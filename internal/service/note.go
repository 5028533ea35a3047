package service

import (
	"FadNote/internal/metrics"
	"FadNote/internal/noteid"
	"FadNote/internal/repo"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxBytes - предел размера зашифрованной заметки.
	DefaultMaxBytes = 1 << 20
	// DefaultBackendTimeout ограничивает каждое обращение к хранилищу.
	DefaultBackendTimeout = 5 * time.Second

	generateAttempts = 3
	maxTTLSeconds    = int64(365 * 24 * time.Hour / time.Second)
)

// NoteService - жизненный цикл заметки: absent → stored → absent.
// Обновления на месте нет: заметку можно только создать, прочитать один раз или удалить.
type NoteService struct {
	repo    repo.NoteRepository
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	locks   repo.KeyLock

	maxBytes       int
	defaultTTL     time.Duration
	backendTimeout time.Duration
}

// Option настраивает NoteService.
type Option func(*NoteService)

func WithMaxBytes(n int) Option {
	return func(s *NoteService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithDefaultTTL(d time.Duration) Option {
	return func(s *NoteService) {
		if d > 0 {
			s.defaultTTL = d
		}
	}
}

func WithBackendTimeout(d time.Duration) Option {
	return func(s *NoteService) {
		if d > 0 {
			s.backendTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *NoteService) { s.metrics = m }
}

func NewNoteService(r repo.NoteRepository, logger *zap.SugaredLogger, opts ...Option) *NoteService {
	s := &NoteService{
		repo:           r,
		logger:         logger,
		maxBytes:       DefaultMaxBytes,
		defaultTTL:     repo.DefaultTTL,
		backendTimeout: DefaultBackendTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBytes - действующий предел размера заметки.
func (s *NoteService) MaxBytes() int { return s.maxBytes }

// CreateResult - ответ на создание заметки.
type CreateResult struct {
	ID        string
	ExpiresIn int64 // секунды; отрицательное значение - заметка создана уже истёкшей
}

// ParseTTL разбирает TTL в секундах из заголовка. Пустая строка - TTL по умолчанию (0).
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n > maxTTLSeconds || n < -maxTTLSeconds {
		return 0, ErrInvalidTTL
	}
	return time.Duration(n) * time.Second, nil
}

// Create сохраняет payload. Если id пустой, он генерируется; при коллизии генерация повторяется.
// ttl == 0 - TTL по умолчанию.
func (s *NoteService) Create(ctx context.Context, payload []byte, ttl time.Duration, id string) (CreateResult, error) {
	if len(payload) == 0 {
		s.metrics.NoteRejected("empty")
		return CreateResult{}, ErrEmptyPayload
	}
	if len(payload) > s.maxBytes {
		s.metrics.NoteRejected("too_large")
		return CreateResult{}, ErrTooLarge
	}
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	res := CreateResult{ExpiresIn: int64(ttl / time.Second)}

	if id != "" {
		if !noteid.Validate(id) {
			s.metrics.NoteRejected("invalid_id")
			return CreateResult{}, ErrInvalidID
		}
		if err := s.store(ctx, id, payload, ttl); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				s.metrics.NoteRejected("exists")
			}
			return CreateResult{}, err
		}
		res.ID = id
		s.created(id)
		return res, nil
	}

	for i := 0; i < generateAttempts; i++ {
		id = noteid.Generate()
		err := s.store(ctx, id, payload, ttl)
		if errors.Is(err, ErrAlreadyExists) {
			s.logger.Warnw("generated note id collided", "note", noteid.Fingerprint(id), "attempt", i+1)
			continue
		}
		if err != nil {
			return CreateResult{}, err
		}
		res.ID = id
		s.created(id)
		return res, nil
	}
	return CreateResult{}, s.fail("generate", "", fmt.Errorf("no free id after %d attempts", generateAttempts))
}

func (s *NoteService) created(id string) {
	s.metrics.NoteCreated()
	s.logger.Debugw("note stored", "note", noteid.Fingerprint(id))
}

func (s *NoteService) store(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.backendTimeout)
	defer cancel()

	err := s.repo.Set(ctx, id, payload, ttl)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrAlreadyExists):
		return ErrAlreadyExists
	case errors.Is(err, repo.ErrInvalidKey):
		s.metrics.NoteRejected("invalid_id")
		return ErrInvalidID
	default:
		return s.fail("set", id, err)
	}
}

// Consume возвращает payload и удаляет заметку. Второе чтение того же id получает ErrNotFound.
// «Не существовала», «уже прочитана» и «истекла» намеренно не различаются.
func (s *NoteService) Consume(ctx context.Context, id string) ([]byte, error) {
	if !noteid.Validate(id) {
		s.metrics.NoteRejected("invalid_id")
		return nil, ErrInvalidID
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.backendTimeout)
	defer cancel()

	payload, err := s.take(ctx, id)
	switch {
	case err == nil:
		s.metrics.NoteConsumed()
		s.logger.Debugw("note consumed", "note", noteid.Fingerprint(id))
		return payload, nil
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, repo.ErrInvalidKey):
		s.metrics.NoteRejected("not_found")
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

// take использует атомарный Take хранилища, если он есть, иначе Get и Delete под блокировкой id.
// Если удалить не удалось, payload не отдаётся: иначе заметку можно было бы прочитать повторно.
func (s *NoteService) take(ctx context.Context, id string) ([]byte, error) {
	if tk, ok := s.repo.(repo.Taker); ok {
		payload, err := tk.Take(ctx, id)
		if err != nil && !errors.Is(err, repo.ErrNotFound) && !errors.Is(err, repo.ErrInvalidKey) {
			return nil, s.fail("take", id, err)
		}
		return payload, err
	}

	payload, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrInvalidKey) {
			return nil, err
		}
		return nil, s.fail("get", id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, s.fail("delete", id, err)
	}
	return payload, nil
}

// Discard удаляет заметку без чтения. Удаление отсутствующей заметки не ошибка.
func (s *NoteService) Discard(ctx context.Context, id string) error {
	if !noteid.Validate(id) {
		s.metrics.NoteRejected("invalid_id")
		return ErrInvalidID
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.backendTimeout)
	defer cancel()

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.fail("delete", id, err)
	}
	s.logger.Debugw("note discarded", "note", noteid.Fingerprint(id))
	return nil
}

// fail логирует неожиданную ошибку хранилища и приводит её к ErrUnavailable.
func (s *NoteService) fail(op, id string, err error) error {
	s.metrics.BackendError(op)
	fields := []any{"op", op, "backend", s.repo.Name(), "error", err}
	if id != "" {
		fields = append(fields, "note", noteid.Fingerprint(id))
	}
	s.logger.Errorw("storage backend failure", fields...)
	if errors.Is(err, repo.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
