// Package memory - хранилище заметок в памяти процесса.
// Используется в тестах и для эфемерных развёртываний; после перезапуска ничего не сохраняется.
package memory

import (
	"FadNote/internal/repo"
	"context"
	"sync"
	"time"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Repository хранит заметки в map под одним мьютексом.
type Repository struct {
	mu    sync.Mutex
	notes map[string]entry
	now   func() time.Time
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

// New создаёт пустое хранилище.
func New(opts ...Option) *Repository {
	r := &Repository{notes: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Name() string { return "memory" }

// lookup возвращает живую запись, попутно удаляя истёкшую. Вызывается под r.mu.
func (r *Repository) lookup(id string) (entry, bool) {
	e, ok := r.notes[id]
	if !ok {
		return entry{}, false
	}
	if repo.Expired(e.expiresAt, r.now()) {
		delete(r.notes, id)
		return entry{}, false
	}
	return e, true
}

func (r *Repository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.lookup(id)
	return ok, nil
}

func (r *Repository) Set(_ context.Context, id string, payload []byte, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lookup(id); ok {
		return repo.ErrAlreadyExists
	}
	r.notes[id] = entry{
		payload:   append([]byte(nil), payload...),
		expiresAt: repo.ExpiresAt(r.now(), ttl),
	}
	return nil
}

func (r *Repository) Get(_ context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(id)
	if !ok {
		return nil, repo.ErrNotFound
	}
	return append([]byte(nil), e.payload...), nil
}

// Take атомарно читает и удаляет заметку.
func (r *Repository) Take(_ context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(id)
	if !ok {
		return nil, repo.ErrNotFound
	}
	delete(r.notes, id)
	return e.payload, nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notes, id)
	return nil
}

// DeleteExpired удаляет все истёкшие записи.
func (r *Repository) DeleteExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, e := range r.notes {
		if repo.Expired(e.expiresAt, now) {
			delete(r.notes, id)
			n++
		}
	}
	return n, nil
}

// Len - количество записей, включая ещё не удалённые истёкшие.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func (r *Repository) Ping(context.Context) error { return nil }

func (r *Repository) Close() error { return nil }
