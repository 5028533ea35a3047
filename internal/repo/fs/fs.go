// Package fs - файловое хранилище заметок.
//
// На каждую заметку приходится два файла в одном каталоге:
//
//	<id>.enc       - зашифрованный payload как есть
//	<id>.enc.meta  - {"expires": <unix ms>}
//
// Имена строятся только из очищенного id. Встроенного TTL нет: истёкшие заметки
// удаляются при чтении и периодической очисткой (DeleteExpired).
//
// Каталог может делить несколько процессов, поэтому владение id передаётся только
// атомарными операциями файловой системы:
//   - Set захватывает id через os.Link payload и лишь затем пишет sidecar;
//   - payload без sidecar ещё публикуется и читателям не виден;
//   - payload удаляет только тот, кто забрал sidecar переименованием.
package fs

import (
	"FadNote/internal/noteid"
	"FadNote/internal/repo"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	payloadExt = ".enc"
	metaExt    = ".meta"
	tmpPattern = ".note-*.tmp"

	// PendingGrace - сколько payload может жить без sidecar, прежде чем очистка
	// сочтёт его брошенным (процесс упал между захватом id и записью sidecar).
	PendingGrace = time.Minute
)

type meta struct {
	Expires int64 `json:"expires"`
}

func (m meta) expired(now time.Time) bool {
	return repo.Expired(time.UnixMilli(m.Expires), now)
}

// Repository хранит заметки в каталоге dir.
type Repository struct {
	dir   string
	locks repo.KeyLock
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

// New создаёт каталог (если нужно) и возвращает хранилище.
func New(dir string, opts ...Option) (*Repository, error) {
	if dir == "" {
		return nil, errors.New("empty storage directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	r := &Repository{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Repository) Name() string { return "filesystem" }

// Dir - каталог хранилища.
func (r *Repository) Dir() string { return r.dir }

// key очищает id независимо от проверки на уровне сервиса.
func key(id string) (string, error) {
	k := noteid.Sanitize(id)
	if k == "" {
		return "", repo.ErrInvalidKey
	}
	return k, nil
}

func (r *Repository) payloadPath(k string) string {
	return filepath.Join(r.dir, k+payloadExt)
}

func (r *Repository) metaPath(k string) string {
	return r.payloadPath(k) + metaExt
}

// readMeta читает sidecar. ok == false, если файла нет или он нечитаем.
func readMeta(path string) (meta, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return meta{}, false
	}
	var m meta
	if err := json.Unmarshal(b, &m); err != nil {
		return meta{}, false
	}
	return m, true
}

// claimMeta переносит sidecar под уникальное имя. Из нескольких претендентов
// rename удаётся одному; он и отвечает за payload. Возвращает путь захваченного файла.
func (r *Repository) claimMeta(k string) (string, error) {
	claimed, err := claimPath(r.dir)
	if err != nil {
		return "", err
	}
	if err := os.Rename(r.metaPath(k), claimed); err != nil {
		return "", err
	}
	return claimed, nil
}

// removeExpired удаляет заметку, если её sidecar всё ещё просрочен.
// Вызывается под блокировкой k.
func (r *Repository) removeExpired(k string) (bool, error) {
	claimed, err := r.claimMeta(k)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() { _ = os.Remove(claimed) }()

	m, _ := readMeta(claimed)
	if !m.expired(r.now()) {
		// sidecar успели заменить новой заметкой: возвращаем на место
		if err := os.Link(claimed, r.metaPath(k)); err != nil && !errors.Is(err, os.ErrExist) {
			return false, err
		}
		return false, nil
	}
	if err := os.Remove(r.payloadPath(k)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// live сообщает, есть ли опубликованная непросроченная заметка; истёкшую удаляет.
// Вызывается под блокировкой k.
func (r *Repository) live(k string) (bool, error) {
	if _, err := os.Stat(r.payloadPath(k)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	m, ok := readMeta(r.metaPath(k))
	if !ok {
		return false, nil
	}
	if m.expired(r.now()) {
		_, err := r.removeExpired(k)
		return false, err
	}
	return true, nil
}

func (r *Repository) Exists(_ context.Context, id string) (bool, error) {
	k, err := key(id)
	if err != nil {
		return false, err
	}
	unlock := r.locks.Lock(k)
	defer unlock()
	return r.live(k)
}

// Set захватывает id через os.Link: ссылка на уже существующее имя не создаётся,
// поэтому проигравший писатель не трогает файлы победителя. Sidecar пишется
// только после захвата.
func (r *Repository) Set(_ context.Context, id string, payload []byte, ttl time.Duration) error {
	k, err := key(id)
	if err != nil {
		return err
	}
	unlock := r.locks.Lock(k)
	defer unlock()

	ok, err := r.live(k)
	if err != nil {
		return err
	}
	if ok {
		return repo.ErrAlreadyExists
	}

	m, err := json.Marshal(meta{Expires: repo.ExpiresAt(r.now(), ttl).UnixMilli()})
	if err != nil {
		return err
	}

	tmp, err := writeTemp(r.dir, payload)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	if err := os.Link(tmp, r.payloadPath(k)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return repo.ErrAlreadyExists
		}
		return err
	}
	if err := writeFile(r.dir, r.metaPath(k), m); err != nil {
		_ = os.Remove(r.payloadPath(k))
		return err
	}
	return nil
}

func (r *Repository) Get(_ context.Context, id string) ([]byte, error) {
	k, err := key(id)
	if err != nil {
		return nil, err
	}
	unlock := r.locks.Lock(k)
	defer unlock()

	m, ok := readMeta(r.metaPath(k))
	if !ok {
		return nil, repo.ErrNotFound
	}
	if m.expired(r.now()) {
		if _, err := r.removeExpired(k); err != nil {
			return nil, err
		}
		return nil, repo.ErrNotFound
	}
	b, err := os.ReadFile(r.payloadPath(k))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// Take забирает sidecar, затем payload переименованием: из нескольких процессов
// заметку получает только тот, чей rename sidecar прошёл первым.
func (r *Repository) Take(_ context.Context, id string) ([]byte, error) {
	k, err := key(id)
	if err != nil {
		return nil, err
	}
	unlock := r.locks.Lock(k)
	defer unlock()

	claimedMeta, err := r.claimMeta(k)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = os.Remove(claimedMeta) }()

	claimed, err := claimPath(r.dir)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(r.payloadPath(k), claimed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = os.Remove(claimed) }()

	if m, ok := readMeta(claimedMeta); !ok || m.expired(r.now()) {
		return nil, repo.ErrNotFound
	}
	return os.ReadFile(claimed)
}

// Delete удаляет заметку. Payload без sidecar (ещё публикуется) не трогается.
func (r *Repository) Delete(_ context.Context, id string) error {
	k, err := key(id)
	if err != nil {
		return err
	}
	unlock := r.locks.Lock(k)
	defer unlock()

	claimed, err := r.claimMeta(k)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = os.Remove(claimed) }()
	if err := os.Remove(r.payloadPath(k)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DeleteExpired обходит каталог и удаляет истёкшие заметки, брошенные payload
// без sidecar и sidecar без payload. Считаются только истёкшие заметки.
// Ошибки по отдельным файлам собираются, обход продолжается.
func (r *Repository) DeleteExpired(_ context.Context) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, err
	}
	var errs []error
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		var (
			deleted bool
			k       string
		)
		switch {
		case strings.HasSuffix(name, payloadExt):
			k = strings.TrimSuffix(name, payloadExt)
			deleted, err = r.sweepNote(k)
		case strings.HasSuffix(name, payloadExt+metaExt):
			k = strings.TrimSuffix(name, payloadExt+metaExt)
			err = r.sweepOrphanMeta(k)
		default:
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", noteid.Fingerprint(k), err))
			continue
		}
		if deleted {
			n++
		}
	}
	return n, errors.Join(errs...)
}

func (r *Repository) sweepNote(k string) (bool, error) {
	unlock := r.locks.Lock(k)
	defer unlock()

	m, ok := readMeta(r.metaPath(k))
	if ok {
		if !m.expired(r.now()) {
			return false, nil
		}
		return r.removeExpired(k)
	}
	st, err := os.Stat(r.payloadPath(k))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if r.now().Sub(st.ModTime()) < PendingGrace {
		return false, nil
	}
	if err := os.Remove(r.payloadPath(k)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	return false, nil
}

// sweepOrphanMeta убирает истёкший sidecar, payload которого уже нет.
func (r *Repository) sweepOrphanMeta(k string) error {
	unlock := r.locks.Lock(k)
	defer unlock()

	if _, err := os.Stat(r.payloadPath(k)); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	m, ok := readMeta(r.metaPath(k))
	if ok && !m.expired(r.now()) {
		return nil
	}
	_, err := r.removeExpired(k)
	return err
}

// Ping проверяет, что каталог существует и доступен на запись.
func (r *Repository) Ping(context.Context) error {
	st, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", repo.ErrUnavailable, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", repo.ErrUnavailable, r.dir)
	}
	f, err := os.CreateTemp(r.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("%w: %v", repo.ErrUnavailable, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func (r *Repository) Close() error { return nil }
