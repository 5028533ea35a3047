package repo

import (
	"context"
	"time"
)

// DefaultTTL - время жизни заметки, если вызывающий не указал своё.
const DefaultTTL = 24 * time.Hour

// NoteRepository - общий контракт хранилища зашифрованных заметок.
// Хранилище не разбирает содержимое: payload для него непрозрачный набор байт.
type NoteRepository interface {
	// Exists сообщает, занят ли id непросроченной заметкой.
	Exists(ctx context.Context, id string) (bool, error)

	// Set сохраняет payload под id. Если id занят - ErrAlreadyExists.
	// ttl == 0 означает DefaultTTL, отрицательный ttl - заметка сразу считается истёкшей.
	Set(ctx context.Context, id string, payload []byte, ttl time.Duration) error

	// Get возвращает payload или ErrNotFound. Истёкшая заметка считается отсутствующей
	// и удаляется при чтении, даже если очистка ещё не запускалась.
	Get(ctx context.Context, id string) ([]byte, error)

	// Delete идемпотентно удаляет заметку; удаление отсутствующего id - не ошибка.
	Delete(ctx context.Context, id string) error

	// Ping проверяет доступность хранилища. Возвращает ошибку, обёрнутую в ErrUnavailable.
	Ping(ctx context.Context) error

	// Name - короткое имя реализации (memory, filesystem, redis ...).
	Name() string

	// Close освобождает ресурсы реализации (соединения, файлы БД).
	Close() error
}

// Taker реализуют хранилища с атомарной операцией «прочитать и удалить».
// Если два вызова Take конкурируют за один id, payload получает ровно один из них.
type Taker interface {
	Take(ctx context.Context, id string) ([]byte, error)
}

// ExpiredDeleter реализуют хранилища без встроенного TTL.
// DeleteExpired удаляет все истёкшие заметки и возвращает их количество.
// Ошибка по одной заметке не прерывает проход.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// Remote реализуют хранилища, работающие через сетевое соединение.
type Remote interface {
	Remote() bool
}

// ExpiresAt переводит ttl в абсолютный момент истечения относительно now.
func ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return now.Add(ttl)
}

// Expired сообщает, истекла ли заметка с указанным моментом истечения.
// Нулевой момент означает «без срока».
func Expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
