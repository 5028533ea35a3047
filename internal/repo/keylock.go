package repo

import (
	"hash/fnv"
	"sync"
)

const keyLockStripes = 256

// KeyLock - набор мьютексов, распределённых по хешу ключа.
// Операции над одним id сериализуются, разные id почти никогда не блокируют друг друга.
type KeyLock struct {
	stripes [keyLockStripes]sync.Mutex
}

// Lock захватывает мьютекс для key и возвращает функцию освобождения.
func (l *KeyLock) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &l.stripes[h.Sum32()%keyLockStripes]
	m.Lock()
	return m.Unlock
}
