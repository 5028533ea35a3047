package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter - token bucket на каждый IP клиента.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	entries map[string]*limBucket
	now     func() time.Time

	hits       uint64
	sweepEvery uint64
}

// idleSweepEvery - раз во сколько обращений вычищаются давно не встречавшиеся ключи.
const idleSweepEvery = 512

type limBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter пропускает perMinute запросов в минуту с одного адреса (всплеск - тоже perMinute).
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		ttl:     10 * time.Minute,
		entries: make(map[string]*limBucket),
		now:     time.Now,

		sweepEvery: idleSweepEvery,
	}
}

// Allow расходует токен ключа. Раз в sweepEvery обращений вычищаются простаивающие ключи.
func (m *RateLimiter) Allow(key string) bool {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.entries[key]
	if b == nil {
		b = &limBucket{lim: rate.NewLimiter(m.limit, m.burst), lastSeen: now}
		m.entries[key] = b
	}
	b.lastSeen = now
	allowed := b.lim.AllowN(now, 1)

	m.hits++
	if m.hits%m.sweepEvery == 0 {
		cutoff := now.Add(-m.ttl)
		for k, v := range m.entries {
			if v.lastSeen.Before(cutoff) {
				delete(m.entries, k)
			}
		}
	}
	return allowed
}

// Handler отвечает 429, если адрес исчерпал лимит.
func (m *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP берёт первый адрес из X-Forwarded-For, иначе RemoteAddr.
func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
