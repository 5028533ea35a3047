package middleware

import (
	"FadNote/internal/noteid"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var log = zap.NewNop().Sugar()

// SetLogger задаёт логгер для всех middleware пакета.
func SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		log = l
	}
}

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	responseData *responseData
}

func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}

// WithLogging пишет в лог метод, путь, статус, размер ответа и длительность.
// Идентификатор заметки в пути заменяется отпечатком: сам id даёт доступ к заметке.
func WithLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rd := &responseData{status: http.StatusOK}
		lw := loggingResponseWriter{ResponseWriter: w, responseData: rd}

		h.ServeHTTP(&lw, r)

		log.Infow("request",
			"method", r.Method,
			"path", redactPath(r.URL.Path),
			"status", rd.status,
			"size", rd.size,
			"duration", time.Since(start),
		)
	})
}

// redactPath заменяет id в /n/{id} на его отпечаток.
func redactPath(p string) string {
	const prefix = "/n/"
	if !strings.HasPrefix(p, prefix) || len(p) == len(prefix) {
		return p
	}
	return prefix + "#" + noteid.Fingerprint(p[len(prefix):])
}
