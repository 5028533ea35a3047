package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// WithCORS разрешает веб-клиенту с origin обращаться к API заметок.
// origin "*" - любой источник; несколько значений перечисляются через запятую.
func WithCORS(origin string) func(http.Handler) http.Handler {
	var origins []string
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Note-TTL"},
		ExposedHeaders: []string{"X-Note-Status"},
		MaxAge:         600,
	})
	return c.Handler
}
