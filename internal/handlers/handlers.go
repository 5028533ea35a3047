package handlers

import (
	"FadNote/internal/config"
	"FadNote/internal/metrics"
	"FadNote/internal/middleware"
	"FadNote/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	noteService *service.NoteService,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	config *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithLogging)
	r.Use(middleware.WithCORS(config.CORSOrigin))
	r.Use(middleware.WithGzip)

	// Handlers
	noteHandler := NewNoteHandler(noteService, logger)
	healthHandler := NewHealthHandler(noteService)
	limiter := middleware.NewRateLimiter(config.RatePerMinute)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", m.Handler())

	// Note routes, под общим лимитом запросов с одного IP
	r.Route("/n", func(r chi.Router) {
		r.Use(limiter.Handler)
		r.Post("/", noteHandler.Create)
		r.Post("/{id}", noteHandler.Create)
		r.Get("/{id}", noteHandler.Read)
		r.Delete("/{id}", noteHandler.Delete)
	})

	return &Handler{Router: r}
}
