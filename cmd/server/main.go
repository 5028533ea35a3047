package main

import (
	"FadNote/internal/bootstrap"
	"FadNote/internal/config"
	"FadNote/internal/handlers"
	"FadNote/internal/metrics"
	"FadNote/internal/middleware"
	"FadNote/internal/service"
	"FadNote/internal/sweeper"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	// создаём регистратор zap: в production - JSON, иначе development
	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}

	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		_ = logger.Sync()
	}()

	for _, w := range cfg.Warnings() {
		sugar.Warnw("Config warning", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Errorw("Server failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) error {
	noteRepo, cleanup, err := bootstrap.OpenRepository(ctx, cfg, sugar)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			sugar.Warnw("Failed to close storage", "error", err)
		}
	}()

	m := metrics.New()
	noteService := service.NewNoteService(noteRepo, sugar,
		service.WithMaxBytes(cfg.MaxNoteBytes),
		service.WithDefaultTTL(cfg.DefaultTTLDuration()),
		service.WithBackendTimeout(cfg.BackendTimeout),
		service.WithMetrics(m),
	)

	// фоновая очистка нужна только хранилищам без собственного TTL;
	// stop ждёт текущий проход, поэтому срабатывает раньше закрытия хранилища
	if sw := sweeper.ForRepository(noteRepo, cfg.SweepInterval, sugar, m); sw != nil {
		stop := sw.Start(ctx)
		defer stop()
	}

	h := handlers.NewHandler(noteService, m, sugar, cfg)
	srv := &http.Server{
		Addr:              cfg.BaseURL,
		Handler:           h.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sugar.Infow("Starting server",
		"addr", cfg.BaseURL,
		"storage", noteRepo.Name(),
		"env", cfg.AppEnv,
		"defaultTTL", cfg.DefaultTTLDuration(),
		"maxNoteBytes", cfg.MaxNoteBytes,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sugar.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
