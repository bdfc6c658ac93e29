package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"directory/internal/directory/cache"
	"directory/internal/directory/handler"
	dirmetrics "directory/internal/directory/metrics"
	"directory/internal/directory/service"
	"directory/internal/platform/config"
	"directory/internal/platform/httpserver"
	"directory/internal/platform/logger"
	"directory/internal/platform/metrics"
	"directory/pkg/platform/httputil"
	"directory/pkg/platform/middleware/metadata"
	"directory/pkg/platform/middleware/requestid"
	"directory/pkg/platform/middleware/requesttime"
)

// main wires the backends selected by configuration, exposes the HTTP router
// and keeps the server lifecycle small. Business logic lives in
// internal/directory/service.
func main() {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.close()

	cb, err := openCache(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cb.close()

	sink, err := openEvents(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	defer sink.close()

	reg := metrics.New()
	dm := dirmetrics.New(reg.Registry)
	c := cache.New(cb.store, cfg.CacheTTL(), cache.WithLogger(log), cache.WithMetrics(dm))

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(dm),
		service.WithPublisher(sink.publisher),
		service.WithMaxPageSize(cfg.MaxPageSize),
		service.WithTransferTimeout(cfg.TransferTimeout),
	}
	locations := service.NewLocations(store.locations, c, opts...)
	services := service.NewServices(store.services, c, opts...)
	workers := service.NewWorkers(store.workers, store.locations, store.services, c, opts...)
	transfers := service.NewTransferEngine(workers, newBoundedTx(store.tx, cfg.TransferTimeout), opts...)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.Middleware)
	r.Use(reg.Middleware)
	r.Get("/health", healthHandler(store.health, cb.health))
	r.Handle("/metrics", reg.Handler())
	handler.New(locations, services, workers, transfers, log, cfg.MaxPageSize).Register(r)

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting directory", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if sink.run != nil {
		g.Go(func() error { return sink.run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthHandler(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
