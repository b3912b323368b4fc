package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quipper/poc/sis/be/internal/bootstrap"
	"github.com/quipper/poc/sis/be/internal/config"
	sisHandler "github.com/quipper/poc/sis/be/internal/controller/http/sis"
	"github.com/quipper/poc/sis/be/pkg/common/logger"
)

// withCORS allows every origin when allowed is empty.
func withCORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(allowed) > 0 {
			origin = ""
			if o := r.Header.Get("Origin"); slices.Contains(allowed, o) {
				origin = o
				w.Header().Add("Vary", "Origin")
			}
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// every runs fn on each tick until ctx is done.
func every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		// logger is not initialized yet
		logger.Initialize("error")
		logger.Error("load config: %v", err)
		os.Exit(1)
	}
	logger.InitializeWith(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	defer logger.Sync()
	logger.Info("starting server store=%s identity=%s", cfg.Store.Driver, cfg.Identity.Driver)

	ctx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap: %v", err)
		os.Exit(1)
	}

	h := sisHandler.NewHandler(sisHandler.Services{
		Users:    app.Users,
		Subjects: app.Subjects,
		Groups:   app.Groups,
		Grades:   app.Grades,
		Session:  app.Session,
		Health:   app.Store.Ping,
		Keys:     app.Keys,
	})
	router := chi.NewRouter()
	router.Use(middleware.RequestSize(cfg.Server.MaxBodySize))
	router.Use(middleware.Recoverer)
	router.Use(app.Metrics.Middleware)

	router.Handle("/metrics", app.Metrics.Handler())
	router.Mount("/", h.Router())

	addr := ":" + cfg.Server.Port
	server := &http.Server{Addr: addr, Handler: withCORS(cfg.Server.CORSAllowedOrigins, router)}

	go func() {
		logger.Info("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen: %v", err)
		}
	}()

	go every(ctx, cfg.Revocation.PurgeInterval, func(ctx context.Context) {
		n, err := app.Revoked.Purge(ctx)
		if err != nil {
			logger.Warn("purge revoked tokens: %v", err)
			return
		}
		if n > 0 {
			logger.Debug("purged %d expired revocations", n)
		}
	})
	if cfg.Reconcile.Interval > 0 {
		go every(ctx, cfg.Reconcile.Interval, func(ctx context.Context) {
			if _, err := app.Reconciler.Run(ctx); err != nil {
				logger.Warn("reconcile: %v", err)
			}
		})
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")
	stopJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown: %v", err)
	}
	app.Close()
	logger.Info("server stopped")
}
