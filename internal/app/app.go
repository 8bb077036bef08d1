package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agendazk/agendazk/internal/config"
	"github.com/agendazk/agendazk/internal/database"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Application wires configuration, database, router, and server lifecycle.
type Application struct {
	cfg    config.Application
	db     *pgxpool.Pool
	deps   *Dependencies
	router *mux.Router
	srv    *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context, configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// DB + migrations
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(cfg.Database); err != nil {
		db.Close()
		return nil, err
	}

	r := mux.NewRouter()

	// Build dependencies (services, handlers...)
	deps, err := BuildDependencies(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Middleware chain
	SetupMiddleware(r, deps)

	// Routes
	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, db: db, deps: deps, router: r, srv: srv}, nil
}

// Run starts the background workers and the HTTP server, and blocks until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	workers, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	go func() {
		if err := a.deps.Watcher.Run(workers); err != nil {
			log.Errorf("calendar watcher stopped: %v", err)
		}
	}()
	if a.deps.GoogleMirror != nil {
		go func() {
			if err := a.deps.GoogleMirror.Run(workers, a.deps.Watcher); err != nil {
				log.Errorf("google mirror stopped: %v", err)
			}
		}()
	}

	if err := a.deps.StartFeeds(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		serverErr <- a.srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		a.close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}
	a.close(shutdownCtx)
	return nil
}

func (a *Application) close(ctx context.Context) {
	a.deps.Feeds.Close()
	a.deps.NotificationHub.Close(ctx)
	if a.deps.Redis != nil {
		if err := a.deps.Redis.Close(); err != nil {
			log.Errorf("failed to close redis client: %v", err)
		}
	}
	a.db.Close()
}
