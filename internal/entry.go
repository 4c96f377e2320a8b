// Package internal provides the main application initialization and runtime logic.
package internal

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
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/almanac/internal/api"
	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/mcpserver"
	"github.com/starford/almanac/internal/sse"
)

// Version is reported by the MCP server.
var Version = "dev"

// tasksUpdated is the payload of the tasks.updated event.
type tasksUpdated struct {
	Tasks    int       `json:"tasks"`
	Scanned  int       `json:"scanned"`
	Parsed   int       `json:"parsed"`
	Removed  int       `json:"removed"`
	BuiltAt  time.Time `json:"built_at"`
	Duration string    `json:"duration"`
}

// Run starts the HTTP server, the watcher and the refresher, and blocks
// until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	opts = append(opts, WithIndexOptions(index.WithPublishHook(func(snap *index.Snapshot, st index.Stats) {
		broker.PublishTasksUpdated(tasksUpdated{
			Tasks:    snap.Len(),
			Scanned:  st.Scanned,
			Parsed:   st.Parsed,
			Removed:  st.Removed,
			BuiltAt:  snap.BuiltAt,
			Duration: st.Duration.String(),
		})
	})))

	app, err := NewApp(opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	logger := app.Logger

	// Initial build in the background; reads are served from the warm-start
	// snapshot meanwhile.
	app.Index.Trigger()

	apiRouter := api.NewRouter(app.Service, app.Journal, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if app.Index.Status().BuiltAt.IsZero() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"indexing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Index.Watch {
		g.Go(func() error {
			err := index.Watch(gCtx, app.Index, cfg.Notes.Path, logger, broker.PublishNoteEvent)
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if cfg.Index.RefreshInterval > 0 {
		refresher := index.StartRefresher(app.Index, cfg.Index.RefreshInterval, nil)
		g.Go(func() error {
			<-gCtx.Done()
			refresher.Stop()
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout until stdin closes. Logs go to
// stderr unless a log file is configured.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := NewApp(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if app.Config.Index.Watch {
		go func() {
			if err := index.Watch(ctx, app.Index, app.Config.Notes.Path, app.Logger, nil); err != nil {
				app.Logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}
	app.Index.Trigger()

	app.Logger.Info("Starting MCP server", slog.String("version", Version))
	if err := mcpserver.New(app.Service, Version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
