package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/almanac/internal/diary"
	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/metacache"
	"github.com/starford/almanac/internal/scanner"
	"github.com/starford/almanac/internal/storage"
	"github.com/starford/almanac/internal/taskservice"
)

// App is the wired set of components shared by the server and the one-shot
// commands.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Index   *index.Indexer
	Service *taskservice.Service
	// Journal is nil when no diary directory is configured.
	Journal *diary.Journal

	closers []io.Closer
}

// NewApp builds the application components from the options.
func NewApp(opts ...Option) (*App, error) {
	a := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config
	if err := cfg.ResolvePaths(); err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	out := a.logOutput
	if cfg.App.LogFile != "" {
		f, err := os.OpenFile(cfg.App.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		app.closers = append(app.closers, f)
		out = f
	}
	app.Logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(app.Logger)

	app.Logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_path", cfg.Notes.Path),
		slog.String("diary_path", cfg.Diary.Path),
		slog.String("state_backend", cfg.Index.StateBackend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Notes.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Notes.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	idxOpts := []index.Option{
		index.WithLogger(app.Logger),
		index.WithWorkers(cfg.Index.Workers),
	}
	if cfg.Index.StateBackend != index.StateNone {
		if err := os.MkdirAll(filepath.Dir(cfg.Index.StatePath), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	state, err := index.OpenState(cfg.Index.StateBackend, cfg.Index.StatePath)
	if err != nil {
		return nil, fmt.Errorf("init index state: %w", err)
	}
	if state != nil {
		app.closers = append(app.closers, state)
		idxOpts = append(idxOpts, index.WithStateStore(state))
	}
	idxOpts = append(idxOpts, a.indexOpts...)

	sc := scanner.New(store, cfg.Notes.Exclude)
	app.Index = index.New(sc, store, idxOpts...)
	cache := metacache.New(store, metacache.WithLogger(app.Logger))
	app.Service = taskservice.NewService(app.Index, cache, store, sc, taskservice.WithLogger(app.Logger))

	if cfg.Diary.Path != "" {
		diaryStore, err := storage.NewFS(cfg.Diary.Path)
		if err != nil {
			app.Logger.Warn("diary disabled", slog.String("path", cfg.Diary.Path), slog.String("error", err.Error()))
		} else {
			app.Journal = diary.New(diaryStore, metacache.New(diaryStore, metacache.WithLogger(app.Logger)), app.Logger)
		}
	}

	ok = true
	return app, nil
}

// Close waits for background rebuilds, then releases the state store and
// log file.
func (a *App) Close() error {
	if a.Index != nil {
		a.Index.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
