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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/inkmath/internal/api"
	"github.com/starford/inkmath/internal/journal"
	"github.com/starford/inkmath/internal/mcpserver"
	"github.com/starford/inkmath/internal/recognition"
	"github.com/starford/inkmath/internal/session"
	"github.com/starford/inkmath/internal/sse"
	"github.com/starford/inkmath/internal/storage"
	"github.com/starford/inkmath/internal/watch"
)

// components are the long-lived pieces shared by the HTTP and MCP front ends.
type components struct {
	logger *slog.Logger
	db     *journal.DB      // nil when journaling is off
	store  *storage.FS      // nil without a drop directory
	broker *sse.Broker
	sess   *session.Session
}

func (c *components) close() {
	c.broker.Close()
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Warn("journal close failed", slog.String("error", err.Error()))
		}
	}
}

// roundLister avoids handing the router a typed nil.
func (c *components) roundLister() api.RoundLister {
	if c.db == nil {
		return nil
	}
	return c.db
}

func (c *components) provider() storage.Provider {
	if c.store == nil {
		return nil
	}
	return c.store
}

func (c *components) load(ctx context.Context, path string, data []byte) error {
	_, err := c.sess.Load(ctx, data, path)
	return err
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup builds the logger, journal, drop directory and session, and
// restores the session from the journal.
func (app *application) setup(ctx context.Context) (*components, error) {
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("recognition_url", cfg.Recognition.URL),
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("session", cfg.Journal.Session),
		slog.String("watch_dir", cfg.Watch.Dir),
		slog.Bool("watch_enabled", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c := &components{logger: logger, broker: sse.NewBroker(0)}

	if cfg.Watch.Dir != "" {
		if err := os.MkdirAll(cfg.Watch.Dir, 0o755); err != nil {
			c.close()
			return nil, fmt.Errorf("create drop dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Watch.Dir)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.store = store
	}

	if cfg.Journal.Path != "" {
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("init journal: %w", err)
		}
		c.db = db
	}

	rec := app.recognizer
	if rec == nil {
		if cfg.Recognition.ApplicationKey == "" {
			logger.Warn("recognition application key is empty; requests will be rejected upstream")
		}
		rec = recognition.NewClient(cfg.Recognition.Options())
	}

	sessOpts := []session.Option{
		session.WithName(cfg.Journal.Session),
		session.WithLogger(logger),
		session.WithPublisher(c.broker.PublishTreeEvent),
		session.WithCanvas(cfg.Canvas.Width, cfg.Canvas.Height),
		session.WithRecognizeAfterErase(cfg.Recognition.RecognizeAfterErase),
		session.WithScribbleErase(cfg.Recognition.ScribbleErase, cfg.Recognition.ScribbleHold),
	}
	if c.db != nil {
		sessOpts = append(sessOpts, session.WithJournal(c.db))
	}
	c.sess = session.New(rec, sessOpts...)

	if c.db != nil {
		if err := c.sess.Restore(ctx, c.db); err != nil {
			logger.Warn("restore from journal failed", slog.String("error", err.Error()))
		}
	}
	return c, nil
}

// Run starts the HTTP server and, when enabled, the drop directory watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	if cfg.Watch.Enabled && len(c.sess.Blocks()) <= 1 {
		if path, err := watch.LoadLatest(ctx, c.store, logger, c.load); err != nil {
			logger.Warn("initial document load failed", slog.String("error", err.Error()))
		} else if path != "" {
			c.broker.PublishDocumentEvent("loaded", path)
		}
	}

	apiRouter := api.NewRouter(api.RouterConfig{
		Editor:      c.sess,
		Rounds:      c.roundLister(),
		Store:       c.provider(),
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		SSE:         c.broker,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
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
		if err := c.sess.Verify(); err != nil {
			logger.Error("tree invariant broken", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			if err := watch.Watch(gCtx, c.store, logger, c.load, c.broker.PublishDocumentEvent); err != nil {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("MCP server starting on stdio", slog.String("session", c.sess.Name()))
	return mcpserver.New(c.sess, c.provider()).ServeStdio()
}
