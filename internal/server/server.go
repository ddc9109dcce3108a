// Package server exposes the loaded fraud model over HTTP.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudscore/internal/artifact"
	"github.com/mbd888/fraudscore/internal/config"
	"github.com/mbd888/fraudscore/internal/drift"
	"github.com/mbd888/fraudscore/internal/health"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/metrics"
	"github.com/mbd888/fraudscore/internal/pipeline"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// model is an immutable loaded artifact with its drift monitor.
type model struct {
	art     *pipeline.Artifact
	rec     *artifact.Record
	monitor *drift.Monitor
}

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	store   artifact.Store
	db      *sql.DB // nil unless DATABASE_URL is set
	health  *health.Registry
	router  *gin.Engine
	httpSrv *http.Server
	logger  *slog.Logger

	current atomic.Pointer[model]
	ready   atomic.Bool

	// drainDelay lets load balancers stop routing before shutdown.
	drainDelay time.Duration
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStore sets the artifact store instead of the one named by cfg (for testing)
func WithStore(store artifact.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// New creates a server and loads the latest artifact. A store with no
// artifact yet is not an error; scoring answers 503 until a model is
// reloaded.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		health:     health.NewRegistry(3 * time.Second),
		drainDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		store, err := s.openStore()
		if err != nil {
			return nil, err
		}
		s.store = store
	}

	s.health.Register("artifact_store", health.Reachable(s.store))
	s.health.Register("model", health.ModelLoaded(s.modelVersion))

	if _, err := s.load(context.Background(), 0); err != nil && !errors.Is(err, artifact.ErrNotFound) {
		return nil, err
	} else if err != nil {
		s.logger.Warn("no model artifact found; scoring disabled until reload")
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// openStore uses Postgres when DATABASE_URL is set, otherwise the
// versioned file store in ARTIFACT_DIR.
func (s *Server) openStore() (artifact.Store, error) {
	store, db, err := artifact.Open(s.cfg.DatabaseURL, s.cfg.ArtifactDir, s.cfg.ArtifactKeep, s.logger)
	if err != nil {
		return nil, err
	}
	s.db = db
	if db != nil {
		s.logger.Info("using PostgreSQL artifact store", "url", maskDSN(s.cfg.DatabaseURL))
	} else {
		s.logger.Info("using file artifact store", "dir", s.cfg.ArtifactDir, "keep", s.cfg.ArtifactKeep)
	}
	return store, nil
}

// load decodes version (0 for latest) and swaps it in atomically.
func (s *Server) load(ctx context.Context, version int) (*model, error) {
	art, rec, err := artifact.Load(ctx, s.store, version)
	if err != nil {
		return nil, err
	}
	m := &model{
		art:     art,
		rec:     rec,
		monitor: drift.NewMonitor(art.Reference, drift.Config{
			Window:    s.cfg.DriftWindow,
			MinRows:   drift.DefaultMinRows,
			Threshold: art.Config.Threshold,
		}),
	}
	s.current.Store(m)
	metrics.ModelVersion.Set(float64(rec.Version))
	metrics.DriftWindowRows.Set(0)
	s.logger.Info("model loaded",
		"version", rec.Version,
		"run_id", rec.RunID,
		"features", len(art.Features),
		"families", len(art.Families),
		"oof_auc", art.OOFAUC,
	)
	return m, nil
}

func (s *Server) modelVersion() int {
	if m := s.current.Load(); m != nil {
		return m.rec.Version
	}
	return 0
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")
	v1.POST("/score", s.scoreHandler)
	v1.GET("/model", s.modelHandler)
	v1.POST("/model/reload", s.reloadHandler)
	v1.GET("/models", s.listModelsHandler)
	v1.GET("/drift", s.driftHandler)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "model_version", s.modelVersion())
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	s.ready.Store(true)
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
