package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/NovaRelay/backend/internal/api/http"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/api/middleware"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/backend"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/intent"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/relay"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/session"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/window"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/tracing"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 15 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	client  *backend.Client
	store   *session.Store

	stopSweep chan struct{}
	sweepDone sync.WaitGroup
	closeOnce sync.Once
}

// NewServer creates a server with a logger built from cfg.Logging.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return New(cfg, logger)
}

// New creates a new server instance
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Initializing relay server",
		zap.String("addr", cfg.Server.Host+":"+cfg.Server.Port),
		zap.String("backend_url", cfg.Backend.URL),
		zap.String("chat_model", cfg.Backend.ChatModel),
		zap.String("vision_model", cfg.Backend.VisionModel),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	tracer := tracing.New(apihttp.ServiceName, logger.Named("tracing").Logger)

	client := backend.New(backend.OptionsFromConfig(cfg), logger, metrics)

	var persister session.Persister
	if cfg.Session.PersistDir != "" {
		p, err := session.OpenBadger(cfg.Session.PersistDir, logger)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		persister = p
		logger.Info("Session persistence enabled", zap.String("dir", cfg.Session.PersistDir))
	}

	store := session.NewStore(session.Options{
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
		Persister:   persister,
		Logger:      logger,
		Metrics:     metrics,
	})
	windows := window.New(store, cfg.Session.Window, metrics)
	dispatcher := relay.NewDispatcher(client, windows, intent.New(), relay.DefaultsFromConfig(cfg), logger, metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(middleware.Recovery(logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(middleware.RequestLogger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Dispatcher: dispatcher,
		Models:     client,
		Sessions:   store,
		Breakers:   client.BreakerStates,
		Metrics:    metrics,
		Logger:     logger,

		InspectSessions: cfg.Session.Inspect,
	})
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s := &Server{
		router:  router,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		client:  client,
		store:   store,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		stopSweep: make(chan struct{}),
	}
	s.startSweeper()

	logger.Info("Server initialized successfully")
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, failed := <-errCh:
		if failed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server", zap.Duration("timeout", ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases every resource the server holds. It is safe to call more
// than once; errors from all components are reported together.
func (s *Server) Close() error {
	var result *multierror.Error

	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		if err := s.http.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, fmt.Errorf("http server: %w", err))
		}

		close(s.stopSweep)
		s.sweepDone.Wait()

		s.tracer.Close()

		if err := s.store.Close(); err != nil {
			s.logger.Error("Failed to close session store", zap.Error(err))
			result = multierror.Append(result, fmt.Errorf("session store: %w", err))
		}

		// Sync fails on stdout/stderr on some platforms; not worth reporting.
		_ = s.logger.Sync()
	})

	return result.ErrorOrNil()
}

// startSweeper periodically reclaims memory and snapshots held by expired
// sessions nobody touches again. It is not the expiry mechanism: the store
// decides expiry lazily on access, and an expired session is renewed on
// its next request whether or not a sweep has run.
func (s *Server) startSweeper() {
	interval := sweepInterval(s.config.Session.TTL)
	if interval <= 0 {
		return
	}

	s.sweepDone.Add(1)
	go func() {
		defer s.sweepDone.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopSweep:
				return
			case <-ticker.C:
				if n := s.store.Sweep(context.Background()); n > 0 {
					s.logger.Debug("Swept expired sessions", zap.Int("removed", n))
				}
			}
		}
	}()
}

// sweepInterval is a quarter of the TTL, clamped to [10s, 5m]. A zero TTL
// disables sweeping.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	interval := ttl / 4
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	return interval
}
