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
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	api "github.com/GriffinCanCode/StudyDesk/backend/internal/api/http"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/api/middleware"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/api/ws"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/auth"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/generation"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/content"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/progress"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/study"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/timer"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/workspace"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/authstore"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/localstore"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/remote"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
)

// Version is set at build time
var Version = "dev"

// Server wraps the HTTP server and dependencies
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	router     *gin.Engine
	http       *http.Server
	grpc       *grpc.Server
	health     *Health
	breaker    *resilience.Breaker
	remote     *remote.Store
	local      *localstore.Store
	sessions   authstore.Store
	workspaces *workspace.Manager
	hub        *ws.Hub

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewServer wires every component from cfg
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Output:      cfg.Logging.Output,
		Sample:      cfg.Logging.Sample,
	})
	if err != nil {
		logger = logging.NewDefault()
		logger.Warn("Invalid logging config, using defaults", zap.Error(err))
	}

	logger.Info("Initializing StudyDesk server",
		zap.String("version", Version),
		zap.String("port", cfg.Server.Port),
		zap.String("remote_driver", cfg.Remote.Driver),
		zap.String("data_dir", cfg.Local.DataDir),
	)

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: monitoring.NewMetrics(),
		health:  NewHealth(),
	}
	s.tracer = tracing.New("studydesk", logger.Named("trace"))

	if err := s.openStores(ctx); err != nil {
		s.closeStores()
		return nil, err
	}

	tiers := persistence.Tiers{
		Local:   s.local,
		Breaker: s.breaker,
		Logger:  logger.Named("persistence"),
		Metrics: s.metrics,
	}
	if s.remote != nil {
		tiers.Remote = s.remote
	}

	notes := content.New(tiers)
	tracker := progress.New(tiers)
	gen := generation.New(cfg.Generation, logger.Named("generation"), s.metrics)
	assistant := study.New(gen, notes, logger.Logger)

	authSvc, err := s.newAuth(ctx, tiers)
	if err != nil {
		s.closeStores()
		return nil, err
	}

	s.hub = ws.NewHub(logger.Logger, s.metrics, cfg.Server.AllowedOrigins...)
	s.workspaces = workspace.NewManager(tiers, notes, tracker, workspace.Config{
		ViewportWidth:  cfg.Workspace.ViewportWidth,
		ViewportHeight: cfg.Workspace.ViewportHeight,
		XP:             timer.XPPolicy{Focus: cfg.Timer.FocusXP, Break: cfg.Timer.BreakXP},
	}).WithSnapshots(s.local).WithPublisher(s.hub)

	handlers := api.NewHandlers(api.Deps{
		Auth:       authSvc,
		Workspaces: s.workspaces,
		Notes:      notes,
		Progress:   tracker,
		Study:      assistant,
		Hub:        s.hub,
		Metrics:    s.metrics,
		Breaker:    s.breaker,
		Logger:     logger.Logger,
		Version:    Version,
	})
	s.router = s.newRouter(handlers)
	s.http = &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully",
		zap.Bool("remote", s.remote != nil),
		zap.Bool("assistant", assistant.Available()),
		zap.Strings("auth_providers", authSvc.Providers()),
	)
	return s, nil
}

// openStores opens the local tier, the remote tier and the session store.
// An unreachable remote store leaves the server running on the local tier.
func (s *Server) openStores(ctx context.Context) error {
	cfg := s.config
	layout := cfg.Layout()

	localCfg := localstore.DefaultConfig()
	localCfg.InMemory = cfg.Local.InMemory
	localCfg.SyncWrites = cfg.Local.SyncWrites
	localCfg.Logger = s.logger.Named("badger")
	if !cfg.Local.InMemory {
		if err := layout.Ensure(); err != nil {
			return fmt.Errorf("prepare data directory: %w", err)
		}
		localCfg.Path = layout.Local()
	}
	local, err := localstore.Open(localCfg)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	s.local = local

	s.breaker = resilience.New("remote", resilience.Settings{
		MaxRequests: 1,
		Timeout:     cfg.Remote.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Remote.BreakerFailures
		},
		OnStateChange: s.onBreakerChange,
	})

	if cfg.Remote.Enabled {
		store, err := remote.Open(ctx, cfg.Remote.Driver, cfg.RemoteURL(), remote.PoolConfig{
			MaxOpenConns:    cfg.Remote.MaxOpenConns,
			MaxIdleConns:    cfg.Remote.MaxIdleConns,
			ConnMaxIdleTime: cfg.Remote.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Remote.ConnMaxLifetime,
		})
		if err != nil {
			s.logger.Warn("Remote store unavailable, running on the local tier", zap.Error(err))
		} else {
			s.remote = store
			s.logger.Info("Connected to remote store", zap.String("dialect", store.Dialect().String()))
		}
	}
	s.health.SetRemote(s.remote != nil, s.breaker.State())

	s.sessions = authstore.Open(ctx, cfg.Redis.URL, s.logger.Named("authstore"))
	return nil
}

func (s *Server) onBreakerChange(name string, from, to resilience.State) {
	s.metrics.SetBreakerState(name, int(to))
	s.health.SetRemote(s.remote != nil, to)
	s.logger.Warn("Circuit breaker state changed",
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

func (s *Server) newAuth(ctx context.Context, tiers persistence.Tiers) (*auth.Service, error) {
	cfg := s.config.Auth

	opts := []auth.LocalOption{auth.WithCost(cfg.BcryptCost)}
	if cfg.AutoRegister {
		opts = append(opts, auth.WithAutoRegister())
	}
	local := auth.NewLocal(tiers, opts...)
	if err := local.Load(ctx); err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	providers := []auth.Provider{local}
	if cfg.AllowGuest {
		providers = append(providers, auth.Guest{})
	}
	return auth.NewService(s.sessions, cfg.SessionTTL, s.logger.Named("auth"), providers...), nil
}

func (s *Server) newRouter(handlers *api.Handlers) *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics, "/api/v1/stream"))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...)))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		rl.Skip = append(rl.Skip, "/api/v1/stream")
		router.Use(middleware.RateLimit(rl))
	}

	router.GET("/metrics", gin.WrapH(monitoring.Handler(s.metrics)))
	if cfg.Logging.Development {
		level := gin.WrapH(s.logger.LevelHandler())
		router.GET("/debug/log-level", level)
		router.PUT("/debug/log-level", level)
	}
	handlers.Register(router)
	return router
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Workspaces returns the workspace manager
func (s *Server) Workspaces() *workspace.Manager {
	return s.workspaces
}

// Run serves HTTP, the optional health port and the background loops until
// ctx is done or a listener fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.startLoops(ctx)

	errCh := make(chan error, 2)
	if port := s.config.Server.HealthPort; port != "" {
		lis, err := net.Listen("tcp", s.config.Server.Host+":"+port)
		if err != nil {
			s.Shutdown(context.Background())
			return fmt.Errorf("listen health port: %w", err)
		}
		s.grpc = grpc.NewServer(
			grpc.UnaryInterceptor(tracing.GRPCUnaryInterceptor(s.tracer)),
			grpc.KeepaliveParams(keepalive.ServerParameters{
				MaxConnectionIdle: 5 * time.Minute,
				Time:              2 * time.Minute,
				Timeout:           20 * time.Second,
			}),
			// probes ping rarely; tolerate clients that ping without a stream
			grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
				MinTime:             30 * time.Second,
				PermitWithoutStream: true,
			}),
		)
		s.health.Register(s.grpc)
		s.logger.Info("Starting gRPC health server", zap.String("addr", lis.Addr().String()))
		go func() {
			if err := s.grpc.Serve(lis); err != nil {
				errCh <- fmt.Errorf("health server: %w", err)
			}
		}()
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		s.logger.Error("Listener failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// startLoops runs the timer ticker, the reconciler and periodic snapshots
func (s *Server) startLoops(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.workspaces.Run(ctx, timer.NewIntervalSource(s.config.Timer.TickInterval))
	}()

	if s.remote != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.workspaces.RunReconciler(ctx, s.config.Remote.ReconcileInterval)
		}()
	}

	if interval := s.config.Workspace.SnapshotInterval; interval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.snapshotLoop(ctx, interval)
		}()
	}
}

func (s *Server) snapshotLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.UpdateUptime()
			if err := s.workspaces.SaveAll(ctx); err != nil {
				s.logger.Warn("Periodic snapshot incomplete", zap.Error(err))
			}
		}
	}
}

// Shutdown stops the listeners and loops, closes every workspace and the
// stores. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	s.once.Do(func() {
		s.logger.Info("Shutting down server...")

		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if s.grpc != nil {
			s.health.Shutdown()
			s.grpc.GracefulStop()
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.hub.Close()

		for _, w := range s.workspaces.List() {
			if err := s.workspaces.Close(ctx, w.Owner().ID); err != nil {
				errs = append(errs, fmt.Errorf("close workspace %s: %w", w.Owner().ID, err))
			}
		}

		s.tracer.Close()
		if err := s.closeStores(); err != nil {
			errs = append(errs, err)
		}
		_ = s.logger.Sync()
	})
	return errors.Join(errs...)
}

func (s *Server) closeStores() error {
	var errs []error
	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
	}
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close remote store: %w", err))
		}
	}
	if s.local != nil {
		if err := s.local.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close local store: %w", err))
		}
	}
	return errors.Join(errs...)
}
