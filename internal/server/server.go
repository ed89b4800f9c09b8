// Package server wires configuration, stores, services, and HTTP routes into
// a runnable SecureChain backend.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/securechain/securechain/internal/auth"
	"github.com/securechain/securechain/internal/chain"
	"github.com/securechain/securechain/internal/config"
	"github.com/securechain/securechain/internal/dashboard"
	"github.com/securechain/securechain/internal/fraud"
	"github.com/securechain/securechain/internal/health"
	"github.com/securechain/securechain/internal/logging"
	"github.com/securechain/securechain/internal/metrics"
	"github.com/securechain/securechain/internal/ratelimit"
	"github.com/securechain/securechain/internal/security"
	"github.com/securechain/securechain/internal/traces"
	"github.com/securechain/securechain/internal/transactions"
	"github.com/securechain/securechain/internal/transfer"
	"github.com/securechain/securechain/internal/validation"
	"github.com/securechain/securechain/internal/wallet"
)

// Server is the assembled application.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *gin.Engine
	db     *sql.DB // nil in memory mode

	authManager *auth.Manager
	chainSvc    *chain.Service
	walletSvc   *wallet.Service
	txStore     transactions.Store
	engine      *fraud.Engine
	transferSvc *transfer.Service
	health      *health.Registry
	limiter     *ratelimit.Limiter

	shutdownTracing func(context.Context) error
}

// New builds the full application from configuration. With DATABASE_URL set
// it runs against Postgres; otherwise everything lives in memory.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger, health: health.NewRegistry()}

	shutdownTracing, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	s.shutdownTracing = shutdownTracing

	var (
		chainStore  chain.Store
		walletStore wallet.Store
		userStore   auth.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		s.db = db

		chainStore = chain.NewPostgresStore(db)
		walletStore = wallet.NewPostgresStore(db)
		userStore = auth.NewPostgresStore(db)
		s.txStore = transactions.NewPostgresStore(db)
		s.health.Register("database", health.DBChecker(db))
		logger.Info("using postgres storage")
	} else {
		chainStore = chain.NewMemoryStore()
		walletStore = wallet.NewMemoryStore()
		userStore = auth.NewMemoryStore()
		s.txStore = transactions.NewMemoryStore()
		logger.Info("using in-memory storage")
	}

	s.chainSvc = chain.New(chainStore)
	s.walletSvc = wallet.NewService(walletStore)
	s.engine = fraud.NewEngine(cfg.WarningThreshold, cfg.FraudThreshold, cfg.MinTrainSamples, logger)
	s.transferSvc = transfer.NewService(s.walletSvc, s.txStore, s.chainSvc, s.engine, logger, transfer.Options{
		MinDeposit:     cfg.MinDeposit,
		DepositLatency: cfg.DepositLatency,
		RetrainEvery:   cfg.RetrainEvery,
	})
	s.authManager = auth.NewManager(userStore, cfg.JWTSecret, cfg.JWTExpiry, logger)

	s.health.Register("ledger_chain", health.ChainChecker(func(ctx context.Context) (bool, string) {
		report, err := s.chainSvc.Validate(ctx)
		if err != nil {
			return false, err.Error()
		}
		if !report.Valid {
			return false, fmt.Sprintf("%d integrity errors", len(report.Errors))
		}
		return true, ""
	}))

	if cfg.AdminPassword != "" {
		if err := s.seedAdmin(ctx); err != nil {
			return nil, err
		}
	}

	// Rebuild the model from whatever history already exists.
	s.engine.Retrain(ctx, s.txStore)

	s.router = s.buildRouter()
	return s, nil
}

// seedAdmin provisions the bootstrap admin account and its wallet.
func (s *Server) seedAdmin(ctx context.Context) error {
	if err := s.authManager.SeedAdmin(ctx, s.cfg.AdminEmail, s.cfg.AdminPassword); err != nil {
		return err
	}
	admin, err := s.authManager.ListUsers(ctx)
	if err != nil || len(admin) == 0 {
		return err
	}
	if _, err := s.walletSvc.GetByOwner(ctx, admin[0].ID); errors.Is(err, wallet.ErrWalletNotFound) {
		if _, err := s.walletSvc.CreateForUser(ctx, admin[0].ID, admin[0].Email); err != nil {
			return fmt.Errorf("seed admin wallet: %w", err)
		}
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(s.logger))
	r.Use(metrics.Middleware())
	r.Use(security.Headers())
	r.Use(security.CORS(nil))
	r.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	if s.cfg.RateLimitRPS > 0 {
		s.limiter = ratelimit.New(s.cfg.RateLimitRPS)
		r.Use(s.limiter.Middleware())
	}

	r.GET("/health", s.healthHandler)
	r.GET("/ready", s.healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")

	authHandlers := auth.NewHandlers(s.authManager, func(ctx context.Context, ownerID, email string) error {
		_, err := s.walletSvc.CreateForUser(ctx, ownerID, email)
		return err
	})
	authHandlers.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(auth.RequireAuth(s.authManager))
	authHandlers.RegisterProtectedRoutes(protected)
	wallet.NewHandlers(s.walletSvc).RegisterRoutes(protected)
	transfer.NewHandlers(s.transferSvc).RegisterRoutes(protected)
	transactions.NewHandlers(s.txStore, s.chainSvc).RegisterRoutes(protected)
	chain.NewHandlers(s.chainSvc).RegisterRoutes(protected)
	fraud.NewHandlers(s.engine).RegisterRoutes(protected)
	dashboard.NewHandlers(dashboard.NewService(s.txStore, s.engine, s.cfg.FraudThreshold)).RegisterRoutes(protected)

	admin := protected.Group("")
	admin.Use(auth.RequireAdmin())
	authHandlers.RegisterAdminRoutes(admin)

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"healthy": healthy, "checks": statuses})
}

// Router exposes the HTTP handler (for tests).
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.db != nil {
		go metrics.StartDBStatsCollector(ctx, s.db, 15*time.Second)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(shutdownCtx); err != nil {
			s.logger.Warn("tracing shutdown", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("database close", "error", err)
		}
	}
	return nil
}
