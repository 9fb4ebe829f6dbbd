// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
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
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/payrails/internal/advisor"
	"github.com/mbd888/payrails/internal/config"
	"github.com/mbd888/payrails/internal/health"
	"github.com/mbd888/payrails/internal/insights"
	"github.com/mbd888/payrails/internal/ledger"
	"github.com/mbd888/payrails/internal/logging"
	"github.com/mbd888/payrails/internal/metrics"
	"github.com/mbd888/payrails/internal/processor"
	"github.com/mbd888/payrails/internal/ratelimit"
	"github.com/mbd888/payrails/internal/retry"
	"github.com/mbd888/payrails/internal/risk"
	"github.com/mbd888/payrails/internal/routing"
	"github.com/mbd888/payrails/internal/security"
	"github.com/mbd888/payrails/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	ledger       *ledger.Ledger
	riskSource   ledger.Reader
	analyzer     *risk.Analyzer
	registry     *processor.Registry
	engine       *routing.Engine
	insightCache *insights.Cache
	refresher    *insights.Refresher
	rateLimiter  *ratelimit.Limiter
	checks       *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLedgerSource overrides the risk analyzer's transaction source (for testing)
func WithLedgerSource(src ledger.Reader) Option {
	return func(s *Server) {
		s.riskSource = src
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
	}

	// Apply options first (may set logger or risk source)
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var insightStore insights.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection. The database may still be starting up when we
		// are, so give it a few attempts.
		if err := retry.Do(ctx, 5, 500*time.Millisecond, db.Ping); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		ledgerStore := ledger.NewPostgresStore(db)
		if err := ledgerStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate ledger store", "error", err)
		}
		s.ledger = ledger.New(ledgerStore)

		insightStore = insights.NewPostgresStore(db)

		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.ledger = ledger.New(ledger.NewMemoryStore())
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Risk analyzer reads from Stripe when an API key is configured, so
	// the assessment tracks the real account rather than local records.
	if s.riskSource == nil {
		if cfg.StripeAPIKey != "" {
			s.riskSource = ledger.NewStripeStore(cfg.StripeAPIKey)
			s.logger.Info("risk assessment reads live Stripe balance transactions")
		} else {
			s.riskSource = s.ledger
		}
	}
	s.analyzer = risk.NewAnalyzer(s.riskSource,
		risk.WithWindow(time.Duration(cfg.RiskWindowHours)*time.Hour),
		risk.WithBaselineDays(cfg.BaselineDays),
		risk.WithEnterpriseThreshold(cfg.EnterpriseThreshold),
		risk.WithLogger(s.logger),
	)

	registry, err := processor.NewRegistry(cfg.PrimaryProcessor, processor.DefaultCapabilities(),
		processor.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build processor registry: %w", err)
	}
	s.registry = registry

	// Market insights: live search when a key is configured, synthetic
	// profiles otherwise. The synthetic source also backstops search
	// failures so routing always has something to read.
	var insightSource insights.Source = insights.NewSynthetic()
	if cfg.BraveAPIKey != "" {
		insightSource = insights.NewSearchClient(cfg.BraveAPIKey, s.logger)
		s.logger.Info("market insights use live search")
	}
	cacheOpts := []insights.CacheOption{
		insights.WithTTL(cfg.InsightsTTL),
		insights.WithFallback(insights.NewSynthetic()),
		insights.WithLogger(s.logger),
	}
	if insightStore != nil {
		cacheOpts = append(cacheOpts, insights.WithStore(insightStore))
	}
	s.insightCache = insights.NewCache(insightSource, cacheOpts...)
	if err := s.insightCache.Hydrate(ctx); err != nil {
		s.logger.Warn("failed to hydrate insight cache", "error", err)
	}
	if cfg.InsightsRefreshEnabled {
		s.refresher = insights.NewRefresher(s.insightCache, registry.IDs(), cfg.InsightsTTL/4, s.logger)
	}

	engineOpts := []routing.EngineOption{
		routing.WithDefaultProcessor(cfg.DefaultProcessor),
		routing.WithEnterpriseThreshold(cfg.EnterpriseThreshold),
		routing.WithInsights(s.insightCache),
		routing.WithLogger(s.logger),
	}
	if cfg.AdvisorURL != "" {
		// Local advisors are fine in development; in production the URL
		// must not point at internal infrastructure.
		if cfg.IsProduction() {
			if err := security.ValidateEndpointURL(cfg.AdvisorURL); err != nil {
				return nil, fmt.Errorf("invalid ADVISOR_URL: %w", err)
			}
		}
		engineOpts = append(engineOpts, routing.WithAdvisor(
			advisor.NewClient(cfg.AdvisorURL, cfg.AdvisorAPIKey, cfg.AdvisorTimeout, s.logger)))
		s.logger.Info("decision advisor enabled", "url", cfg.AdvisorURL)
	}
	s.engine, err = routing.NewEngine(registry, s.analyzer, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build routing engine: %w", err)
	}

	// Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

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
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
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

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	routingHandler := routing.NewHandler(s.engine, s.logger)
	routingHandler.RegisterRoutes(v1)

	riskHandler := risk.NewHandler(s.analyzer, s.logger)
	riskHandler.RegisterRoutes(v1)

	processorHandler := processor.NewHandler(s.registry, s.analyzer, s.logger)
	processorHandler.RegisterRoutes(v1)

	ledgerHandler := ledger.NewHandler(s.ledger, s.logger)
	ledgerHandler.RegisterRoutes(v1)

	v1.GET("/insights", s.insightsHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Payrails",
		"description": "Freeze-aware payment routing",
		"version":     "0.1.0",
		"primary":     s.registry.Primary(),
		"processors":  s.registry.IDs(),
	})
}

// insightsHandler returns the current market adjustments per processor.
// GET /v1/insights
func (s *Server) insightsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"adjustments": s.insightCache.Adjustments(s.registry.IDs()),
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"primary_processor", s.registry.Primary(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start insight refresher
	if s.refresher != nil {
		go s.refresher.Run(runCtx)
	}

	// Collect DB pool stats
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

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

	// Cancel the context for background goroutines (refresher, stats collector)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Close database connection pool
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

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
