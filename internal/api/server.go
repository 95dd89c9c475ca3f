package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redadsync/redadsync/internal/auth"
	"github.com/redadsync/redadsync/internal/config"
	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/metrics"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/store"
)

// StateReporter reports the lifecycle state of a bundle.
type StateReporter interface {
	State(b models.TokenBundle) auth.State
}

// Deps are the collaborators the HTTP API reads from.
type Deps struct {
	Credentials store.CredentialStore
	Bindings    store.BindingStore
	Lifecycle   StateReporter
	Authorizer  Authorizer
	Metrics     *metrics.Metrics
	Logger      *logging.Logger
	// State, when set, must be echoed by the OAuth redirect.
	State string
	// OnAuthorized is called after a successful callback exchange.
	OnAuthorized func([]models.TokenBundle)
}

// Server is the local HTTP API used by serve and authorize --listen.
type Server struct {
	router       *gin.Engine
	config       config.ServerConfig
	credentials  store.CredentialStore
	bindings     store.BindingStore
	lifecycle    StateReporter
	authorizer   Authorizer
	metrics      *metrics.Metrics
	logger       *logging.Logger
	state        string
	onAuthorized func([]models.TokenBundle)
	httpServer   *http.Server
	started      time.Time
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewMetrics("redadsync")
	}

	s := &Server{
		router:       gin.New(),
		config:       cfg,
		credentials:  deps.Credentials,
		bindings:     deps.Bindings,
		lifecycle:    deps.Lifecycle,
		authorizer:   deps.Authorizer,
		metrics:      m,
		logger:       logger.With("component", "api"),
		state:        deps.State,
		onAuthorized: deps.OnAuthorized,
		started:      time.Now(),
	}
	s.router.HandleMethodNotAllowed = true
	s.router.Use(gin.Recovery())
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(metrics.Middleware(m, s.logger))

	s.setupRoutes()
	s.httpServer = NewHTTPServer(cfg.Addr(), s.router)
	return s
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-ID", correlationID)

		c.Next()

		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/health", s.handleHealth)

	callback := s.router.Group("/oauth")
	callback.Use(rateLimitMiddleware(newIPRateLimiter(2*time.Second, 5)))
	callback.GET("/callback", s.handleOAuthCallback)

	protected := s.router.Group("")
	protected.Use(APIKeyAuth(s.config.APIKeys, DefaultAPIKeyHeader, s.logger))
	protected.GET("/accounts", s.handleListAccounts)
	protected.GET("/bindings", s.handleListBindings)
}

// Run listens on the configured address until Shutdown.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return &errors.ErrServerStart{Addr: s.config.Addr(), Err: err}
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: ln.Addr().String(), Err: err}
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return &errors.ErrServerShutdown{Err: err}
	}
	s.logger.Info("graceful shutdown completed")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

type accountResponse struct {
	AdvertiserID     string     `json:"advertiser_id"`
	AdvertiserName   string     `json:"advertiser_name"`
	State            auth.State `json:"state"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
}

// handleListAccounts lists stored accounts without their tokens.
func (s *Server) handleListAccounts(c *gin.Context) {
	if s.credentials == nil {
		c.JSON(http.StatusOK, gin.H{"accounts": []accountResponse{}})
		return
	}
	bundles, err := s.credentials.ListBundles()
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "list accounts failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "store_error", Message: err.Error(), Code: http.StatusInternalServerError})
		return
	}

	out := make([]accountResponse, 0, len(bundles))
	for _, b := range models.BundleSlice(bundles).SortByName() {
		resp := accountResponse{
			AdvertiserID:     b.AdvertiserID,
			AdvertiserName:   b.AdvertiserName,
			AccessExpiresAt:  b.AccessExpiry().UTC(),
			RefreshExpiresAt: b.RefreshExpiry().UTC(),
		}
		if s.lifecycle != nil {
			resp.State = s.lifecycle.State(b)
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

type bindingResponse struct {
	AccountID  string `json:"account_id"`
	NameRemark string `json:"name_remark"`
	AppToken   string `json:"app_token,omitempty"`
	TableID    string `json:"table_id"`
	Resolved   bool   `json:"resolved"`
}

func (s *Server) handleListBindings(c *gin.Context) {
	if s.bindings == nil {
		c.JSON(http.StatusOK, gin.H{"bindings": []bindingResponse{}})
		return
	}
	bindings, err := s.bindings.ListBindings()
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "list bindings failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "store_error", Message: err.Error(), Code: http.StatusInternalServerError})
		return
	}

	out := make([]bindingResponse, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, bindingResponse{
			AccountID:  b.AccountID,
			NameRemark: b.NameRemark,
			AppToken:   b.AppToken,
			TableID:    b.TableID,
			Resolved:   b.Resolved(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"bindings": out})
}
