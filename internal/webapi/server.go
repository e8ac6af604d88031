// Package webapi exposes the conversation manager over REST for serve mode.
package webapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mnemo/internal/conversation"
	"mnemo/internal/errs"
	"mnemo/internal/utils"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string
	Port         int
	EnableCORS   bool
	Debug        bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns the serve-mode defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "localhost",
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
}

// Server serves the context API over HTTP.
type Server struct {
	manager    *conversation.Manager
	engine     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
	logger     *utils.Logger
}

// NewServer wires the REST surface around a conversation manager.
func NewServer(manager *conversation.Manager, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if config.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		engine.Use(cors.New(corsConfig))
	}

	server := &Server{
		manager:   manager,
		engine:    engine,
		startTime: time.Now(),
		logger:    utils.NewComponentLogger("WebAPI"),
	}
	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	contexts := api.Group("/contexts")
	{
		contexts.GET("", s.handleListContexts)
		contexts.POST("", s.handleCreateContext)
		contexts.DELETE("/:id", s.handleDeleteContext)
		contexts.POST("/:id/messages", s.handleSendMessage)
	}
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Serving context API on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down context API")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Strategy:  s.manager.Strategy().Name(),
			Timestamp: time.Now(),
			Uptime:    time.Since(s.startTime).String(),
		},
	})
}

func (s *Server) handleListContexts(c *gin.Context) {
	ids, err := s.manager.List()
	if err != nil {
		s.fail(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: ContextListResponse{
			Contexts: ids,
			Strategy: s.manager.Strategy().Name(),
		},
	})
}

func (s *Server) handleCreateContext(c *gin.Context) {
	var req CreateContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}
	if req.ID == "" {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   "context id is required",
		})
		return
	}

	if err := s.manager.Create(req.ID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    gin.H{"id": req.ID},
	})
}

func (s *Server) handleDeleteContext(c *gin.Context) {
	id := c.Param("id")
	if err := s.manager.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true})
}

func (s *Server) handleSendMessage(c *gin.Context) {
	id := c.Param("id")

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   "message content is required",
		})
		return
	}

	result, err := s.manager.RunTurn(c.Request.Context(), id, req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: MessageResponse{
			ContextID:    id,
			Reply:        result.Reply,
			Blocked:      result.Blocked,
			PromptTokens: result.PromptTokens,
		},
	})
}

// fail maps domain errors onto HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		status = http.StatusConflict
	case errs.IsUpstream(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed: %v", err)
	}
	c.JSON(status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}
