package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/planwright/planwright/internal/application/usecase"
	"github.com/planwright/planwright/internal/interfaces/http/handlers"
	ws "github.com/planwright/planwright/internal/interfaces/websocket"
	"go.uber.org/zap"
)

// Server is the HTTP surface: REST API plus the websocket event stream.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// NewServer wires the router, handlers, and websocket endpoint.
func NewServer(cfg Config, uc *usecase.AgentUseCase, hub *ws.Hub, logger *zap.Logger) *Server {
	if cfg.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	agentHandler := handlers.NewAgentHandler(uc, logger)
	requestHandler := handlers.NewRequestHandler(uc, logger)

	setupRoutes(router, agentHandler, requestHandler, hub)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, agentHandler *handlers.AgentHandler, requestHandler *handlers.RequestHandler, hub *ws.Hub) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	router.GET("/ws", gin.WrapF(hub.ServeWS))

	api := router.Group("/api")
	{
		api.POST("/agents", agentHandler.CreateAgent)
		api.GET("/agents", agentHandler.ListAgents)
		api.GET("/agents/:id", agentHandler.GetAgent)
		api.POST("/agents/:id/command", agentHandler.SubmitCommand)
		api.POST("/agents/:id/approve", agentHandler.ApprovePlan)
		api.POST("/agents/:id/reject", agentHandler.RejectPlan)
		api.GET("/agents/:id/plan", agentHandler.GetPlan)
		api.POST("/agents/:id/plan/reorder", agentHandler.ReorderSteps)

		api.GET("/requests", requestHandler.ListRequests)
	}
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
