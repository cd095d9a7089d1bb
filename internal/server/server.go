package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"xianyu-autosell/config"
	"xianyu-autosell/internal/handler"
	"xianyu-autosell/internal/middleware"
	"xianyu-autosell/internal/redis"
	"xianyu-autosell/internal/transport/httpdto"
	"xianyu-autosell/internal/websocket"
	"xianyu-autosell/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Orders    *handler.OrderHandler
	AutoSell  *handler.AutoSellHandler
	WebSocket *websocket.Handler
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// SetupRoutes mounts the API. limiter may be nil.
func (s *Server) SetupRoutes(handlers *Handlers, checks map[string]HealthCheck, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		status := gin.H{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			resp := httpdto.NewErrorResponse("unhealthy", "UNHEALTHY")
			resp.Data = status
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy", "checks": status}))
	})

	v1 := s.engine.Group("/v1", middleware.OperatorAuth(s.config.OperatorJWTSecret))
	{
		v1.POST("/events/order-message", handlers.Orders.IngestMessage)

		orders := v1.Group("/orders")
		orders.GET("", handlers.Orders.List)
		orders.GET("/:orderId", handlers.Orders.Get)
		orders.POST("/:orderId/refresh", handlers.Orders.Refresh)

		autosell := v1.Group("/autosell")
		autosell.POST("/process", middleware.RateLimitMiddleware(limiter, "process", s.logger), handlers.AutoSell.Process)
		autosell.GET("/orders/:orderId/deliveries", handlers.AutoSell.Deliveries)
		autosell.GET("/rules/:ruleId/stock", handlers.AutoSell.StockStatus)
		autosell.POST("/rules/:ruleId/stock", handlers.AutoSell.ImportStock)
		autosell.POST("/rules/:ruleId/stock/upload-url", handlers.AutoSell.StockUploadURL)

		if handlers.WebSocket != nil {
			v1.GET("/ws", handlers.WebSocket.Connect)
		}
	}
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
			return err
		}
		return nil
	case <-ctx.Done():
	}

	if s.logger != nil {
		s.logger.Infof("Shutdown requested, draining connections for up to 5 seconds")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
