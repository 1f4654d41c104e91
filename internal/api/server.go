// Package api serves the trend dashboard over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"soltrend/internal/metrics"
	"soltrend/internal/model"
	"soltrend/internal/trendengine"
)

// SnapshotSource provides the latest trend snapshot, nil until the first
// successful refresh.
type SnapshotSource interface {
	Latest() *trendengine.Snapshot
}

// Asker answers questions about the market.
type Asker interface {
	Ask(ctx context.Context, summaryText, question string) (string, error)
}

// TransactionLog lists observed wallet transactions, newest first.
type TransactionLog interface {
	Recent(n int) []model.Transaction
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr           string
	Mode           string // gin mode: debug, release or test
	AllowedOrigins []string
}

// Deps are the collaborators behind the routes. Only Snapshots is required;
// routes backed by a nil dependency answer 503.
type Deps struct {
	Snapshots SnapshotSource
	Assistant Asker
	Wallet    TransactionLog
	Live      http.Handler // websocket feed
	Health    *metrics.HealthStatus
	Metrics   *metrics.Metrics
}

// Server represents the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	deps       Deps
}

// NewServer creates the router and registers every route.
func NewServer(config ServerConfig, deps Deps) (*Server, error) {
	if deps.Snapshots == nil {
		return nil, errors.New("api: snapshot source is required")
	}
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 0 || (len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{router: router, config: config, deps: deps}
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if s.deps.Live != nil {
		s.router.GET("/ws", gin.WrapH(s.deps.Live))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/trend", s.handleTrend)
		v1.GET("/trend/text", s.handleTrendText)
		v1.GET("/indicators", s.handleIndicators)
		v1.POST("/assistant", s.handleAssistant)
		v1.GET("/wallet/transactions", s.handleWalletTransactions)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("component", "api").Str("addr", s.config.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/healthz" {
			return
		}
		log.Debug().
			Str("component", "api").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
