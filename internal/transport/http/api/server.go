// Package apihttp serves the screenshot analysis API: one analyze
// endpoint with an optional SSE streaming mode, plus history queries.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chartsight/internal/engine"
	"chartsight/internal/logger"
	"chartsight/internal/store/history"
)

// Server hosts the analysis HTTP API.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the API server dependencies. Store may be nil
// when history is disabled; the history routes then answer 404.
type ServerConfig struct {
	Addr   string
	Engine *engine.Engine
	Store  *history.Store
}

// NewServer builds the API server and registers all routes.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("api http server requires an engine")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.MaxMultipartMemory = maxUploadBytes

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{engine: cfg.Engine, store: cfg.Store}
	api := router.Group("/api")
	api.POST("/analyze", h.handleAnalyze)
	api.GET("/history", h.handleHistoryList)
	api.GET("/history/:id", h.handleHistoryGet)
	api.GET("/history/:id/summary", h.handleHistorySummary)
	api.DELETE("/history/:id", h.handleHistoryDelete)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr reports the listen address, mainly for startup logs.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}
