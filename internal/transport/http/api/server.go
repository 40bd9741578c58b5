package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"fplpilot/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server serves the JSON API plus any extra handlers mounted on it.
type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr  string
	Pilot Autopilot
	Calls CallLog
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pilot == nil {
		return nil, errors.New("api server requires an autopilot service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "season": cfg.Pilot.Season()})
	})
	NewRouter(cfg.Pilot, cfg.Calls).Register(router.Group("/api"))
	return &Server{addr: cfg.Addr, router: router}, nil
}

// Mount attaches h to every method on path, e.g. the MCP endpoint.
func (s *Server) Mount(path string, h http.Handler) {
	path = "/" + strings.Trim(path, "/")
	s.router.Any(path, gin.WrapH(h))
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or listening fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[api] listening on %s", s.addr)

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
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
