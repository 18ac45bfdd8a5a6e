// Package api exposes the task scheduler and query interface over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"language-toolkit/internal/logger"
	"language-toolkit/internal/tasks"
	"language-toolkit/internal/translation"
)

// Options wires a Server.
type Options struct {
	Addr string
	// Token enables bearer authentication on the task routes when set.
	Token string
	// WorkRoot receives per-task directories for uploaded inputs.
	WorkRoot string
	// MaxUploadBytes bounds a multipart submission. Zero means 32 MB.
	MaxUploadBytes int64
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front end.
type Server struct {
	scheduler *tasks.Scheduler
	query     *tasks.Query
	router    *translation.Router
	opts      Options
	engine    *gin.Engine
}

func NewServer(scheduler *tasks.Scheduler, query *tasks.Query, router *translation.Router, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	s := &Server{
		scheduler: scheduler,
		query:     query,
		router:    router,
		opts:      opts,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", s.health)
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	authed := r.Group("/", bearerAuth(s.opts.Token))
	authed.GET("/languages", s.languages)
	authed.POST("/submit/:kind", s.submit)
	authed.GET("/tasks", s.listTasks)
	authed.GET("/tasks/:id", s.getTask)
	authed.GET("/tasks/:id/result", s.getResult)
	authed.GET("/tasks/:id/result/:index", s.getResult)
	authed.POST("/tasks/:id/cancel", s.cancelTask)
	authed.DELETE("/tasks/:id", s.deleteTask)
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started on %s", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
		return err
	}
	return nil
}
