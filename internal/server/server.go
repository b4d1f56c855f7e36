package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chapter-relay/internal/chapters"
	"chapter-relay/internal/pipeline"
	"chapter-relay/pkg/logger"
)

// Generator is the read-only surface the Server needs from the orchestrator.
// Keeping it an interface lets handlers be tested without providers.
type Generator interface {
	Generate(ctx context.Context, req pipeline.GenerationRequest) (*chapters.Collection, error)
	Models(ctx context.Context, provider, credential string) (*pipeline.ModelList, error)
	DefaultProvider() string
}

// Options tune the HTTP surface.
type Options struct {
	ServiceName string
	Tracing     bool
	Metrics     bool
	MetricsPath string
	// LocalProbe reports whether the local model server answers; nil means
	// it never does.
	LocalProbe      func(ctx context.Context) bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server encapsulates the HTTP handler and routing logic
type Server struct {
	gen    Generator
	opts   Options
	engine *gin.Engine
}

// NewServer initialises the HTTP relay.
func NewServer(gen Generator, opts Options) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{gen: gen, opts: opts, engine: gin.New()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupMiddleware() {
	s.engine.Use(recovery())
	s.engine.Use(requestID())
	s.engine.Use(corsAll())
	if s.opts.Tracing {
		s.engine.Use(trace(s.opts.ServiceName))
		s.engine.Use(traceHeader())
	}
	if s.opts.Metrics {
		s.engine.Use(observe())
	}
	s.engine.Use(accessLog())
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/models", s.handleModels)
	s.engine.POST("/generate", s.handleGenerate)
	if s.opts.Metrics {
		s.engine.GET(s.opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

// Start serves on addr until ctx is cancelled, then drains in-flight
// requests for at most ShutdownTimeout.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting chapter relay", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", s.opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
