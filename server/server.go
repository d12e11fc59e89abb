package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cyp0633/libagenda/agenda"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// Server serves the agenda HTTP API
type Server struct {
	service *agenda.Service
	feed    *agenda.FeedWriter
	logger  zerolog.Logger
	router  *gin.Engine
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used for access and error logs
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server and registers its routes
func New(service *agenda.Service, feed *agenda.FeedWriter, opts ...Option) *Server {
	s := &Server{
		service: service,
		feed:    feed,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery(), accessLog(s.logger), ActorMiddleware())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	// Public routes
	api.GET("/agenda", s.getAgenda)
	api.GET("/agenda.ics", s.getICalFeed)
	api.GET("/agenda.xml", s.getXMLFeed)

	rules := api.Group("/rules")
	{
		rules.POST("/build", s.buildRule)
		rules.POST("/describe", s.describeRule)
		rules.POST("/expand", s.expandRule)
	}

	items := api.Group("/items")
	items.Use(RequireActor())
	{
		items.GET("", s.listItems)
		items.POST("", s.createItem)
		items.GET("/:id", s.getItem)
		items.PATCH("/:id", s.updateItem)
		items.PUT("/:id/status", s.moderateItem)
		items.DELETE("/:id", s.deleteItem)
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
