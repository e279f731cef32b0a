// Package api exposes the chat service over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sofai/sofaid/internal/chat"
	"github.com/sofai/sofaid/internal/history"
)

// Opts holds configuration for the API server.
type Opts struct {
	Host    string
	Port    int
	Store   history.Store
	Chat    *chat.Service
	APIKeys []string // empty disables the x-api-key check
	RatePer float64  // requests per second per client on generation routes
	Burst   int
	Out     io.Writer
}

// Server is the HTTP API in front of the chat service.
type Server struct {
	opts   Opts
	keys   map[string]bool
	limits *keyedLimiter
}

// New creates a Server. Store and Chat are required.
func New(opts Opts) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("api: store is required")
	}
	if opts.Chat == nil {
		return nil, fmt.Errorf("api: chat service is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8000
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	keys := make(map[string]bool, len(opts.APIKeys))
	for _, k := range opts.APIKeys {
		keys[k] = true
	}

	return &Server{
		opts:   opts,
		keys:   keys,
		limits: newKeyedLimiter(opts.RatePer, opts.Burst),
	}, nil
}

// Router builds the gin engine with all middleware and routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLog(), cors())

	router.GET("/health", s.handleHealth)
	router.POST("/chat", s.requireAPIKey(), s.rateLimit(), s.handleChat)
	// /predict is intentionally unauthenticated; it still gets rate limited.
	router.POST("/predict", s.rateLimit(), s.handleChat)
	router.GET("/history", s.handleHistory)
	router.POST("/history/clear", s.handleHistoryClear)
	return router
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	fmt.Fprintf(s.opts.Out, "API listening on http://%s\n", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
