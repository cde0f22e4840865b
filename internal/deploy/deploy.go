// internal/deploy/deploy.go

// Package deploy serves a loaded engine behind an OpenAI-compatible HTTP
// front end: completions, chat completions, model listing, health, and a
// websocket token stream. One deployment serves exactly one model.
package deploy

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mwiater/paragon/internal/engine"
)

// Options configures a deployment.
type Options struct {
	Engine *engine.Engine
	Model  string
	Addr   string
	Debug  bool
}

// Server is a running deployment. It does not own the engine; the caller
// closes it after Stop.
type Server struct {
	engine     *engine.Engine
	model      string
	addr       string
	instanceID string
	started    time.Time

	router   *gin.Engine
	srv      *http.Server
	listener net.Listener
}

// New builds a deployment server around a loaded engine.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("deploy: no engine")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("deploy: no model name")
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:     opts.Engine,
		model:      opts.Model,
		addr:       opts.Addr,
		instanceID: uuid.NewString(),
		started:    time.Now(),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	v1 := router.Group("/v1")
	{
		v1.GET("/health", s.healthHandler)
		v1.GET("/models", s.modelsHandler)
		v1.POST("/completions", s.completionsHandler)
		v1.POST("/chat/completions", s.chatHandler)
		v1.GET("/stream", s.streamHandler)
	}
	s.router = router

	return s, nil
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// InstanceID identifies this deployment instance.
func (s *Server) InstanceID() string {
	return s.instanceID
}

// Addr returns the listen address, resolved to the actual port once the
// server has started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listen address and serves in the background. Binding
// happens synchronously so an occupied port fails here, not later.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("deploy: listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{Handler: s.router}
	s.started = time.Now()

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("deployment %s stopped: %v", s.instanceID, err)
		}
	}()

	log.Printf("Deployment %s serving model %s on %s", s.instanceID, s.model, ln.Addr())
	return nil
}

// Stop shuts the server down gracefully, waiting for in-flight requests
// until the context expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	log.Printf("Shutting down deployment %s...", s.instanceID)
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("deploy: shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
