package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/coordinator"
	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/logging"
)

const (
	defaultShutdownTimeout = 10 * time.Second

	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// ShutdownTimeout bounds graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration

	// TokenSecret enables bearer token auth when non-empty
	TokenSecret string
	TokenTTL    time.Duration
}

// Addr returns host:port
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Server serves the REST API and WebSocket stream of one entry
type Server struct {
	config   Config
	coord    *coordinator.Coordinator
	entities *entity.Set
	tokens   *TokenIssuer

	router *gin.Engine
	http   *http.Server
	hub    *Hub

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a server for a coordinator and the entities derived from it
func New(cfg Config, coord *coordinator.Coordinator, entities *entity.Set) *Server {
	gin.SetMode(gin.ReleaseMode)

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		config:   cfg,
		coord:    coord,
		entities: entities,
		tokens:   NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL),
		router:   gin.New(),
	}
	s.hub = NewHub(entities, coord)

	s.setupRoutes()

	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Tokens returns the issuer used to sign and check bearer tokens
func (s *Server) Tokens() *TokenIssuer {
	return s.tokens
}

// Start binds the listen address and serves in the background. Bind errors
// are returned directly.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	s.listener = listener

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server failed", zap.Error(err))
		}
	}()

	logging.Info("HTTP server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("auth", s.tokens.Enabled()),
	)
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr()
}

// ListenAndServe starts the server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, closes WebSocket clients and waits for
// in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down HTTP server")

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	err := s.http.Shutdown(ctx)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("HTTP server stopped")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}
	return err
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware())
	s.router.Use(CORSMiddleware())

	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	v1.Use(AuthMiddleware(s.tokens))
	{
		v1.GET("/status", s.getStatus)
		v1.POST("/refresh", s.refresh)

		v1.GET("/nodes", s.listNodes)
		v1.GET("/nodes/:id", s.getNode)

		v1.GET("/entities", s.listEntities)
		v1.GET("/entities/:id", s.getEntity)

		climate := v1.Group("/climate/:id")
		{
			climate.POST("/hvac_mode", s.setHVACMode)
			climate.POST("/temperature", s.setTemperature)
			climate.POST("/fan_mode", s.setFanMode)
		}

		sw := v1.Group("/switch/:id")
		{
			sw.POST("/on", s.turnOn)
			sw.POST("/off", s.turnOff)
		}

		v1.POST("/number/:id/value", s.setNumber)

		v1.GET("/ws", s.serveWs)
	}
}
