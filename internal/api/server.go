package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/signage-core/internal/audit"
	"github.com/nerrad567/signage-core/internal/auth"
	"github.com/nerrad567/signage-core/internal/infrastructure/config"
	"github.com/nerrad567/signage-core/internal/infrastructure/logging"
	"github.com/nerrad567/signage-core/internal/signage"
)

const (
	gracefulShutdownTimeout = 10 * time.Second

	// auditChanSize bounds queued audit entries; overflow is dropped.
	auditChanSize = 256
)

// HealthChecker is implemented by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the collaborators of the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Service  *signage.Service

	// Hub delivers change notifications to websocket clients. The caller
	// owns it so it can also be registered as the service's event sink.
	Hub *Hub

	// Optional collaborators.
	AuditRepo audit.Repository
	Presence  *auth.Presence
	Health    map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for Signage Core.
//
// Thread Safety: all methods are safe for concurrent use.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	service   *signage.Service
	hub       *Hub
	auditRepo audit.Repository
	auditCh   chan *audit.Entry
	presence  *auth.Presence
	health    map[string]HealthChecker
	version   string

	server *http.Server
	cancel context.CancelFunc
	done   chan struct{}
}

// New validates deps and returns a server that is not yet listening.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("signage service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		service:   deps.Service,
		hub:       deps.Hub,
		auditRepo: deps.AuditRepo,
		presence:  deps.Presence,
		health:    deps.Health,
		version:   deps.Version,
	}
	if s.presence == nil {
		s.presence = auth.NewPresence(0)
	}
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger, s.presence)
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	return s, nil
}

// Hub returns the websocket hub serving this server's clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router. Start uses it; tests call it directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the audit writer, the hub and the HTTP listener in the
// background. Call Close to stop them.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.done = make(chan struct{})
	if s.auditCh != nil {
		go func() {
			defer close(s.done)
			s.drainAuditLog(srvCtx)
		}()
	} else {
		close(s.done)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close stops accepting requests, waits up to 10 seconds for in-flight
// ones, disconnects websocket clients and flushes queued audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
