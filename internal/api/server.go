package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/feed"
	"github.com/nerrad567/gray-logic-presence/internal/history"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports whether an optional connection is up.
// *mqtt.Client and *influxdb.Client satisfy it.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Reader  *presence.Reader
	Version string

	// Optional.
	History  history.Repository
	Bus      *presence.EventBus
	Ingest   func() feed.Stats
	MQTT     ConnectionStatus
	InfluxDB ConnectionStatus
	DB       *database.DB
}

// Server is the HTTP API server for Gray Logic Presence.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	reader    *presence.Reader
	history   history.Repository
	bus       *presence.EventBus
	ingest    func() feed.Stats
	mqtt      ConnectionStatus
	influx    ConnectionStatus
	db        *database.DB
	version   string
	startTime time.Time

	hub    *Hub
	server *http.Server
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new API server. The server is not started until Start is
// called; Hub and Handler are usable immediately.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Reader == nil {
		return nil, fmt.Errorf("presence reader is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		reader:    deps.Reader,
		history:   deps.History,
		bus:       deps.Bus,
		ingest:    deps.Ingest,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}
	s.hub.snapshot = func() any {
		return renderSnapshot(s.reader.Snapshot(), s.reader.Location())
	}
	return s, nil
}

// Hub returns the WebSocket hub. Subscribe Hub().HandleEvent to the
// presence event bus to relay events to clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine
// and starts the periodic WebSocket snapshot broadcast.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(srvCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.snapshotLoop(srvCtx)
	}()

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		s.wg.Wait()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("API server listening", "address", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// snapshotLoop broadcasts the full snapshot on presence.snapshot at the
// configured interval while at least one client is connected.
func (s *Server) snapshotLoop(ctx context.Context) {
	interval := time.Duration(s.wsCfg.SnapshotInterval) * time.Second
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			s.hub.Broadcast(ChannelSnapshot, renderSnapshot(s.reader.Snapshot(), s.reader.Location()))
		}
	}
}
