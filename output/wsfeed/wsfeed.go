// Package wsfeed provides a websocket sink broadcasting completed
// matches to connected clients.
package wsfeed

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
	"github.com/c360/streamcep/output"
)

// Config holds configuration for the websocket sink.
type Config struct {
	// Port to listen on. Zero picks an ephemeral port, mainly for tests.
	Port int    `json:"port"`
	Path string `json:"path"`

	// WriteTimeout bounds each client write; a slow client is dropped
	// rather than stalling the broadcast.
	WriteTimeout time.Duration `json:"writeTimeout"`
	PingInterval time.Duration `json:"pingInterval"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("port %d out of range", c.Port))
	}
	return nil
}

// DefaultConfig returns default configuration for the websocket sink.
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		Path:         "/matches",
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Sink runs a websocket endpoint and broadcasts every match group to
// all connected clients.
type Sink struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	sent    int64

	listener net.Listener
	server   *http.Server

	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	running   bool
}

// NewSink creates a websocket sink from validated configuration.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		cfg:    cfg,
		logger: logger.With("component", "ws_sink"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:  make(map[*websocket.Conn]bool),
		shutdown: make(chan struct{}),
	}, nil
}

// Start begins listening and serving websocket upgrades.
func (s *Sink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Sink", "Start", "start websocket sink")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return errors.WrapFatal(err, "Sink", "Start", "listen for websocket clients")
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)
	s.server = &http.Server{Handler: mux}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("websocket server stopped", "error", err)
		}
	}()
	go s.pingLoop()

	s.running = true
	s.logger.Info("websocket sink started", "addr", ln.Addr().String(), "path", s.cfg.Path)
	return nil
}

// Addr returns the bound listen address, useful when Port was zero.
func (s *Sink) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Sink) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Debug("client connected", "remote", conn.RemoteAddr().String(), "clients", count)

	// Reader loop: discard inbound frames, detect disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.removeClient(conn)
				return
			}
		}
	}()
}

func (s *Sink) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		_ = conn.Close()
	}
	s.mu.Unlock()
}

// WriteMatch broadcasts one encoded match group to every client. Client
// write failures drop that client; they never fail the broadcast.
func (s *Sink) WriteMatch(match *event.PartialMatch) error {
	data, err := output.EncodeMatch(match)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.sent++
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug("dropping slow client", "remote", c.RemoteAddr().String(), "error", err)
			s.removeClient(c)
		}
	}
	return nil
}

// Flush is a no-op; writes are unbuffered.
func (s *Sink) Flush() error { return nil }

// Sent returns the number of match groups broadcast so far.
func (s *Sink) Sent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// ClientCount returns the number of connected clients.
func (s *Sink) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Sink) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.mu.Lock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for c := range s.clients {
				conns = append(conns, c)
			}
			s.mu.Unlock()
			for _, c := range conns {
				_ = c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.removeClient(c)
				}
			}
		}
	}
}

// Stop disconnects all clients and shuts the server down.
func (s *Sink) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	server := s.server
	for c := range s.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.shutdown) })

	if server != nil {
		_ = server.Close()
	}

	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("%w after %v", errors.ErrShutdownTimeout, timeout),
			"Sink", "Stop", "join server goroutines")
	}
	return nil
}
