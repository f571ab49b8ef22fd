// Package monitor provides the real-time WebSocket server for observing
// sync activity.
//
// The monitor broadcasts reconcile outcomes and conflict alerts to
// connected WebSocket clients, and serves the recent sync timeline over
// HTTP so a freshly connected client can backfill before live events
// start arriving.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/boardpilot/boardpilot/internal/daemon"
)

// MessageType defines the type of monitor message.
type MessageType string

const (
	// MessageTypeSyncOutcome carries one settled reconcile outcome.
	MessageTypeSyncOutcome MessageType = "sync_outcome"

	// MessageTypeConflict flags a dashboard that diverged on both sides.
	MessageTypeConflict MessageType = "conflict"

	// MessageTypeHello is sent to a client right after connecting.
	MessageTypeHello MessageType = "hello"
)

// Message represents a monitor broadcast message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// OutcomeData is the wire form of one reconcile outcome.
type OutcomeData struct {
	Kind        string `json:"kind"`
	DashboardID string `json:"dashboard_id"`
	Name        string `json:"name,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Server manages WebSocket connections and broadcasts sync activity.
// It implements daemon.Reporter, so it can be handed straight to the
// reconcile daemon.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	journal  *daemon.Journal

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Port to listen on (default: 8484)
	Port int

	// Journal backfills the timeline endpoint; may be nil.
	Journal *daemon.Journal

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8484,
		Logger: log.Default(),
	}
}

// NewServer creates a new monitor WebSocket server.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		journal:   config.Journal,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/timeline", s.handleTimeline)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Monitor server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping monitor server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("Monitor server stopped")
	return nil
}

// Report implements daemon.Reporter: each reconcile outcome becomes a
// broadcast message, with conflicts flagged under their own type.
func (s *Server) Report(outcome daemon.Outcome) {
	data := OutcomeData{
		Kind:        string(outcome.Kind),
		DashboardID: outcome.DashboardID,
		Name:        outcome.Name,
	}
	if outcome.Err != nil {
		data.Error = outcome.Err.Error()
	}

	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal outcome: %v", err)
		return
	}

	msgType := MessageTypeSyncOutcome
	if outcome.Kind == daemon.OutcomeConflict {
		msgType = MessageTypeConflict
	}

	s.Broadcast(Message{Type: msgType, Timestamp: outcome.At, Data: payload})
}

// Broadcast sends a message to all connected clients.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop fans queued messages out to every client.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the read lock to avoid blocking broadcasts
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Allow all origins for development
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	hello := Message{Type: MessageTypeHello, Timestamp: time.Now()}
	helloData, _ := json.Marshal(hello)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, helloData)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles disconnects.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Client messages are not processed, the read just detects close
	}
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleTimeline returns the most recent reconcile outcomes from the
// journal so clients can backfill before live events arrive.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.journal == nil {
		_ = json.NewEncoder(w).Encode([]OutcomeData{})
		return
	}

	outcomes, err := s.journal.Tail(100)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read timeline: %v", err), http.StatusInternalServerError)
		return
	}

	entries := make([]OutcomeData, 0, len(outcomes))
	for _, outcome := range outcomes {
		entry := OutcomeData{
			Kind:        string(outcome.Kind),
			DashboardID: outcome.DashboardID,
			Name:        outcome.Name,
		}
		if outcome.Err != nil {
			entry.Error = outcome.Err.Error()
		}
		entries = append(entries, entry)
	}
	_ = json.NewEncoder(w).Encode(entries)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleRoot returns basic server information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>BoardPilot Monitor</title>
</head>
<body>
    <h1>BoardPilot Sync Monitor</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Timeline backfill: <a href="/timeline">/timeline</a></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect a WebSocket client to receive live sync outcomes.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
