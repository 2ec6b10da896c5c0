package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types pushed to clients.
const (
	MessageTypeNotification = "notification"
	MessageTypeStatus       = "status"
	MessageTypePing         = "ping"
)

var (
	ErrNotConnected = errors.New("user not connected")
	ErrBufferFull   = errors.New("user connection buffer full")
)

// Message is the JSON frame exchanged with browser clients.
type Message struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Target    string         `json:"target,omitempty"`
}

// Manager tracks authenticated connections and routes notifications to
// every connection of a user.
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	hub         *Hub
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// Connection is one browser tab of a user.
type Connection struct {
	ID           string
	UserID       string
	Conn         *websocket.Conn
	Send         chan Message
	ConnectedAt  time.Time
	LastActivity time.Time
	UserAgent    string
	IPAddress    string
	mu           sync.Mutex
}

// Hub owns connection lifecycle so that Send channels are closed exactly
// once.
type Hub struct {
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	stop        chan struct{}
	onRemove    func(*Connection)
	logger      *zap.Logger
}

func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
	m.hub = &Hub{
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stop:        make(chan struct{}),
		onRemove:    m.forget,
		logger:      logger,
	}
	go m.hub.run()
	return m
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// HandleConnection upgrades an already authenticated request.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	if userID == "" {
		return nil, fmt.Errorf("websocket connection requires an authenticated user")
	}
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:           uuid.New().String(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan Message, 64),
		ConnectedAt:  now,
		LastActivity: now,
		UserAgent:    r.Header.Get("User-Agent"),
		IPAddress:    r.RemoteAddr,
	}
	connection.Send <- Message{
		Type:      MessageTypeStatus,
		Data:      map[string]any{"status": "connected", "connection_id": connection.ID},
		Timestamp: now,
		Target:    userID,
	}

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()
	m.hub.register <- connection

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

func (m *Manager) forget(conn *Connection) {
	m.mu.Lock()
	delete(m.connections, conn.ID)
	m.mu.Unlock()
}

// readPump only keeps the connection alive; clients never send commands.
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		select {
		case m.hub.unregister <- conn:
		case <-m.hub.stop:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("websocket read failed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
		conn.mu.Lock()
		conn.LastActivity = time.Now()
		conn.mu.Unlock()
	}
}

func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.connections[conn] = true
			h.logger.Debug("websocket registered",
				zap.String("connection_id", conn.ID),
				zap.String("user_id", conn.UserID))

		case conn := <-h.unregister:
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				h.onRemove(conn)
				close(conn.Send)
				h.logger.Debug("websocket unregistered",
					zap.String("connection_id", conn.ID),
					zap.String("user_id", conn.UserID))
			}

		case <-h.stop:
			for conn := range h.connections {
				delete(h.connections, conn)
				h.onRemove(conn)
				close(conn.Send)
			}
			return
		}
	}
}

// SendToUser queues message on every connection of userID. It fails only
// when the user has no connection that accepted the message.
func (m *Manager) SendToUser(userID string, message Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	message.Target = userID
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	found, delivered := false, 0
	for _, conn := range m.connections {
		if conn.UserID != userID {
			continue
		}
		found = true
		select {
		case conn.Send <- message:
			delivered++
		default:
		}
	}

	switch {
	case !found:
		return ErrNotConnected
	case delivered == 0:
		return ErrBufferFull
	}
	return nil
}

// GetConnectionCount returns the number of active connections.
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// GetUserConnections returns all connections for a specific user.
func (m *Manager) GetUserConnections(userID string) []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var connections []*Connection
	for _, conn := range m.connections {
		if conn.UserID == userID {
			connections = append(connections, conn)
		}
	}
	return connections
}

// Close shuts every connection down.
func (m *Manager) Close() {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	close(m.hub.stop)
	for _, c := range conns {
		c.Conn.Close()
	}
}
