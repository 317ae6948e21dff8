package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"

	"github.com/serpfi/auctiond/pkg/auction"
)

// WebSocketServer streams auction events to connected clients
type WebSocketServer struct {
	events   *auction.EventLog
	upgrader websocket.Upgrader
	clients  map[string]*Client
	logger   log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// Client represents a connected event consumer
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
}

// Message represents a WebSocket message
type Message struct {
	Type      string        `json:"type"`
	Event     auction.Event `json:"event,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// NewWebSocketServer creates a new WebSocket server
func NewWebSocketServer(events *auction.EventLog, logger log.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins fanning out auction events to clients
func (s *WebSocketServer) Start() {
	go s.fanout()
}

// Stop closes all client connections
func (s *WebSocketServer) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		close(c.send)
		c.conn.Close()
	}
	s.clients = make(map[string]*Client)
}

// ServeHTTP upgrades the connection and registers the client
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		ID:   fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano()),
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()
	s.logger.Info("websocket client connected", "client", client.ID)

	go s.writePump(client)
	go s.readPump(client)
}

func (s *WebSocketServer) fanout() {
	ch := s.events.Subscribe()
	for {
		select {
		case <-s.ctx.Done():
			return
		case e := <-ch:
			msg := Message{
				Type:      "auctionEvent",
				Event:     e,
				Timestamp: time.Now().UnixMilli(),
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			s.mu.RLock()
			for _, c := range s.clients {
				select {
				case c.send <- data:
				default:
				}
			}
			s.mu.RUnlock()
		}
	}
}

func (s *WebSocketServer) writePump(c *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketServer) readPump(c *Client) {
	defer func() {
		s.mu.Lock()
		if _, ok := s.clients[c.ID]; ok {
			delete(s.clients, c.ID)
			close(c.send)
		}
		s.mu.Unlock()
		c.conn.Close()
		s.logger.Info("websocket client disconnected", "client", c.ID)
	}()

	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
