package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const notifierWriteTimeout = 5 * time.Second

// Event is one notification pushed to connected clients: automation run
// progress, broadcast outcomes, provisioning completions.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Notifier fans events out to websocket subscribers. Slow or broken
// connections are dropped rather than allowed to block the publishers.
type Notifier struct {
	upgrader websocket.Upgrader
	metrics  *Metrics
	logger   Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	// writeMu serializes fan-out: the websocket library allows only one
	// concurrent writer per connection.
	writeMu sync.Mutex
}

// NewNotifier builds an empty hub.
func NewNotifier(metrics *Metrics, logger Logger) *Notifier {
	return &Notifier{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: metrics,
		logger:  logger.NewSystem("notifier"),
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// HandleWS upgrades the request and registers the connection until the
// peer disconnects. Inbound messages are read only to detect closure.
func (n *Notifier) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	n.add(conn)
	defer n.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends the event to every connected client.
func (n *Notifier) Publish(eventType string, data any) {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		n.logger.Error("failed to marshal event", "type", eventType, "error", err)
		return
	}

	n.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(n.conns))
	for conn := range n.conns {
		conns = append(conns, conn)
	}
	n.mu.Unlock()

	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(notifierWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			n.logger.Debug("dropping websocket client", "error", err)
			n.remove(conn)
			conn.Close()
		}
	}
}

func (n *Notifier) add(conn *websocket.Conn) {
	n.mu.Lock()
	n.conns[conn] = struct{}{}
	count := len(n.conns)
	n.mu.Unlock()
	if n.metrics != nil {
		n.metrics.ConnectedClients.Set(float64(count))
	}
	n.logger.Debug("websocket client connected", "clients", count)
}

func (n *Notifier) remove(conn *websocket.Conn) {
	n.mu.Lock()
	delete(n.conns, conn)
	count := len(n.conns)
	n.mu.Unlock()
	if n.metrics != nil {
		n.metrics.ConnectedClients.Set(float64(count))
	}
}
