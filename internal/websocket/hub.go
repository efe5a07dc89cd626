package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"regsys/internal/infrastructure"
	"regsys/internal/license"
)

// Message types pushed to clients
const (
	TypeConnection    = "connection"
	TypeLicenseStatus = "license:status"
)

const broadcastBuffer = 64

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Hub fans license status reports out to connected clients. The client set is
// owned by the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *slog.Logger

	active       atomic.Int64
	messagesSent atomic.Int64
	dropped      atomic.Int64
}

var _ license.Observer = (*Hub)(nil)

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.logger.InfoContext(ctx, "Hub shutting down",
				slog.Int64("messages_sent", h.messagesSent.Load()),
				slog.Int64("reports_dropped", h.dropped.Load()))
			return nil

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.active.Store(int64(len(h.clients)))

			cctx := infrastructure.WithTraceID(ctx, client.traceID)
			h.logger.InfoContext(cctx, "Client registered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			welcome, err := encode(TypeConnection, map[string]string{
				"status":    "connected",
				"client_id": client.id,
			}, client.traceID)
			if err == nil {
				select {
				case client.send <- welcome:
				default:
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.InfoContext(ctx, "Client unregistered",
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
					h.messagesSent.Add(1)
				default:
					h.drop(client)
					h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.active.Store(int64(len(h.clients)))
}

// Register adds client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// LicenseStatusChanged implements license.Observer. It never blocks the
// engine: when the queue is full the report is dropped.
func (h *Hub) LicenseStatusChanged(ctx context.Context, report license.Report) {
	data, err := encode(TypeLicenseStatus, report, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling status message", slog.String("error", err.Error()))
		return
	}

	select {
	case <-h.done:
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
		h.logger.WarnContext(ctx, "Broadcast queue full, status report dropped")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.active.Load())
}

func encode(messageType string, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
	})
}
