package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pricinglab/internal/infrastructure"
	"pricinglab/pkg/contracts/events"
)

// publishQueueSize bounds events waiting for fan-out. Publish never blocks;
// events past the bound are dropped and counted.
const publishQueueSize = 256

// Hub fans dashboard events out to every connected client.
type Hub struct {
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	queue chan []byte

	mu      sync.RWMutex
	clients map[*Client]struct{}
	started bool
	stopped bool

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	connections atomic.Int64
	sent        atomic.Int64
	dropped     atomic.Int64
}

// HubStats is a point-in-time view of hub counters.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// NewHub returns an idle hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		logger:  logger.With(slog.String("component", "websocket.hub")),
		metrics: metrics,
		queue:   make(chan []byte, publishQueueSize),
		clients: make(map[*Client]struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the fan-out loop. Only the first call has an effect.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.stopped {
		return
	}
	h.started = true
	go h.loop()
}

// Stop ends the loop and disconnects every client. A stopped hub refuses
// new clients. Stop is safe on a hub that was never started.
func (h *Hub) Stop() {
	h.mu.Lock()
	wasStarted := h.started && !h.stopped
	h.stopped = true
	h.mu.Unlock()

	h.quitOnce.Do(func() { close(h.quit) })
	if wasStarted {
		<-h.done
	}

	h.mu.Lock()
	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	h.logger.Info("hub stopped", slog.Int("disconnected", n))
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			return
		case msg := <-h.queue:
			h.deliver(msg)
		}
	}
}

// attach registers c and queues its connect message. It reports false once
// the hub has stopped.
func (h *Hub) attach(c *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	active := len(h.clients)
	h.mu.Unlock()

	h.connections.Add(1)
	ctx := c.context()
	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(ctx, 1)
	}
	h.logger.InfoContext(ctx, "client connected",
		slog.String("client_id", c.id),
		slog.String("remote_addr", c.remoteAddr),
		slog.Int("active_clients", active))

	if hello, err := h.encode(ctx, events.MessageTypeConnect, map[string]string{
		"status":    "connected",
		"client_id": c.id,
	}); err == nil {
		select {
		case c.send <- hello:
		default:
		}
	}
	return true
}

// detach drops c and closes its send channel. Repeated calls are no-ops.
func (h *Hub) detach(c *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	active := len(h.clients)
	h.mu.Unlock()

	ctx := c.context()
	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(ctx, -1)
	}
	h.logger.InfoContext(ctx, "client disconnected",
		slog.String("client_id", c.id),
		slog.String("reason", reason),
		slog.Duration("connected_for", time.Since(c.connectedAt)),
		slog.Int("active_clients", active))
}

// deliver hands msg to every client. A client whose buffer is full is
// disconnected rather than allowed to stall the others.
func (h *Hub) deliver(msg []byte) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.clients {
		select {
		case c.send <- msg:
			h.sent.Add(1)
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.detach(c, "send buffer full")
	}
}

// Publish queues an event for every connected client. The trace id of ctx
// travels with the message. When the queue is full the event is dropped.
func (h *Hub) Publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	msg, err := h.encode(ctx, msgType, data)
	if err != nil {
		return
	}
	select {
	case h.queue <- msg:
	default:
		h.dropped.Add(1)
		h.logger.WarnContext(ctx, "event dropped, publish queue full",
			slog.String("message_type", string(msgType)))
	}
}

func (h *Hub) encode(ctx context.Context, msgType events.MessageType, data interface{}) ([]byte, error) {
	out, err := json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.NewString(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   infrastructure.GetTraceID(ctx),
		},
		Data: data,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "event encoding failed",
			slog.String("message_type", string(msgType)),
			slog.String("error", err.Error()))
	}
	return out, err
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the current hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.connections.Load(),
		MessagesSent:     h.sent.Load(),
		MessagesDropped:  h.dropped.Load(),
	}
}
