package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pricinglab/internal/infrastructure"
)

const (
	writeWait = 10 * time.Second

	// Clients only send control frames and close messages.
	maxInboundBytes = 512

	sendBufferSize = 64
)

// Timing controls keepalive. PingPeriod must be shorter than PongWait.
type Timing struct {
	PingPeriod time.Duration
	PongWait   time.Duration
}

// DefaultTiming matches the configuration defaults.
var DefaultTiming = Timing{PingPeriod: 30 * time.Second, PongWait: 60 * time.Second}

func (t Timing) valid() bool {
	return t.PingPeriod > 0 && t.PongWait > t.PingPeriod
}

// Client is one dashboard connection. The hub writes into send; the write
// pump drains it onto the socket.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
	timing      Timing

	logger *slog.Logger
}

// NewClient wraps conn. traceID is the id of the upgrade request and tags
// the connection's log lines and connect message. Invalid timing falls
// back to DefaultTiming.
func NewClient(hub *Hub, conn Connection, traceID string, timing Timing, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if !timing.valid() {
		timing = DefaultTiming
	}
	id := uuid.NewString()
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		timing:      timing,
		logger:      logger.With(slog.String("component", "websocket.client"), slog.String("client_id", id)),
	}
}

// ID is the server-assigned client id.
func (c *Client) ID() string { return c.id }

func (c *Client) context() context.Context {
	if c.traceID == "" {
		return context.Background()
	}
	return infrastructure.WithTraceID(context.Background(), c.traceID)
}

// Serve attaches the client to its hub and starts both pumps. It does not
// block. A stopped hub closes the connection at once.
func (c *Client) Serve() {
	if !c.hub.attach(c) {
		c.conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames and detects a vanished peer through the
// pong deadline.
func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c, "peer closed")
		c.conn.Close()
	}()

	deadline := func() error { return c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait)) }
	c.conn.SetReadLimit(maxInboundBytes)
	deadline()
	c.conn.SetPongHandler(func(string) error { return deadline() })

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.logger.WarnContext(c.context(), "websocket closed unexpectedly", slog.String("error", err.Error()))
		}
		return
	}
}

// writePump forwards queued events and sends pings. It exits when the hub
// closes send or a write fails.
func (c *Client) writePump() {
	ping := time.NewTicker(c.timing.PingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, []byte{})
				return
			}
			if err := write(websocket.TextMessage, msg); err != nil {
				c.logger.DebugContext(c.context(), "websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "websocket ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}
