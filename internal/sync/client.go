package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"

	"github.com/calebmorris/choreboard/internal/famerr"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is one WebSocket connection: it reads command requests, hands
// them to the dispatcher, and writes responses plus any subscription
// events queued by the hub.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	disp   *Dispatcher
	logger *slog.Logger
	send   chan []byte

	// subscriptionID is the request id of this client's subscribe command,
	// echoed on every pushed event. Zero means not subscribed.
	subscriptionID atomic.Int64
}

func NewClient(hub *Hub, conn *ws.Conn, disp *Dispatcher, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		disp:   disp,
		logger: logger,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Run registers the client, starts the write pump, and runs the read loop.
// It blocks until the connection closes, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A dead write pump cancels the context so the read loop (and any
	// response blocked on the send channel) tears down with it.
	go func() {
		c.writePump(ctx)
		cancel()
	}()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	for {
		_, raw, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handle(ctx, raw)
	}
}

// handle processes one request and queues the response. Mutations trigger
// a snapshot broadcast to all subscribers after the response is queued, so
// the caller sees its result before the state push.
func (c *Client) handle(ctx context.Context, raw []byte) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.logger.Warn("malformed request", "error", err)
		return
	}

	switch req.Type {
	case "subscribe":
		// Zero doubles as the not-subscribed sentinel, so it cannot be a
		// valid subscription id.
		if req.ID <= 0 {
			c.reply(ctx, errorResult(req.ID, "invalid_state", "subscribe requires a positive id"))
			return
		}
		snap, err := c.disp.Snapshot()
		if err != nil {
			c.logger.Error("build snapshot", "error", err)
			c.reply(ctx, errorResult(req.ID, famerr.Code(err), "snapshot failed"))
			return
		}
		c.subscriptionID.Store(req.ID)
		c.reply(ctx, successResult(req.ID, snap))

	case "get_data":
		snap, err := c.disp.Snapshot()
		if err != nil {
			c.logger.Error("build snapshot", "error", err)
			c.reply(ctx, errorResult(req.ID, famerr.Code(err), "snapshot failed"))
			return
		}
		c.reply(ctx, successResult(req.ID, snap))

	default:
		result, mutated, err := c.disp.Dispatch(req.Type, raw)
		if err != nil {
			if famerr.IsDomain(err) {
				c.reply(ctx, errorResult(req.ID, famerr.Code(err), err.Error()))
			} else {
				c.logger.Error("command failed", "type", req.Type, "error", err)
				c.reply(ctx, errorResult(req.ID, famerr.Code(err), "internal error"))
			}
			return
		}
		c.reply(ctx, successResult(req.ID, result))

		if mutated {
			snap, err := c.disp.Snapshot()
			if err != nil {
				c.logger.Error("build snapshot", "error", err)
				return
			}
			c.hub.BroadcastSnapshot(snap)
		}
	}
}

// reply queues a command response. Unlike snapshot pushes, responses are
// never dropped: when the buffer is full the send blocks until the write
// pump frees a slot or the connection tears down.
func (c *Client) reply(ctx context.Context, env resultEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("marshal response", "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

// writePump drains the send channel and writes frames, pinging
// periodically to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
