// Package wsconn wraps a gorilla websocket connection as a subscriber
// endpoint. Outbound messages are encoded on Send and queued; a single writer
// goroutine drains the queues so broadcasts never wait on a slow peer.
//
// Broadcast samples share a bounded outbox governed by the queue policy.
// Every other message (welcome, confirmation, error) is a reply addressed to
// this peer alone and goes through a separate reply queue that the writer
// drains first, so a backlog of broadcasts can never swallow a reply.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/queue"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrOutboxFull = errors.New("subscriber outbox full")
)

// replyQueueLen bounds replies a peer has not read yet. Sessions answer one
// frame at a time, so only a peer that stopped reading can fill it.
const replyQueueLen = 16

// Encoder renders a message in a transport's wire format.
type Encoder func(ports.Message) ([]byte, error)

// Handler receives each inbound text frame.
type Handler func(ctx context.Context, data []byte)

type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	Policy       ports.Policy
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.Policy.MaxQueueLen <= 0 {
		o.Policy.MaxQueueLen = 256
	}
	if o.Policy.OnQueueFull == "" {
		o.Policy.OnQueueFull = ports.OnQueueFullDrop
	}
	return o
}

// Conn is one live websocket subscriber.
type Conn struct {
	id      string
	kind    ports.TransportKind
	ws      *websocket.Conn
	encode  Encoder
	outbox  ports.MessageQueue
	replies ports.MessageQueue
	opts    Options
	obs     ports.Observability

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func New(ws *websocket.Conn, kind ports.TransportKind, encode Encoder, opts Options, obs ports.Observability) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		id:      uuid.NewString(),
		kind:    kind,
		ws:      ws,
		encode:  encode,
		outbox:  queue.NewMemQueue(opts.Policy.MaxQueueLen),
		replies: queue.NewMemQueue(replyQueueLen),
		opts:    opts,
		obs:     obs,
		done:    make(chan struct{}),
	}
}

func (c *Conn) ID() string                { return c.id }
func (c *Conn) Kind() ports.TransportKind { return c.kind }
func (c *Conn) Open() bool                { return !c.closed.Load() }

// Send queues msg for the writer. For broadcast samples a full outbox either
// drops the message or reports ErrOutboxFull, depending on the policy. Replies
// are never dropped: a full reply queue closes the connection and reports
// ErrOutboxFull.
func (c *Conn) Send(msg ports.Message) error {
	if c.closed.Load() {
		return ErrClosed
	}
	b, err := c.encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	if msg.Type != ports.MessageEarthquakeData {
		if c.replies.Enqueue(b) {
			return nil
		}
		c.fail("reply_queue_full", fmt.Errorf("%d unread replies", replyQueueLen))
		return ErrOutboxFull
	}
	if c.outbox.Enqueue(b) {
		return nil
	}
	if c.opts.Policy.OnQueueFull == ports.OnQueueFullDisconnect {
		return ErrOutboxFull
	}
	c.obs.IncCounter("iems_broadcast_dropped_total", 1)
	c.obs.LogWarn("outbox_full_drop",
		ports.Field{Key: "endpoint", Value: c.id},
		ports.Field{Key: "type", Value: msg.Type})
	return nil
}

// Close is safe to call more than once and from any goroutine.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		deadline := time.Now().Add(c.opts.WriteTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Run starts the writer and reads frames until the peer goes away, ctx is
// cancelled or Close is called. The connection is closed on return.
func (c *Conn) Run(ctx context.Context, handle Handler) error {
	defer c.Close()

	go c.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	return c.readLoop(ctx, handle)
}

func (c *Conn) readLoop(ctx context.Context, handle Handler) error {
	pongWait := 2 * c.opts.PingInterval
	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return fmt.Errorf("read %s: %w", c.id, err)
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		handle(ctx, data)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.replies.Ready():
			if err := c.flush(); err != nil {
				c.fail("write_failed", err)
				return
			}
		case <-c.outbox.Ready():
			if err := c.flush(); err != nil {
				c.fail("write_failed", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.fail("ping_failed", err)
				return
			}
		}
	}
}

// flush writes pending replies ahead of pending broadcasts until both queues
// are empty.
func (c *Conn) flush() error {
	for {
		replies := c.replies.DequeueBatch(0)
		if err := c.write(replies); err != nil {
			return err
		}
		if len(replies) > 0 {
			continue
		}
		batch := c.outbox.DequeueBatch(1)
		if len(batch) == 0 {
			return nil
		}
		if err := c.write(batch); err != nil {
			return err
		}
	}
}

func (c *Conn) write(frames [][]byte) error {
	for _, b := range frames {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) fail(event string, err error) {
	if c.closed.Load() {
		return
	}
	c.obs.LogWarn(event,
		ports.Field{Key: "endpoint", Value: c.id},
		ports.Field{Key: "error", Value: err.Error()})
	c.Close()
}

var _ ports.Endpoint = (*Conn)(nil)
