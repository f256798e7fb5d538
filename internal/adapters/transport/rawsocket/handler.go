// Package rawsocket serves sensor and dashboard connections over plain
// websocket text frames. Every inbound frame is a sensor frame handed to an
// ingestion session; outbound messages use the flat {type, ...} JSON shape.
package rawsocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/transport/wsconn"
	"github.com/svjp05/IEMS-SERVR/internal/app/pipeline"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
	"github.com/svjp05/IEMS-SERVR/internal/wire"
)

const welcomeText = "connected to the earthquake monitoring system"

// Members is the part of the registry a handler needs.
type Members interface {
	Register(ep ports.Endpoint) error
	Unregister(ep ports.Endpoint) bool
}

type Handler struct {
	upgrader websocket.Upgrader
	members  Members
	pub      *pipeline.Publisher
	obs      ports.Observability
	opts     wsconn.Options
	clock    clock.Clock
	sessOpts []pipeline.SessionOption
	base     context.Context
}

// NewHandler builds the raw socket handler. base bounds the lifetime of every
// connection it accepts.
func NewHandler(base context.Context, members Members, pub *pipeline.Publisher, obs ports.Observability, opts wsconn.Options, clk clock.Clock, sessOpts ...pipeline.SessionOption) *Handler {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		members:  members,
		pub:      pub,
		obs:      obs,
		opts:     opts,
		clock:    clk,
		sessOpts: append([]pipeline.SessionOption{pipeline.WithClock(clk)}, sessOpts...),
		base:     base,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.obs.LogWarn("raw_upgrade_failed", ports.Field{Key: "remote", Value: r.RemoteAddr}, ports.Field{Key: "error", Value: err.Error()})
		return
	}

	conn := wsconn.New(ws, ports.KindRawSocket, wire.EncodeRaw, h.opts, h.obs)
	h.obs.LogInfo("raw_connected", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "remote", Value: r.RemoteAddr})

	// Queued before registration so it precedes any broadcast.
	if err := conn.Send(ports.ConnectionMessage(welcomeText, h.clock.Now())); err != nil {
		h.obs.LogWarn("raw_welcome_failed", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "error", Value: err.Error()})
	}
	if err := h.members.Register(conn); err != nil {
		h.obs.LogError("raw_register_failed", err, ports.Field{Key: "endpoint", Value: conn.ID()})
		_ = conn.Close()
		return
	}
	defer h.members.Unregister(conn)

	sess := pipeline.NewSession(conn, h.pub, h.obs, h.sessOpts...)
	defer sess.Close()

	err = conn.Run(h.base, func(ctx context.Context, data []byte) {
		if err := sess.HandleFrame(ctx, string(data)); err != nil && !errors.Is(err, pipeline.ErrSessionClosed) {
			h.obs.LogWarn("raw_reply_failed", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "error", Value: err.Error()})
		}
	})
	if err != nil {
		h.obs.LogWarn("raw_read_failed", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "error", Value: err.Error()})
	}
	h.obs.LogInfo("raw_disconnected", ports.Field{Key: "endpoint", Value: conn.ID()})
}
