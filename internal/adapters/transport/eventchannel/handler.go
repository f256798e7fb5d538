// Package eventchannel serves dashboard clients that speak named events:
// every frame in either direction is {"event": name, "data": {...}}.
// Clients may also push single samples with the "earthquake-data" event.
package eventchannel

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/transport/wsconn"
	"github.com/svjp05/IEMS-SERVR/internal/app/pipeline"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
	"github.com/svjp05/IEMS-SERVR/internal/wire"
)

const welcomeText = "connected to the earthquake monitoring system"

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
	base     context.Context
}

func NewHandler(base context.Context, members Members, pub *pipeline.Publisher, obs ports.Observability, opts wsconn.Options, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		members: members,
		pub:     pub,
		obs:     obs,
		opts:    opts,
		clock:   clk,
		base:    base,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.obs.LogWarn("event_upgrade_failed", ports.Field{Key: "remote", Value: r.RemoteAddr}, ports.Field{Key: "error", Value: err.Error()})
		return
	}

	conn := wsconn.New(ws, ports.KindEventChannel, wire.EncodeEvent, h.opts, h.obs)
	h.obs.LogInfo("event_connected", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "remote", Value: r.RemoteAddr})

	if err := conn.Send(ports.ConnectionMessage(welcomeText, h.clock.Now())); err != nil {
		h.obs.LogWarn("event_welcome_failed", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "error", Value: err.Error()})
	}
	if err := h.members.Register(conn); err != nil {
		h.obs.LogError("event_register_failed", err, ports.Field{Key: "endpoint", Value: conn.ID()})
		_ = conn.Close()
		return
	}
	defer h.members.Unregister(conn)

	err = conn.Run(h.base, func(ctx context.Context, data []byte) {
		h.handleEvent(ctx, conn, data)
	})
	if err != nil {
		h.obs.LogWarn("event_read_failed", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "error", Value: err.Error()})
	}
	h.obs.LogInfo("event_disconnected", ports.Field{Key: "endpoint", Value: conn.ID()})
}

func (h *Handler) handleEvent(ctx context.Context, conn *wsconn.Conn, data []byte) {
	ev, err := wire.DecodeEvent(data)
	if err != nil {
		h.obs.LogWarn("event_malformed", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "error", Value: err.Error()})
		return
	}
	if ev.Event != ports.MessageEarthquakeData {
		h.obs.LogWarn("event_unknown", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "event", Value: ev.Event})
		return
	}

	h.obs.IncCounter("iems_frames_received_total", 1)
	s, err := wire.DecodeSample(ev.Data, h.clock.Now())
	if err == nil {
		_, err = h.pub.Publish(context.WithoutCancel(ctx), s, conn)
	}
	if err != nil {
		h.obs.IncCounter("iems_frame_errors_total", 1)
		h.obs.LogError("event_sample_failed", err, ports.Field{Key: "endpoint", Value: conn.ID()})
		if serr := conn.Send(ports.ErrorMessage("data received but could not be saved or broadcast: " + err.Error())); serr != nil {
			h.obs.LogWarn("event_reply_failed", ports.Field{Key: "endpoint", Value: conn.ID()}, ports.Field{Key: "error", Value: serr.Error()})
		}
	}
}
