// Package relay republishes every broadcast sample to a NATS subject so that
// consumers outside this process see the same stream as websocket clients.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

const DefaultSubject = "iems.earthquake-data"

var ErrClosed = errors.New("relay closed")

// Publisher is the subset of *nats.Conn the relay uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	Close()
}

// NATSRelay is a registry member that never originates samples. It is
// registered for the lifetime of the runtime and stays registered through
// broker outages: publish failures are counted, not returned.
type NATSRelay struct {
	id      string
	subject string
	nc      Publisher
	obs     ports.Observability
	closed  atomic.Bool
}

// Connect dials url with reconnects enabled and wraps the connection.
func Connect(url, subject string, obs ports.Observability) (*NATSRelay, error) {
	nc, err := nats.Connect(url,
		nats.Name("iems-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				obs.LogWarn("relay_disconnected", ports.Field{Key: "error", Value: err.Error()})
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			obs.LogInfo("relay_reconnected", ports.Field{Key: "url", Value: c.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return New(nc, subject, obs), nil
}

func New(nc Publisher, subject string, obs ports.Observability) *NATSRelay {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSRelay{id: "relay-" + uuid.NewString(), subject: subject, nc: nc, obs: obs}
}

func (r *NATSRelay) ID() string                { return r.id }
func (r *NATSRelay) Kind() ports.TransportKind { return ports.KindEventChannel }
func (r *NATSRelay) Open() bool                { return !r.closed.Load() }
func (r *NATSRelay) Subject() string           { return r.subject }

// Send publishes sample broadcasts; other message types are not relayed.
func (r *NATSRelay) Send(msg ports.Message) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if msg.Type != ports.MessageEarthquakeData || msg.Payload == nil {
		return nil
	}
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("encode relay payload: %w", err)
	}
	if err := r.nc.Publish(r.subject, data); err != nil {
		r.obs.IncCounter("iems_broadcast_dropped_total", 1)
		r.obs.LogWarn("relay_publish_failed",
			ports.Field{Key: "subject", Value: r.subject},
			ports.Field{Key: "connected", Value: r.nc.IsConnected()},
			ports.Field{Key: "error", Value: err.Error()})
	}
	return nil
}

func (r *NATSRelay) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		r.nc.Close()
	}
	return nil
}

var _ ports.Endpoint = (*NATSRelay)(nil)
