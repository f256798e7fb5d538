// Package registry tracks every live subscriber endpoint, across both
// transports, and fans persisted samples out to them.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

var ErrDuplicateEndpoint = errors.New("endpoint already registered")

// SendError wraps a failed push to a single endpoint.
type SendError struct {
	EndpointID string
	Kind       ports.TransportKind
	Err        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s endpoint %s: %v", e.Kind, e.EndpointID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Registry is safe for concurrent use. Broadcast iterates a snapshot taken
// under the read lock, so membership changes during a broadcast are never
// observed half-applied.
type Registry struct {
	mu      sync.RWMutex
	members map[string]ports.Endpoint
	obs     ports.Observability
}

func New(obs ports.Observability) *Registry {
	return &Registry{
		members: make(map[string]ports.Endpoint),
		obs:     obs,
	}
}

func (r *Registry) Register(ep ports.Endpoint) error {
	r.mu.Lock()
	if _, ok := r.members[ep.ID()]; ok {
		r.mu.Unlock()
		return fmt.Errorf("register %s: %w", ep.ID(), ErrDuplicateEndpoint)
	}
	r.members[ep.ID()] = ep
	r.mu.Unlock()

	r.reportCounts()
	r.obs.LogInfo("endpoint_registered",
		ports.Field{Key: "endpoint", Value: ep.ID()},
		ports.Field{Key: "transport", Value: string(ep.Kind())})
	return nil
}

// Unregister removes ep and reports whether it was a member.
func (r *Registry) Unregister(ep ports.Endpoint) bool {
	r.mu.Lock()
	cur, ok := r.members[ep.ID()]
	if ok && cur == ep {
		delete(r.members, ep.ID())
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		r.reportCounts()
		r.obs.LogInfo("endpoint_unregistered",
			ports.Field{Key: "endpoint", Value: ep.ID()},
			ports.Field{Key: "transport", Value: string(ep.Kind())})
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Count returns the number of members using the given transport.
func (r *Registry) Count(kind ports.TransportKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int
	for _, ep := range r.members {
		if ep.Kind() == kind {
			n++
		}
	}
	return n
}

// Snapshot returns the current members in no particular order.
func (r *Registry) Snapshot() []ports.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.Endpoint, 0, len(r.members))
	for _, ep := range r.members {
		out = append(out, ep)
	}
	return out
}

// Broadcast pushes s as an earthquake-data message to every open member
// except origin. A nil origin reaches everyone. It returns the number of
// endpoints the message was handed to.
func (r *Registry) Broadcast(s *domain.Sample, origin ports.Endpoint) int {
	return r.Publish(ports.SampleMessage(s), origin)
}

// Publish delivers msg with the same exclude-origin rule as Broadcast.
// Each send is isolated: an endpoint whose send fails (or panics) is dropped
// from the registry and closed, and delivery carries on with the rest.
func (r *Registry) Publish(msg ports.Message, origin ports.Endpoint) int {
	var delivered int
	for _, ep := range r.Snapshot() {
		if origin != nil && ep.ID() == origin.ID() {
			continue
		}
		if !ep.Open() {
			continue
		}
		if err := sendIsolated(ep, msg); err != nil {
			r.obs.IncCounter("iems_broadcast_dropped_total", 1)
			r.obs.LogWarn("broadcast_send_failed",
				ports.Field{Key: "endpoint", Value: ep.ID()},
				ports.Field{Key: "transport", Value: string(ep.Kind())},
				ports.Field{Key: "error", Value: err.Error()})
			r.Unregister(ep)
			_ = ep.Close()
			continue
		}
		delivered++
	}
	r.obs.IncCounter("iems_broadcast_sent_total", float64(delivered))
	return delivered
}

func sendIsolated(ep ports.Endpoint, msg ports.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &SendError{EndpointID: ep.ID(), Kind: ep.Kind(), Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	if err := ep.Send(msg); err != nil {
		return &SendError{EndpointID: ep.ID(), Kind: ep.Kind(), Err: err}
	}
	return nil
}

// CloseAll closes and forgets every member.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	members := r.members
	r.members = make(map[string]ports.Endpoint)
	r.mu.Unlock()

	var errs []error
	for _, ep := range members {
		if err := ep.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", ep.ID(), err))
		}
	}
	r.reportCounts()
	return errors.Join(errs...)
}

func (r *Registry) reportCounts() {
	r.obs.SetGauge("iems_raw_socket_connections", float64(r.Count(ports.KindRawSocket)))
	r.obs.SetGauge("iems_event_channel_connections", float64(r.Count(ports.KindEventChannel)))
}
