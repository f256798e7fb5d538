package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// Broadcaster fans one persisted sample out to subscribers other than origin.
type Broadcaster interface {
	Broadcast(s *domain.Sample, origin ports.Endpoint) int
}

// PersistError reports a sample the store refused.
type PersistError struct {
	Store string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist sample via %s: %v", e.Store, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Publisher saves one sample and, once the store has assigned its id and
// canonical timestamp, broadcasts it.
type Publisher struct {
	store  ports.SampleStore
	fanout Broadcaster
	obs    ports.Observability
}

func NewPublisher(store ports.SampleStore, fanout Broadcaster, obs ports.Observability) *Publisher {
	return &Publisher{store: store, fanout: fanout, obs: obs}
}

// Publish persists s and broadcasts the persisted copy. On a store failure
// nothing is broadcast and the error is a *PersistError.
func (p *Publisher) Publish(ctx context.Context, s *domain.Sample, origin ports.Endpoint) (domain.Sample, error) {
	out, err := p.Persist(ctx, s)
	if err != nil {
		return domain.Sample{}, err
	}
	p.Fanout(&out, origin)
	return out, nil
}

// Persist saves s and returns a copy carrying the store's id and timestamp.
func (p *Publisher) Persist(ctx context.Context, s *domain.Sample) (domain.Sample, error) {
	start := time.Now()
	saved, err := p.store.Save(ctx, s)
	p.obs.ObserveLatency("iems_persist_latency_seconds", time.Since(start).Seconds())
	if err != nil {
		return domain.Sample{}, &PersistError{Store: p.store.Name(), Err: err}
	}
	p.obs.IncCounter("iems_samples_saved_total", 1)

	out := s.Clone()
	out.ID = saved.ID
	if !saved.Timestamp.IsZero() {
		out.Timestamp = saved.Timestamp
	}
	return out, nil
}

// Fanout hands a persisted sample to every subscriber except origin.
func (p *Publisher) Fanout(s *domain.Sample, origin ports.Endpoint) int {
	return p.fanout.Broadcast(s, origin)
}
