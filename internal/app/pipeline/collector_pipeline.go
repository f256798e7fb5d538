package pipeline

import (
	"context"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// RunCollectorPipeline starts col and publishes everything it emits to all
// subscribers. It returns once the collector is running; publishing carries on
// in the background until ctx is cancelled or the collector closes out.
// The returned channel is closed when the background loop exits.
func RunCollectorPipeline(ctx context.Context, col ports.Collector, pub *Publisher, buffer int, obs ports.Observability) (<-chan struct{}, error) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan *domain.Sample, buffer)

	if err := col.Start(ch); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-ch:
				if !ok {
					return
				}
				publishCollected(ctx, pub, s, obs)
			}
		}
	}()

	return done, nil
}

func publishCollected(ctx context.Context, pub *Publisher, s *domain.Sample, obs ports.Observability) {
	if s == nil {
		return
	}
	if _, err := pub.Publish(ctx, s, nil); err != nil {
		obs.RecordDropped("persist", err, ports.Field{Key: "source", Value: s.Metadata[domain.MetaSource]})
	}
}
