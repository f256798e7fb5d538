package iems

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/store"
	"github.com/svjp05/IEMS-SERVR/internal/domain"
)

// ErrChannelStoreClosed is returned when a channel store is written to after being closed.
var ErrChannelStoreClosed = errors.New("iems: channel store closed")

// SaveFunc persists one sample and returns the id it was stored under.
type SaveFunc func(ctx context.Context, s Sample) (int64, error)

// NewCallbackStore adapts a SaveFunc into a SampleStore so callers can plug
// arbitrary functions without defining structs.
func NewCallbackStore(name string, fn SaveFunc) SampleStore {
	if name == "" {
		name = "callback"
	}
	return &callbackStore{name: name, fn: fn}
}

// NewChannelStore hands every saved sample to a channel, numbering them from
// 1. It returns the store, the read-only channel and a close function that
// the caller should invoke during shutdown.
func NewChannelStore(name string, buffer int) (SampleStore, <-chan Sample, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Sample, buffer)
	s := &channelStore{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

// NewMemoryStore keeps samples in process, numbering them per waveform table.
func NewMemoryStore() SampleStore {
	return store.NewMemoryStore()
}

type callbackStore struct {
	name string
	fn   SaveFunc
}

func (s *callbackStore) Save(ctx context.Context, sample *domain.Sample) (SavedSample, error) {
	if s.fn == nil {
		return SavedSample{}, fmt.Errorf("callback store %q: nil handler", s.name)
	}
	in, err := prepare(sample)
	if err != nil {
		return SavedSample{}, fmt.Errorf("callback store %q: %w", s.name, err)
	}
	id, err := s.fn(ctx, in)
	if err != nil {
		return SavedSample{}, err
	}
	return SavedSample{ID: id, Timestamp: in.Timestamp, Metadata: in.Metadata, TableName: s.name}, nil
}

func (s *callbackStore) Name() string { return s.name }

type channelStore struct {
	name   string
	ch     chan Sample
	closed chan struct{}
	once   sync.Once
	seq    atomic.Int64
	mu     sync.RWMutex
}

func (s *channelStore) Save(ctx context.Context, sample *domain.Sample) (SavedSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.closed:
		return SavedSample{}, ErrChannelStoreClosed
	default:
	}

	out, err := prepare(sample)
	if err != nil {
		return SavedSample{}, fmt.Errorf("channel store %q: %w", s.name, err)
	}
	out.ID = s.seq.Add(1)

	select {
	case <-s.closed:
		return SavedSample{}, ErrChannelStoreClosed
	case <-ctx.Done():
		return SavedSample{}, ctx.Err()
	case s.ch <- out:
		return SavedSample{ID: out.ID, Timestamp: out.Timestamp, Metadata: out.Metadata, TableName: s.name}, nil
	}
}

func (s *channelStore) Name() string { return s.name }

// close waits for in-flight saves so the channel is never written after it
// is closed.
func (s *channelStore) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

func prepare(sample *domain.Sample) (Sample, error) {
	if sample == nil {
		return Sample{}, errors.New("nil sample")
	}
	if !sample.Finite() {
		return Sample{}, fmt.Errorf("amplitude %v is not finite", sample.Amplitude)
	}
	out := sample.Clone()
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	out.Timestamp = out.Timestamp.UTC()
	if out.Metadata == nil {
		out.Metadata = Metadata{}
	}
	return out, nil
}
