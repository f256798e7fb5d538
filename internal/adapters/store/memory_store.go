package store

import (
	"context"
	"sync"
	"time"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// MemoryStore keeps samples in process. It assigns ids per table the way a
// serial column would and canonicalises timestamps to microseconds, matching
// what Postgres hands back.
type MemoryStore struct {
	mu      sync.Mutex
	base    string
	nextID  map[string]int64
	samples []domain.Sample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{base: DefaultTable, nextID: make(map[string]int64)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Save(_ context.Context, s *domain.Sample) (ports.SavedSample, error) {
	if err := validate(s); err != nil {
		return ports.SavedSample{}, err
	}

	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC().Truncate(time.Microsecond)
	table := tableFor(m.base, s.WaveformType())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID[table]++
	id := m.nextID[table]

	stored := s.Clone()
	stored.ID = id
	stored.Timestamp = ts
	m.samples = append(m.samples, stored)

	return ports.SavedSample{
		ID:        id,
		Timestamp: ts,
		Metadata:  stored.Metadata,
		TableName: table,
	}, nil
}

// Samples returns a copy of everything saved so far, in save order.
func (m *MemoryStore) Samples() []domain.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Sample, len(m.samples))
	for i, s := range m.samples {
		out[i] = s.Clone()
	}
	return out
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

var _ ports.SampleStore = (*MemoryStore)(nil)
