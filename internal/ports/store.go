package ports

import (
	"context"
	"time"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
)

// SavedSample is what the store hands back for one persisted sample.
type SavedSample struct {
	ID        int64
	Timestamp time.Time
	Metadata  domain.Metadata
	TableName string
}

// SampleStore persists one sample at a time. Partitioning by waveform type is
// the store's own business.
type SampleStore interface {
	Save(ctx context.Context, s *domain.Sample) (SavedSample, error)
	Name() string
}
