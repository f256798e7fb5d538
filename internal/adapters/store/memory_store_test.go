package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
)

func TestMemoryStoreAssignsIDsPerTable(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	ts := time.Date(2024, 5, 12, 14, 28, 4, 123456789, time.UTC)

	x1, err := m.Save(ctx, &domain.Sample{Amplitude: 1, Timestamp: ts, Metadata: domain.Metadata{"waveformType": "X"}})
	if err != nil {
		t.Fatalf("save x1: %v", err)
	}
	y1, err := m.Save(ctx, &domain.Sample{Amplitude: 2, Timestamp: ts, Metadata: domain.Metadata{"waveformType": "Y"}})
	if err != nil {
		t.Fatalf("save y1: %v", err)
	}
	x2, err := m.Save(ctx, &domain.Sample{Amplitude: 3, Timestamp: ts, Metadata: domain.Metadata{"waveformType": "X"}})
	if err != nil {
		t.Fatalf("save x2: %v", err)
	}

	if x1.ID != 1 || x2.ID != 2 || y1.ID != 1 {
		t.Fatalf("unexpected ids x1=%d x2=%d y1=%d", x1.ID, x2.ID, y1.ID)
	}
	if x1.TableName != "earthquake_data_x" || y1.TableName != "earthquake_data_y" {
		t.Fatalf("unexpected tables %s %s", x1.TableName, y1.TableName)
	}
	if !x1.Timestamp.Equal(ts.Truncate(time.Microsecond)) {
		t.Fatalf("expected microsecond timestamp, got %s", x1.Timestamp)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", m.Len())
	}
}

func TestMemoryStoreCopiesMetadata(t *testing.T) {
	m := NewMemoryStore()
	md := domain.Metadata{"k": "v"}
	if _, err := m.Save(context.Background(), &domain.Sample{Amplitude: 1, Metadata: md}); err != nil {
		t.Fatalf("save: %v", err)
	}
	md["k"] = "changed"

	got := m.Samples()
	if got[0].Metadata["k"] != "v" {
		t.Fatalf("stored metadata should not alias the caller's map")
	}
	if got[0].Timestamp.IsZero() {
		t.Fatalf("expected zero timestamp to be replaced")
	}
}

func TestMemoryStoreRejectsInvalidSamples(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.Save(context.Background(), &domain.Sample{Amplitude: math.Inf(1)}); !errors.Is(err, ErrInvalidAmplitude) {
		t.Fatalf("expected ErrInvalidAmplitude, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected nothing stored")
	}
}
