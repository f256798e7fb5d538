package relay

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/observability"
	"github.com/svjp05/IEMS-SERVR/internal/app/registry"
	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

type published struct {
	subject string
	data    []byte
}

type fakeNATS struct {
	msgs   []published
	err    error
	closed int
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func (f *fakeNATS) IsConnected() bool { return f.err == nil }
func (f *fakeNATS) Close()            { f.closed++ }

func TestRelayPublishesBroadcastSamples(t *testing.T) {
	nc := &fakeNATS{}
	r := New(nc, "", observability.Nop{})
	reg := registry.New(observability.Nop{})
	require.NoError(t, reg.Register(r))

	s := &domain.Sample{
		ID:        42,
		Amplitude: 1.25,
		Timestamp: time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		Metadata:  domain.Metadata{domain.MetaWaveformType: "X"},
	}
	assert.Equal(t, 1, reg.Broadcast(s, nil))

	require.Len(t, nc.msgs, 1)
	assert.Equal(t, DefaultSubject, nc.msgs[0].subject)
	var got domain.Sample
	require.NoError(t, json.Unmarshal(nc.msgs[0].data, &got))
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, 1.25, got.Amplitude)
	assert.Equal(t, "X", got.Metadata[domain.MetaWaveformType])
}

func TestRelayIgnoresNonSampleMessages(t *testing.T) {
	nc := &fakeNATS{}
	r := New(nc, "custom.subject", observability.Nop{})

	require.NoError(t, r.Send(ports.ErrorMessage("nope")))
	require.NoError(t, r.Send(ports.ConfirmationMessage("ok", nil)))
	assert.Empty(t, nc.msgs)
	assert.Equal(t, "custom.subject", r.Subject())
}

func TestRelayStaysRegisteredThroughBrokerOutage(t *testing.T) {
	nc := &fakeNATS{err: errors.New("nats: connection closed")}
	r := New(nc, "", observability.Nop{})
	reg := registry.New(observability.Nop{})
	require.NoError(t, reg.Register(r))

	reg.Broadcast(&domain.Sample{Amplitude: 1, Metadata: domain.Metadata{}}, nil)

	assert.Equal(t, 1, reg.Len())
	assert.True(t, r.Open())
}

func TestRelayCloseOnce(t *testing.T) {
	nc := &fakeNATS{}
	r := New(nc, "", observability.Nop{})

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, nc.closed)
	assert.ErrorIs(t, r.Send(ports.SampleMessage(&domain.Sample{})), ErrClosed)
}
