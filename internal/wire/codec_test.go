package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

var ts = time.Date(2024, 5, 12, 14, 28, 4, 0, time.UTC)

func TestEncodeRawSamplePush(t *testing.T) {
	s := &domain.Sample{ID: 7, Amplitude: 1.5, Timestamp: ts, Metadata: domain.Metadata{"waveformType": "X"}}

	b, err := EncodeRaw(ports.SampleMessage(s))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"earthquake-data","payload":{"id":7,"amplitude":1.5,"timestamp":"2024-05-12T14:28:04Z","metadata":{"waveformType":"X"}}}`, string(b))
}

func TestEncodeRawConfirmationAlwaysCarriesData(t *testing.T) {
	b, err := EncodeRaw(ports.ConfirmationMessage("saved 0", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"confirmation","message":"saved 0","data":[]}`, string(b))
}

func TestEncodeRawErrorAndGreeting(t *testing.T) {
	b, err := EncodeRaw(ports.ErrorMessage("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"boom"}`, string(b))

	b, err = EncodeRaw(ports.ConnectionMessage("hello", ts))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connection","message":"hello","timestamp":"2024-05-12T14:28:04Z"}`, string(b))
}

func TestEncodeRawRejectsUnknownType(t *testing.T) {
	_, err := EncodeRaw(ports.Message{Type: "nope"})
	assert.Error(t, err)

	_, err = EncodeRaw(ports.Message{Type: ports.MessageEarthquakeData})
	assert.Error(t, err)
}

func TestEncodeEvent(t *testing.T) {
	s := &domain.Sample{ID: 3, Amplitude: -2, Timestamp: ts, Metadata: domain.Metadata{}}

	b, err := EncodeEvent(ports.SampleMessage(s))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"earthquake-data","data":{"id":3,"amplitude":-2,"timestamp":"2024-05-12T14:28:04Z","metadata":{}}}`, string(b))

	b, err = EncodeEvent(ports.ConnectionMessage("hi", ts))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"welcome","data":{"message":"hi","timestamp":"2024-05-12T14:28:04Z"}}`, string(b))

	b, err = EncodeEvent(ports.ErrorMessage("bad"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","data":{"message":"bad"}}`, string(b))
}

func TestDecodeEventAndSample(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"earthquake-data","data":{"amplitude":4.2,"metadata":{"station":"A1"}}}`))
	require.NoError(t, err)
	assert.Equal(t, ports.MessageEarthquakeData, ev.Event)

	s, err := DecodeSample(ev.Data, ts)
	require.NoError(t, err)
	assert.Equal(t, 4.2, s.Amplitude)
	assert.True(t, s.Timestamp.Equal(ts))
	assert.Equal(t, "A1", s.Metadata["station"])
}

func TestDecodeSampleKeepsClientTimestamp(t *testing.T) {
	at := ts.Add(-time.Minute)
	body, err := json.Marshal(map[string]any{"amplitude": 1, "timestamp": at})
	require.NoError(t, err)

	s, err := DecodeSample(body, ts)
	require.NoError(t, err)
	assert.True(t, s.Timestamp.Equal(at))
	assert.NotNil(t, s.Metadata)
}

func TestDecodeSampleRequiresAmplitude(t *testing.T) {
	_, err := DecodeSample(json.RawMessage(`{"metadata":{}}`), ts)
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{"data":{}}`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}
