package eventchannel

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/observability"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/store"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/transport/wsconn"
	"github.com/svjp05/IEMS-SERVR/internal/app/pipeline"
	"github.com/svjp05/IEMS-SERVR/internal/app/registry"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

var now = time.Date(2024, 5, 12, 14, 28, 4, 0, time.UTC)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// rawSubscriber stands in for a raw socket dashboard.
type rawSubscriber struct {
	mu  sync.Mutex
	got []ports.Message
}

func (r *rawSubscriber) ID() string                { return "raw-dashboard" }
func (r *rawSubscriber) Kind() ports.TransportKind { return ports.KindRawSocket }
func (r *rawSubscriber) Open() bool                { return true }
func (r *rawSubscriber) Close() error              { return nil }

func (r *rawSubscriber) Send(msg ports.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
	return nil
}

func (r *rawSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type fixture struct {
	url   string
	reg   *registry.Registry
	store *store.MemoryStore
	raw   *rawSubscriber
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	obs := observability.Nop{}
	reg := registry.New(obs)
	raw := &rawSubscriber{}
	require.NoError(t, reg.Register(raw))
	st := store.NewMemoryStore()
	h := NewHandler(ctx, reg, pipeline.NewPublisher(st, reg, obs), obs, wsconn.Options{}, testclock.NewClock(now))

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		_ = reg.CloseAll()
		srv.Close()
	})
	return &fixture{url: "ws" + strings.TrimPrefix(srv.URL, "http"), reg: reg, store: st, raw: raw}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ev := read(t, c)
	require.Equal(t, "welcome", ev.Event)
	var body struct {
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	assert.Equal(t, welcomeText, body.Message)
	assert.True(t, body.Timestamp.Equal(now))
	return c
}

func read(t *testing.T, c *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var ev envelope
	require.NoError(t, json.Unmarshal(data, &ev), string(data))
	return ev
}

func emit(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestPushedSampleReachesEveryoneButSender(t *testing.T) {
	f := newFixture(t)
	peer := f.dial(t)
	sender := f.dial(t)

	emit(t, sender, `{"event":"earthquake-data","data":{"amplitude":2.5,"metadata":{"station":"ST-01"}}}`)

	ev := read(t, peer)
	require.Equal(t, "earthquake-data", ev.Event)
	var s struct {
		ID        int64          `json:"id"`
		Amplitude float64        `json:"amplitude"`
		Timestamp time.Time      `json:"timestamp"`
		Metadata  map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &s))
	assert.Equal(t, int64(1), s.ID)
	assert.Equal(t, 2.5, s.Amplitude)
	assert.True(t, s.Timestamp.Equal(now), "missing timestamp is filled with arrival time")
	assert.Equal(t, "ST-01", s.Metadata["station"])

	assert.Eventually(t, func() bool { return f.raw.count() == 1 }, 3*time.Second, 10*time.Millisecond)

	// The sender gets no confirmation on this transport: the next thing it
	// sees is the error for a bad sample.
	emit(t, sender, `{"event":"earthquake-data","data":{"metadata":{}}}`)
	ev = read(t, sender)
	require.Equal(t, "error", ev.Event)
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	assert.Contains(t, body.Message, "missing amplitude")
	assert.Equal(t, 1, f.store.Len())
}

func TestUnknownAndMalformedEventsAreIgnored(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	emit(t, c, `not json`)
	emit(t, c, `{"event":"chat","data":{}}`)
	emit(t, c, `{"event":"earthquake-data","data":{"amplitude":"loud"}}`)

	ev := read(t, c)
	assert.Equal(t, "error", ev.Event)
	assert.Equal(t, 0, f.store.Len())
}
