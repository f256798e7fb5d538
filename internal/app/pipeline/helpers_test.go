package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/store"
	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// eventLog records saves and sends across goroutines so tests can assert
// their interleaving.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeEndpoint struct {
	id   string
	kind ports.TransportKind
	log  *eventLog

	mu     sync.Mutex
	got    []ports.Message
	closed bool
}

func newEndpoint(id string, log *eventLog) *fakeEndpoint {
	return &fakeEndpoint{id: id, kind: ports.KindRawSocket, log: log}
}

func (f *fakeEndpoint) ID() string                { return f.id }
func (f *fakeEndpoint) Kind() ports.TransportKind { return f.kind }

func (f *fakeEndpoint) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeEndpoint) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEndpoint) Send(msg ports.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("endpoint closed")
	}
	f.got = append(f.got, msg)
	if f.log != nil {
		if msg.Payload != nil {
			f.log.add("%s:send:%g", f.id, msg.Payload.Amplitude)
		} else {
			f.log.add("%s:%s", f.id, msg.Type)
		}
	}
	return nil
}

func (f *fakeEndpoint) received() []ports.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.Message(nil), f.got...)
}

// loggingStore wraps a MemoryStore, logs each save and fails the amplitudes
// listed in reject.
type loggingStore struct {
	*store.MemoryStore
	log    *eventLog
	reject map[float64]bool
	panics bool
}

func newLoggingStore(log *eventLog) *loggingStore {
	return &loggingStore{MemoryStore: store.NewMemoryStore(), log: log, reject: map[float64]bool{}}
}

func (s *loggingStore) Save(ctx context.Context, sample *domain.Sample) (ports.SavedSample, error) {
	if s.panics {
		panic("connection pool exploded")
	}
	if s.reject[sample.Amplitude] {
		return ports.SavedSample{}, errors.New("constraint violation")
	}
	if s.log != nil {
		s.log.add("save:%g", sample.Amplitude)
	}
	return s.MemoryStore.Save(ctx, sample)
}

type dropRecord struct {
	stage string
	err   error
}

type recordingObs struct {
	mu       sync.Mutex
	counters map[string]float64
	drops    []dropRecord
	errors   []error
}

func newRecordingObs() *recordingObs {
	return &recordingObs{counters: map[string]float64{}}
}

func (o *recordingObs) LogInfo(string, ...ports.Field) {}
func (o *recordingObs) LogWarn(string, ...ports.Field) {}

func (o *recordingObs) LogError(_ string, err error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}

func (o *recordingObs) LogCritical(msg string, err error, fields ...ports.Field) {
	o.LogError(msg, err, fields...)
}

func (o *recordingObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}

func (o *recordingObs) ObserveLatency(string, float64) {}
func (o *recordingObs) SetGauge(string, float64)       {}

func (o *recordingObs) RecordDropped(stage string, err error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drops = append(o.drops, dropRecord{stage: stage, err: err})
}

func (o *recordingObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

func (o *recordingObs) dropped(stage string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	var n int
	for _, d := range o.drops {
		if d.stage == stage {
			n++
		}
	}
	return n
}
