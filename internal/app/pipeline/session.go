package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"

	"github.com/svjp05/IEMS-SERVR/internal/decoder"
	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// State is where a session is in the handling of its current frame.
type State int32

const (
	StateIdle State = iota
	StateFrameReceived
	StateDecoding
	StatePersisting
	StateBroadcasting
	StateAckSent
	StateClosed
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateFrameReceived: "frame-received",
	StateDecoding:      "decoding",
	StatePersisting:    "persisting",
	StateBroadcasting:  "broadcasting",
	StateAckSent:       "ack-sent",
	StateClosed:        "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

var ErrSessionClosed = errors.New("session closed")

// FrameError is a failure that aborted a whole frame. The sender gets a
// single error message for it.
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string { return fmt.Sprintf("frame failed: %v", e.Err) }

func (e *FrameError) Unwrap() error { return e.Err }

type SessionOption func(*Session)

// WithClock sets the clock used to stamp frame arrival.
func WithClock(c clock.Clock) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithInterval sets the spacing used to back-date points within a channel.
func WithInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Session handles the frames of one sensor connection. Frames are processed
// one at a time; within a frame every point is saved and then broadcast before
// the next point is touched, so subscribers see a frame's points in order.
type Session struct {
	endpoint ports.Endpoint
	pub      *Publisher
	obs      ports.Observability
	clock    clock.Clock
	interval time.Duration

	state atomic.Int32
	mu    sync.Mutex
}

func NewSession(ep ports.Endpoint, pub *Publisher, obs ports.Observability, opts ...SessionOption) *Session {
	s := &Session{
		endpoint: ep,
		pub:      pub,
		obs:      obs,
		clock:    clock.WallClock,
		interval: decoder.DefaultInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

// Close stops the session from accepting frames. A frame already in flight
// runs to completion.
func (s *Session) Close() {
	s.state.Store(int32(StateClosed))
}

func (s *Session) setState(next State) bool {
	for {
		cur := s.state.Load()
		if State(cur) == StateClosed {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

// HandleFrame decodes, persists and broadcasts one raw frame, then answers
// the originating endpoint with exactly one confirmation or error message.
// The returned error only reports a closed session or a failed reply.
func (s *Session) HandleFrame(ctx context.Context, raw string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.setState(StateFrameReceived) {
		return ErrSessionClosed
	}
	s.obs.IncCounter("iems_frames_received_total", 1)

	// Disconnecting must not cancel saves that are already under way.
	reply := s.process(context.WithoutCancel(ctx), raw)

	s.setState(StateAckSent)
	err := s.endpoint.Send(reply)
	s.setState(StateIdle)
	if err != nil {
		return fmt.Errorf("reply to %s: %w", s.endpoint.ID(), err)
	}
	return nil
}

func (s *Session) process(ctx context.Context, raw string) (reply ports.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			reply = s.fail(fmt.Errorf("panic: %v", rec))
		}
	}()

	s.setState(StateDecoding)
	frame, err := decoder.Decode(raw, s.clock.Now(), s.interval)
	if err != nil {
		return s.fail(err)
	}
	for _, te := range frame.Errors {
		s.obs.RecordDropped("decode", te, ports.Field{Key: "endpoint", Value: s.endpoint.ID()})
	}

	points := frame.Points()
	saved := make([]domain.Sample, 0, len(points))
	for _, p := range points {
		s.setState(StatePersisting)
		out, err := s.pub.Persist(ctx, buildSample(frame, p))
		if err != nil {
			s.obs.RecordDropped("persist", err,
				ports.Field{Key: "endpoint", Value: s.endpoint.ID()},
				ports.Field{Key: "amplitude", Value: p.Amplitude},
				ports.Field{Key: "batch_index", Value: p.BatchIndex})
			continue
		}

		s.setState(StateBroadcasting)
		s.pub.Fanout(&out, s.endpoint)
		saved = append(saved, out)
	}

	s.obs.LogInfo("frame_processed",
		ports.Field{Key: "endpoint", Value: s.endpoint.ID()},
		ports.Field{Key: "tokens", Value: frame.TokenCount()},
		ports.Field{Key: "saved", Value: len(saved)})
	return ports.ConfirmationMessage(fmt.Sprintf("received and saved %d data points", len(saved)), saved)
}

func (s *Session) fail(cause error) ports.Message {
	err := &FrameError{Err: cause}
	s.obs.IncCounter("iems_frame_errors_total", 1)
	s.obs.LogError("frame_failed", err, ports.Field{Key: "endpoint", Value: s.endpoint.ID()})
	return ports.ErrorMessage("data received but could not be saved: " + cause.Error())
}

func buildSample(f *decoder.Frame, p decoder.Point) *domain.Sample {
	md := domain.Metadata{
		domain.MetaSource:     domain.SourceExternal,
		domain.MetaRaw:        true,
		domain.MetaBatchIndex: p.BatchIndex,
		domain.MetaBatchSize:  p.BatchSize,
	}
	if p.Channel != decoder.ChannelNone {
		md[domain.MetaWaveformType] = string(p.Channel)
	}
	md = md.Merge(f.Metadata)
	return &domain.Sample{
		Amplitude: p.Amplitude,
		Timestamp: p.Timestamp,
		Metadata:  md,
	}
}
