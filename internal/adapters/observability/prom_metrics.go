package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// Metric names.
const (
	FramesReceived   = "iems_frames_received_total"
	FrameErrors      = "iems_frame_errors_total"
	SamplesSaved     = "iems_samples_saved_total"
	BroadcastSent    = "iems_broadcast_sent_total"
	BroadcastDropped = "iems_broadcast_dropped_total"
	RawConnections   = "iems_raw_socket_connections"
	EventConnections = "iems_event_channel_connections"
	PersistLatency   = "iems_persist_latency_seconds"
	SamplesDropped   = "iems_samples_dropped_total"
	dropStageLabel   = "stage"
)

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	dropped  *prometheus.CounterVec
}

// NewPromObs registers the IEMS metrics with reg and logs through logger.
// A nil reg uses the prometheus default registerer; a nil logger discards logs.
func NewPromObs(logger *zap.Logger, reg prometheus.Registerer) *PromObs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	frames := prometheus.NewCounter(prometheus.CounterOpts{
		Name: FramesReceived,
		Help: "Frames received from sensor connections.",
	})
	frameErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: FrameErrors,
		Help: "Frames answered with an error message instead of a confirmation.",
	})
	saved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SamplesSaved,
		Help: "Samples accepted by the store.",
	})
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: BroadcastSent,
		Help: "Broadcast messages handed to subscriber endpoints.",
	})
	broadcastDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: BroadcastDropped,
		Help: "Outbound messages discarded because a subscriber failed or fell behind.",
	})
	rawConns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: RawConnections,
		Help: "Raw socket subscribers currently registered.",
	})
	eventConns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: EventConnections,
		Help: "Event channel subscribers currently registered.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    PersistLatency,
		Help:    "Latency of a single store save.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SamplesDropped,
		Help: "Samples lost before broadcast, by pipeline stage.",
	}, []string{dropStageLabel})

	reg.MustRegister(frames, frameErrors, saved, sent, broadcastDrops, rawConns, eventConns, latency, dropped)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			FramesReceived:   frames,
			FrameErrors:      frameErrors,
			SamplesSaved:     saved,
			BroadcastSent:    sent,
			BroadcastDropped: broadcastDrops,
		},
		gauges: map[string]prometheus.Gauge{
			RawConnections:   rawConns,
			EventConnections: eventConns,
		},
		histos: map[string]prometheus.Observer{
			PersistLatency: latency,
		},
		dropped: dropped,
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(nil, fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.log.Warn(msg, zapFields(nil, fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, zapFields(err, fields)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(err, fields), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDropped(stage string, err error, fields ...ports.Field) {
	p.dropped.WithLabelValues(stage).Inc()
	fs := zapFields(err, fields)
	fs = append(fs, zap.String(dropStageLabel, stage))
	if stage == "decode" {
		p.log.Warn("sample_dropped", fs...)
		return
	}
	p.log.Error("sample_dropped", fs...)
}

func zapFields(err error, fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
