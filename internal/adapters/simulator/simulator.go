// Package simulator is a collector that fabricates seismic samples on a
// fixed interval, for demos and for exercising dashboards without hardware.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

const (
	MetaQuality   = "quality"
	MetaFrequency = "frequency"

	minAmplitude = 0.1
	maxAmplitude = 10.0
	minFrequency = 0.5
	maxFrequency = 5.0
)

type Config struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
}

func (c *Config) Validate() error {
	if c.Interval < time.Millisecond {
		return errors.New("interval must be at least 1ms")
	}
	return nil
}

type Collector struct {
	cfg   Config
	clock clock.Clock
	rng   *rand.Rand

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewCollector builds a simulator. A nil clk uses the wall clock and a nil
// rng is seeded randomly.
func NewCollector(cfg Config, clk clock.Clock, rng *rand.Rand) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Collector{cfg: cfg, clock: clk, rng: rng}, nil
}

// Start emits one sample per interval on out until Stop. out is closed when
// the collector stops.
func (c *Collector) Start(out chan<- *domain.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("simulator already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(c.cfg.Interval):
			}
			s := c.next()
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	return nil
}

// next draws a base amplitude in [0.1, 10], shifts it by a slow sine with a
// ten second period scale, and pairs it with a frequency in [0.5, 5] Hz.
func (c *Collector) next() *domain.Sample {
	now := c.clock.Now()
	base := minAmplitude + c.rng.Float64()*(maxAmplitude-minAmplitude)
	drift := math.Sin(float64(now.UnixMilli())/10000) * 2
	amp := math.Max(minAmplitude, base+drift)
	freq := minFrequency + c.rng.Float64()*(maxFrequency-minFrequency)

	return &domain.Sample{
		Amplitude: round2(amp),
		Timestamp: now,
		Metadata: domain.Metadata{
			domain.MetaSource: domain.SourceSimulator,
			MetaQuality:       "good",
			MetaFrequency:     round2(freq),
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var _ ports.Collector = (*Collector)(nil)
