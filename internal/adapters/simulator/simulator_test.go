package simulator

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
)

var epoch = time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)

func TestCollectorEmitsOneSamplePerInterval(t *testing.T) {
	clk := testclock.NewClock(epoch)
	col, err := NewCollector(Config{Interval: 500 * time.Millisecond}, clk, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	out := make(chan *domain.Sample, 4)
	require.NoError(t, col.Start(out))

	for i := 1; i <= 3; i++ {
		require.NoError(t, clk.WaitAdvance(500*time.Millisecond, time.Second, 1))
		select {
		case s := <-out:
			assert.True(t, s.Timestamp.Equal(epoch.Add(time.Duration(i)*500*time.Millisecond)))
			assert.GreaterOrEqual(t, s.Amplitude, minAmplitude)
			assert.LessOrEqual(t, s.Amplitude, maxAmplitude+2)
			freq := s.Metadata[MetaFrequency].(float64)
			assert.GreaterOrEqual(t, freq, minFrequency)
			assert.LessOrEqual(t, freq, maxFrequency)
			assert.Equal(t, domain.SourceSimulator, s.Metadata[domain.MetaSource])
			assert.Equal(t, "good", s.Metadata[MetaQuality])
			assert.Equal(t, s.Amplitude, round2(s.Amplitude))
		case <-time.After(time.Second):
			t.Fatalf("no sample after tick %d", i)
		}
	}

	require.NoError(t, col.Stop())
	_, open := <-out
	assert.False(t, open, "out is closed on stop")
}

func TestCollectorRejectsDoubleStart(t *testing.T) {
	col, err := NewCollector(Config{}, testclock.NewClock(epoch), nil)
	require.NoError(t, err)

	require.NoError(t, col.Start(make(chan *domain.Sample, 1)))
	defer col.Stop()
	assert.Error(t, col.Start(make(chan *domain.Sample, 1)))
}

func TestStopWithoutStart(t *testing.T) {
	col, err := NewCollector(Config{}, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, col.Stop())
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, time.Second, cfg.Interval)

	_, err := NewCollector(Config{Interval: time.Microsecond}, nil, nil)
	assert.Error(t, err)
}
