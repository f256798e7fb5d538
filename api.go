package iems

import (
	"github.com/juju/clock"

	base "github.com/svjp05/IEMS-SERVR/pkg/iems"
)

// Re-exported errors for convenience.
var (
	ErrChannelStoreClosed = base.ErrChannelStoreClosed
)

const MemoryConnString = base.MemoryConnString

// Type aliases so consumers can import github.com/svjp05/IEMS-SERVR directly.
type (
	Config          = base.Config
	ServerConfig    = base.ServerConfig
	IngestConfig    = base.IngestConfig
	Policy          = base.Policy
	PostgresConfig  = base.PostgresConfig
	MetricsConfig   = base.MetricsConfig
	LogConfig       = base.LogConfig
	RelayConfig     = base.RelayConfig
	SimulatorConfig = base.SimulatorConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Sample          = base.Sample
	Metadata        = base.Metadata
	SavedSample     = base.SavedSample
	SaveFunc        = base.SaveFunc
	Collector       = base.Collector
	SampleStore     = base.SampleStore
	Observability   = base.Observability
	Field           = base.Field
	Endpoint        = base.Endpoint
	Message         = base.Message
	TransportKind   = base.TransportKind
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutStore(s SampleStore) StreamOutOption {
	return base.StreamOutStore(s)
}

func StreamOutEndpoint(ep Endpoint) StreamOutOption {
	return base.StreamOutEndpoint(ep)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn SaveFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithStore(s SampleStore) RuntimeOption {
	return base.WithStore(s)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithClock(c clock.Clock) RuntimeOption {
	return base.WithClock(c)
}

func WithEndpoint(ep Endpoint) RuntimeOption {
	return base.WithEndpoint(ep)
}

// Store adapters.
func NewCallbackStore(name string, fn SaveFunc) SampleStore {
	return base.NewCallbackStore(name, fn)
}

func NewChannelStore(name string, buffer int) (SampleStore, <-chan Sample, func()) {
	return base.NewChannelStore(name, buffer)
}

func NewMemoryStore() SampleStore {
	return base.NewMemoryStore()
}
