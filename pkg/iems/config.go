package iems

import (
	"github.com/svjp05/IEMS-SERVR/internal/adapters/simulator"
	"github.com/svjp05/IEMS-SERVR/internal/app/config"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// ServerConfig sets the websocket listener, paths and keepalive.
	ServerConfig = config.ServerConfig
	// IngestConfig controls frame decoding.
	IngestConfig = config.IngestConfig
	// Policy bounds each subscriber's outbound queue.
	Policy = ports.Policy
	// PostgresConfig configures the sample store.
	PostgresConfig = config.PostgresConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	LogConfig     = config.LogConfig
	// RelayConfig points broadcasts at a NATS subject.
	RelayConfig     = config.RelayConfig
	SimulatorConfig = simulator.Config
)

const MemoryConnString = config.MemoryConnString

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration backed by the in-memory store.
func DefaultConfig() *Config {
	return config.Default()
}
