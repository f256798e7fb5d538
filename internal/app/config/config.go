package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/simulator"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/store"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// MemoryConnString selects the in-process store instead of Postgres.
const MemoryConnString = "memory://"

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Ingest    IngestConfig     `yaml:"ingest"`
	Policy    ports.Policy     `yaml:"policy"`
	Postgres  PostgresConfig   `yaml:"postgres"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Log       LogConfig        `yaml:"log"`
	Relay     RelayConfig      `yaml:"relay"`
	Simulator simulator.Config `yaml:"simulator"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	RawPath      string        `yaml:"raw_path"`
	EventsPath   string        `yaml:"events_path"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	ReadLimit    int64         `yaml:"read_limit"`
}

type IngestConfig struct {
	// SampleInterval is the spacing assumed between points of one channel.
	SampleInterval time.Duration `yaml:"sample_interval"`
}

type PostgresConfig struct {
	ConnString   string `yaml:"conn_string"`
	DefaultTable string `yaml:"default_table"`
}

// InMemory reports whether the memory store was selected.
func (p PostgresConfig) InMemory() bool { return p.ConnString == MemoryConnString }

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type RelayConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Enabled reports whether a NATS relay should be started.
func (r RelayConfig) Enabled() bool { return r.URL != "" }

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	cfg := &Config{Postgres: PostgresConfig{ConnString: MemoryConnString}}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.RawPath == "" {
		c.Server.RawPath = "/ws"
	}
	if c.Server.EventsPath == "" {
		c.Server.EventsPath = "/events"
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = 30 * time.Second
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = 1 << 20
	}
	if c.Ingest.SampleInterval == 0 {
		c.Ingest.SampleInterval = 10 * time.Millisecond
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 256
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = ports.OnQueueFullDrop
	}
	if c.Postgres.DefaultTable == "" {
		c.Postgres.DefaultTable = "earthquake_data"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Relay.Subject == "" {
		c.Relay.Subject = "iems.earthquake-data"
	}

	c.Simulator.ApplyDefaults()
}

func (c *Config) validate() error {
	if c.Server.RawPath == c.Server.EventsPath {
		return fmt.Errorf("server.raw_path and server.events_path must differ")
	}
	for _, p := range []string{c.Server.RawPath, c.Server.EventsPath} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("server path %q must start with /", p)
		}
	}
	if c.Server.WriteTimeout < 0 || c.Server.PingInterval < 0 || c.Server.ReadLimit < 0 {
		return fmt.Errorf("server timeouts and read_limit must not be negative")
	}
	if c.Ingest.SampleInterval < 0 {
		return fmt.Errorf("ingest.sample_interval must not be negative")
	}
	switch c.Policy.OnQueueFull {
	case ports.OnQueueFullDrop, ports.OnQueueFullDisconnect:
	default:
		return fmt.Errorf("policy.on_queue_full must be %q or %q, got %q",
			ports.OnQueueFullDrop, ports.OnQueueFullDisconnect, c.Policy.OnQueueFull)
	}
	if c.Policy.MaxQueueLen < 0 {
		return fmt.Errorf("policy.max_queue_len must not be negative")
	}
	if c.Postgres.ConnString == "" {
		return fmt.Errorf("postgres.conn_string is required (use %q for the in-memory store)", MemoryConnString)
	}
	if err := store.ValidateTable(c.Postgres.DefaultTable); err != nil {
		return fmt.Errorf("postgres.default_table: %w", err)
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("simulator config: %w", err)
	}
	return nil
}
