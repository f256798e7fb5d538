package iems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/clock"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/svjp05/IEMS-SERVR/internal/adapters/observability"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/relay"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/simulator"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/store"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/transport/eventchannel"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/transport/rawsocket"
	"github.com/svjp05/IEMS-SERVR/internal/adapters/transport/wsconn"
	"github.com/svjp05/IEMS-SERVR/internal/app/pipeline"
	"github.com/svjp05/IEMS-SERVR/internal/app/registry"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

const (
	collectorBuffer = 64
	shutdownTimeout = 5 * time.Second
)

// ErrRuntimeStopped is returned by Start once the runtime has been shut down.
var ErrRuntimeStopped = errors.New("runtime is shut down")

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	store         SampleStore
	collector     Collector
	observability Observability
	clock         clock.Clock
	endpoints     []Endpoint
}

// WithStore injects a custom store so samples can be persisted anywhere.
func WithStore(s SampleStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithCollector injects a local sample source. Its samples are persisted and
// broadcast to every subscriber.
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithClock sets the clock used for frame arrival and welcome timestamps.
func WithClock(c clock.Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// WithEndpoint registers an extra always-on subscriber, for example an
// in-process consumer of the broadcast stream.
func WithEndpoint(ep Endpoint) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.endpoints = append(o.endpoints, ep)
	}
}

// Runtime wires the websocket transports, the persist-and-broadcast pipeline
// and the metrics server, and exposes lifecycle hooks for embedding.
type Runtime struct {
	cfg       *Config
	obs       ports.Observability
	logger    *zap.Logger
	promReg   *prometheus.Registry
	store     ports.SampleStore
	db        *sql.DB
	registry  *registry.Registry
	publisher *pipeline.Publisher
	collector ports.Collector
	clock     clock.Clock
	extra     []Endpoint

	connectRelay func(url, subject string, obs ports.Observability) (ports.Endpoint, error)

	baseCtx    context.Context
	cancelBase context.CancelFunc

	httpSrv    *http.Server
	httpLn     net.Listener
	metricsSrv *http.Server
	metricsLn  net.Listener
	group      *errgroup.Group
	groupCtx   context.Context

	collectorDone <-chan struct{}
	startMu       sync.Mutex
	started       bool
	shutdownOnce  sync.Once
	shutdownErr   error
}

// NewRuntime bootstraps the default adapters (Postgres or in-memory store,
// zap plus Prometheus observability, optional simulator). Options override
// any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	clk := overrides.clock
	if clk == nil {
		clk = clock.WallClock
	}

	promReg := prometheus.NewRegistry()
	var logger *zap.Logger
	obs := overrides.observability
	if obs == nil {
		var err error
		logger, err = observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		obs = observability.NewPromObs(logger, promReg)
	}

	var (
		db  *sql.DB
		st  ports.SampleStore
		err error
	)
	switch {
	case overrides.store != nil:
		st = overrides.store
	case cfg.Postgres.InMemory():
		st = store.NewMemoryStore()
	default:
		db, err = sql.Open("postgres", cfg.Postgres.ConnString)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		st = store.NewPostgresStore(db, cfg.Postgres.DefaultTable)
	}

	col := overrides.collector
	if col == nil && cfg.Simulator.Enabled {
		col, err = simulator.NewCollector(cfg.Simulator, clk, nil)
		if err != nil {
			return nil, fmt.Errorf("simulator: %w", err)
		}
	}

	reg := registry.New(obs)
	baseCtx, cancel := context.WithCancel(context.Background())

	return &Runtime{
		cfg:          cfg,
		obs:          obs,
		logger:       logger,
		promReg:      promReg,
		store:        st,
		db:           db,
		registry:     reg,
		publisher:    pipeline.NewPublisher(st, reg, obs),
		collector:    col,
		clock:        clk,
		extra:        overrides.endpoints,
		connectRelay: dialRelay,
		baseCtx:      baseCtx,
		cancelBase:   cancel,
	}, nil
}

// Handler returns the router serving both websocket transports and /healthz.
func (r *Runtime) Handler() http.Handler {
	opts := wsconn.Options{
		WriteTimeout: r.cfg.Server.WriteTimeout,
		PingInterval: r.cfg.Server.PingInterval,
		ReadLimit:    r.cfg.Server.ReadLimit,
		Policy:       r.cfg.Policy,
	}

	router := mux.NewRouter()
	router.Handle(r.cfg.Server.RawPath, rawsocket.NewHandler(r.baseCtx, r.registry, r.publisher, r.obs, opts, r.clock,
		pipeline.WithInterval(r.cfg.Ingest.SampleInterval)))
	router.Handle(r.cfg.Server.EventsPath, eventchannel.NewHandler(r.baseCtx, r.registry, r.publisher, r.obs, opts, r.clock))
	router.HandleFunc("/healthz", r.healthz).Methods(http.MethodGet)
	return router
}

func (r *Runtime) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ok raw=%d events=%d store=%s\n",
		r.registry.Count(ports.KindRawSocket), r.registry.Count(ports.KindEventChannel), r.store.Name())
}

// Start opens the listeners, connects the relay, starts the collector and
// serves in the background. It returns immediately; call Run to block on a
// context instead. Calling Start on a running runtime is a no-op. A failed
// Start leaves nothing registered or open and may be retried.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.started {
		return nil
	}
	if r.baseCtx.Err() != nil {
		return ErrRuntimeStopped
	}
	if err := r.start(); err != nil {
		return err
	}
	r.started = true
	return nil
}

func (r *Runtime) start() (err error) {
	var registered []ports.Endpoint
	var owned []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for _, ep := range registered {
			r.registry.Unregister(ep)
		}
		for _, c := range owned {
			_ = c.Close()
		}
	}()

	for _, ep := range r.extra {
		if err := r.registry.Register(ep); err != nil {
			return fmt.Errorf("register endpoint: %w", err)
		}
		registered = append(registered, ep)
	}

	if r.cfg.Relay.Enabled() {
		rl, err := r.connectRelay(r.cfg.Relay.URL, r.cfg.Relay.Subject, r.obs)
		if err != nil {
			return err
		}
		owned = append(owned, rl)
		if err := r.registry.Register(rl); err != nil {
			return fmt.Errorf("register relay: %w", err)
		}
		registered = append(registered, rl)
		r.obs.LogInfo("relay_started", ports.Field{Key: "subject", Value: r.cfg.Relay.Subject})
	}

	httpLn, err := net.Listen("tcp", r.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", r.cfg.Server.Addr, err)
	}
	owned = append(owned, httpLn)
	metricsLn, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", r.cfg.Metrics.Addr, err)
	}
	owned = append(owned, metricsLn)

	if r.collector != nil {
		done, err := pipeline.RunCollectorPipeline(r.baseCtx, r.collector, r.publisher, collectorBuffer, r.obs)
		if err != nil {
			return fmt.Errorf("start collector: %w", err)
		}
		r.collectorDone = done
	}
	r.httpLn, r.metricsLn = httpLn, metricsLn

	r.httpSrv = &http.Server{Handler: r.Handler(), ReadHeaderTimeout: 10 * time.Second}
	r.metricsSrv = &http.Server{Handler: r.metricsHandler(), ReadHeaderTimeout: 10 * time.Second}

	r.group, r.groupCtx = errgroup.WithContext(r.baseCtx)
	r.group.Go(func() error { return serve(r.httpSrv, httpLn) })
	r.group.Go(func() error { return serve(r.metricsSrv, metricsLn) })

	r.obs.LogInfo("runtime_started",
		ports.Field{Key: "addr", Value: httpLn.Addr().String()},
		ports.Field{Key: "metrics_addr", Value: metricsLn.Addr().String()},
		ports.Field{Key: "store", Value: r.store.Name()})
	return nil
}

func dialRelay(url, subject string, obs ports.Observability) (ports.Endpoint, error) {
	rl, err := relay.Connect(url, subject, obs)
	if err != nil {
		return nil, err
	}
	return rl, nil
}

func (r *Runtime) metricsHandler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(r.promReg, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled or a server fails.
// Either way it shuts down gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-r.groupCtx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(r.Shutdown(shutdownCtx), r.group.Wait())
}

// Shutdown stops the collector, closes every subscriber, stops both servers
// and closes the DB connection.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() { r.shutdownErr = r.shutdown(ctx) })
	return r.shutdownErr
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var errs []error

	if r.collector != nil {
		if err := r.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	r.cancelBase()
	if r.collectorDone != nil {
		select {
		case <-r.collectorDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("collector pipeline: %w", ctx.Err()))
		}
	}

	if r.httpSrv != nil {
		if err := r.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if err := r.registry.CloseAll(); err != nil {
		errs = append(errs, err)
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}

	return errors.Join(errs...)
}

// Addr is the websocket listener address once started.
func (r *Runtime) Addr() string {
	if r.httpLn == nil {
		return ""
	}
	return r.httpLn.Addr().String()
}

// MetricsAddr is the metrics listener address once started.
func (r *Runtime) MetricsAddr() string {
	if r.metricsLn == nil {
		return ""
	}
	return r.metricsLn.Addr().String()
}

// Publish persists s and broadcasts it to every subscriber, as if a local
// collector had produced it.
func (r *Runtime) Publish(ctx context.Context, s *Sample) (Sample, error) {
	return r.publisher.Publish(ctx, s, nil)
}

// Subscribers reports how many endpoints of kind are connected.
func (r *Runtime) Subscribers(kind TransportKind) int {
	return r.registry.Count(kind)
}
