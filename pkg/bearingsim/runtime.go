package bearingsim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/bearingsim/internal/adapters/archive"
	"github.com/ghalamif/bearingsim/internal/adapters/csvsource"
	"github.com/ghalamif/bearingsim/internal/adapters/inference"
	"github.com/ghalamif/bearingsim/internal/adapters/mqtt"
	"github.com/ghalamif/bearingsim/internal/adapters/observability"
	"github.com/ghalamif/bearingsim/internal/app/simulation"
	"github.com/ghalamif/bearingsim/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        Source
	publisher     Publisher
	detector      Detector
	archive       Archive
	observability Observability
	sleeper       func(ctx context.Context, d time.Duration) error
}

// WithSource replaces the CSV file source.
func WithSource(src Source) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithPublisher replaces the MQTT publisher; no broker connection is made.
func WithPublisher(p Publisher) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.publisher = p
	}
}

// WithDetector replaces the HTTP inference client.
func WithDetector(d Detector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.detector = d
	}
}

// WithArchive replaces the configured summary database.
func WithArchive(a Archive) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.archive = a
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithSleeper replaces the pacing clock, mostly for tests and fast replays.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sleeper = fn
	}
}

// Runtime wires source → simulation → publisher/detector/archive and owns
// the connections it opened itself.
type Runtime struct {
	cfg      *Config
	obs      ports.Observability
	registry *prometheus.Registry
	src      ports.Source
	pub      ports.Publisher
	det      ports.Detector
	archive  ports.Archive
	sleeper  func(ctx context.Context, d time.Duration) error

	closers    []io.Closer
	metricsSrv *http.Server

	mu  sync.Mutex
	sim *simulation.Simulation
}

// NewRuntime bootstraps the default adapters (CSV file source, HTTP detector,
// Prometheus observability). The MQTT publisher and SQL archive are connected
// by Run. Any dependency can be overridden with a RuntimeOption.
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

	registry := prometheus.NewRegistry()
	obs := overrides.observability
	if obs == nil {
		logger := observability.NewLogger(os.Stderr, observability.ParseLevel(cfg.Log.Level))
		obs = observability.NewPromObs(registry, logger)
	}

	src := overrides.source
	if src == nil {
		if cfg.Source.Path == "" {
			return nil, fmt.Errorf("source path is required")
		}
		src = csvsource.NewFileSource(cfg.Source.Path)
	}

	det := overrides.detector
	if det == nil {
		client, err := inference.NewClient(cfg.Inference)
		if err != nil {
			return nil, fmt.Errorf("inference client: %w", err)
		}
		det = client
	}

	return &Runtime{
		cfg:      cfg,
		obs:      obs,
		registry: registry,
		src:      src,
		pub:      overrides.publisher,
		det:      det,
		archive:  overrides.archive,
		sleeper:  overrides.sleeper,
	}, nil
}

// Run connects the remaining adapters, replays the recording once and shuts
// everything down. The report is valid even when an error is returned.
func (r *Runtime) Run(ctx context.Context) (Report, error) {
	if r == nil {
		return Report{}, fmt.Errorf("runtime is nil")
	}
	if r.State() != simulation.StateIdle {
		return Report{}, fmt.Errorf("runtime already ran")
	}
	if err := r.connect(ctx); err != nil {
		return Report{}, errors.Join(err, r.shutdown())
	}

	var opts []simulation.Option
	if r.archive != nil {
		opts = append(opts, simulation.WithArchive(r.archive))
	}
	if r.sleeper != nil {
		opts = append(opts, simulation.WithSleeper(r.sleeper))
	}

	sim, err := simulation.New(r.settings(), r.src, r.pub, r.det, r.obs, opts...)
	if err != nil {
		return Report{}, errors.Join(err, r.shutdown())
	}
	r.mu.Lock()
	r.sim = sim
	r.mu.Unlock()

	r.describeModel(ctx)
	r.startMetrics()

	report, runErr := sim.Run(ctx)
	return report, errors.Join(runErr, r.shutdown())
}

// State reports the simulation state; StateIdle before Run.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sim == nil {
		return simulation.StateIdle
	}
	return r.sim.State()
}

// Registry exposes the metrics registry served on /metrics.
func (r *Runtime) Registry() *prometheus.Registry { return r.registry }

func (r *Runtime) settings() simulation.Settings {
	return simulation.Settings{
		Signals:        r.cfg.Inference.SignalNames,
		ModelID:        r.cfg.Inference.ModelID,
		InputTopic:     r.cfg.MQTT.InputTopic,
		AnomaliesTopic: r.cfg.MQTT.AnomaliesTopic,
		Policy:         r.cfg.Window,
	}
}

func (r *Runtime) connect(ctx context.Context) error {
	if r.pub == nil {
		p, err := mqtt.Dial(ctx, r.cfg.MQTT, r.obs)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		r.pub = p
		r.closers = append(r.closers, p)
	}

	if r.archive == nil && r.cfg.Archive.Enabled() {
		a, err := archive.Open(ctx, r.cfg.Archive)
		if err != nil {
			r.obs.LogError("archive_unavailable", err, ports.Field{Key: "driver", Value: r.cfg.Archive.Driver})
			return nil
		}
		r.archive = a
		r.closers = append(r.closers, a)
	}
	return nil
}

func (r *Runtime) describeModel(ctx context.Context) {
	if pd, ok := r.det.(ports.ProjectDescriber); ok && r.cfg.Inference.ProjectID != "" {
		project, err := pd.DescribeProject(ctx)
		if err != nil {
			r.obs.LogError("project_describe_failed", err, ports.Field{Key: "project", Value: r.cfg.Inference.ProjectID})
		} else {
			r.obs.LogInfo("project_described",
				ports.Field{Key: "project", Value: project.ID},
				ports.Field{Key: "name", Value: project.DisplayName},
				ports.Field{Key: "state", Value: project.LifecycleState})
		}
	}

	info, err := r.det.Describe(ctx)
	if err != nil {
		r.obs.LogError("model_describe_failed", err, ports.Field{Key: "model", Value: r.cfg.Inference.ModelID})
		return
	}
	r.obs.LogInfo("model_described",
		ports.Field{Key: "model", Value: info.ID},
		ports.Field{Key: "name", Value: info.DisplayName},
		ports.Field{Key: "state", Value: info.LifecycleState})
}

func (r *Runtime) startMetrics() {
	if r.cfg.Metrics.Disabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := r.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err, ports.Field{Key: "addr", Value: srv.Addr})
		}
	}()
}

// shutdown stops the metrics server and closes every connection Run opened.
func (r *Runtime) shutdown() error {
	var errs []error

	if r.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		cancel()
		r.metricsSrv = nil
	}

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil

	return errors.Join(errs...)
}

// ArchivedTotals reads the running totals stored by previous runs, oldest first.
func ArchivedTotals(ctx context.Context, cfg ArchiveConfig) ([]int64, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("archive is not configured")
	}
	a, err := archive.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.Totals(ctx)
}
