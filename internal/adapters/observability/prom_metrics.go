package observability

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/bearingsim/internal/ports"
)

type PromObs struct {
	log      *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the simulator metrics on reg and logs through log.
// Registering twice on the same registry reuses the existing collectors.
func NewPromObs(reg prometheus.Registerer, log *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if log == nil {
		log = slog.Default()
	}

	published := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricReadingsPublished,
		Help: "Raw readings handed to the message bus.",
	}))
	publishFailures := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricPublishFailures,
		Help: "Reading or summary publishes that failed.",
	}))
	parseErrors := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricParseErrors,
		Help: "Data lines skipped because they could not be parsed.",
	}))
	windows := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricWindowsSubmitted,
		Help: "Windows scored by the anomaly detector.",
	}))
	anomalies := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricAnomalies,
		Help: "Anomalous points reported by the detector.",
	}))
	inferenceFailures := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricInferenceFailures,
		Help: "Windows whose inference call failed and counted as zero detections.",
	}))
	occupancy := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricWindowOccupancy,
		Help: "Readings currently buffered in the window.",
	}))
	latency := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricInferenceLatency,
		Help:    "Round trip of one inference call.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}))

	return &PromObs{
		log: log,
		counters: map[string]prometheus.Counter{
			ports.MetricReadingsPublished: published,
			ports.MetricPublishFailures:   publishFailures,
			ports.MetricParseErrors:       parseErrors,
			ports.MetricWindowsSubmitted:  windows,
			ports.MetricAnomalies:         anomalies,
			ports.MetricInferenceFailures: inferenceFailures,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricWindowOccupancy: occupancy,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricInferenceLatency: latency,
		},
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(attrs(fields), "error", err)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(attrs(fields), "error", err, "critical", true)...)
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

func (p *PromObs) RecordParseFailure(line int, err error) {
	p.IncCounter(ports.MetricParseErrors, 1)
	p.log.Warn("line_skipped", "line", line, "error", err)
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2+2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
