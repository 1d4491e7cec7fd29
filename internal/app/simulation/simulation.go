package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ghalamif/bearingsim/internal/domain"
	"github.com/ghalamif/bearingsim/internal/ports"
)

// ErrSourceUnavailable marks the only fatal condition of a run: the recording
// could not be opened or read.
var ErrSourceUnavailable = errors.New("simulation: source unavailable")

type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Settings are the static inputs of a run.
type Settings struct {
	Signals        []string
	ModelID        string
	InputTopic     string
	AnomaliesTopic string
	Policy         ports.Policy
}

func (s Settings) validate() error {
	if len(s.Signals) == 0 {
		return fmt.Errorf("at least one signal name is required")
	}
	if s.InputTopic == "" || s.AnomaliesTopic == "" {
		return fmt.Errorf("input and anomalies topics are required")
	}
	if s.Policy.WindowSize < 1 {
		return fmt.Errorf("window size must be >= 1, got %d", s.Policy.WindowSize)
	}
	return nil
}

// Report summarises a run. Processed counts data lines that parsed successfully.
type Report struct {
	Lines           int
	Processed       int
	Skipped         int
	Published       int
	PublishFailures int
	Windows         int
	Anomalies       int64
	Discarded       int
}

// Sleeper pauses the loop; it must return early with ctx.Err() on cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Simulation)

// WithArchive stores every emitted summary in addition to publishing it.
func WithArchive(a ports.Archive) Option {
	return func(s *Simulation) {
		s.archive = a
	}
}

func WithSleeper(fn Sleeper) Option {
	return func(s *Simulation) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// Simulation replays a recording: every reading is published, and every full
// window is scored by the detector and summarised on the anomalies topic.
type Simulation struct {
	cfg     Settings
	src     ports.Source
	pub     ports.Publisher
	det     ports.Detector
	obs     ports.Observability
	archive ports.Archive
	sleep   Sleeper

	state  State
	window *Window
	tally  Tally
	report Report
}

func New(cfg Settings, src ports.Source, pub ports.Publisher, det ports.Detector, obs ports.Observability, opts ...Option) (*Simulation, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if src == nil || pub == nil || det == nil || obs == nil {
		return nil, fmt.Errorf("source, publisher, detector and observability are required")
	}
	w, err := NewWindow(cfg.Policy.WindowSize)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:    cfg,
		src:    src,
		pub:    pub,
		det:    det,
		obs:    obs,
		sleep:  sleepContext,
		window: w,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Simulation) State() State { return s.state }

// Tally returns the anomalies counted so far.
func (s *Simulation) Tally() int64 { return s.tally.Total() }

// Run replays the whole source. Only ErrSourceUnavailable and context
// cancellation end a run early; every other failure is logged and skipped.
func (s *Simulation) Run(ctx context.Context) (Report, error) {
	if s.state != StateIdle {
		return s.report, fmt.Errorf("simulation already %s", s.state)
	}

	if err := s.src.Open(); err != nil {
		s.state = StateFailed
		s.obs.LogCritical("source_open_failed", err, ports.Field{Key: "source", Value: s.src.Name()})
		return s.report, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, s.src.Name(), err)
	}
	defer s.src.Close()

	s.state = StateRunning
	s.obs.LogInfo("simulation_started",
		ports.Field{Key: "source", Value: s.src.Name()},
		ports.Field{Key: "window", Value: s.window.Cap()},
		ports.Field{Key: "signals", Value: len(s.cfg.Signals)})

	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return s.cancel(err)
		}

		line, ok := s.src.Next()
		if !ok {
			break
		}
		lineNo++
		if lineNo == 1 || strings.TrimSpace(line) == "" {
			continue
		}

		s.report.Lines++
		s.processLine(ctx, line, lineNo)

		if err := s.sleep(ctx, s.cfg.Policy.ReadingDelay); err != nil {
			return s.cancel(err)
		}
	}

	if err := s.src.Err(); err != nil {
		s.state = StateFailed
		s.obs.LogCritical("source_read_failed", err,
			ports.Field{Key: "source", Value: s.src.Name()},
			ports.Field{Key: "line", Value: lineNo})
		return s.report, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, s.src.Name(), err)
	}

	if n := s.window.Len(); n > 0 {
		s.report.Discarded = len(s.window.Drain())
		s.obs.SetGauge(ports.MetricWindowOccupancy, 0)
		s.obs.LogInfo("partial_window_discarded", ports.Field{Key: "readings", Value: n})
	}

	s.state = StateCompleted
	s.report.Anomalies = s.tally.Total()
	s.obs.LogInfo("simulation_completed",
		ports.Field{Key: "processed", Value: s.report.Processed},
		ports.Field{Key: "skipped", Value: s.report.Skipped},
		ports.Field{Key: "windows", Value: s.report.Windows},
		ports.Field{Key: "anomalies", Value: s.report.Anomalies})
	return s.report, nil
}

func (s *Simulation) cancel(err error) (Report, error) {
	s.state = StateCancelled
	s.report.Anomalies = s.tally.Total()
	s.obs.LogInfo("simulation_cancelled", ports.Field{Key: "processed", Value: s.report.Processed})
	return s.report, err
}

func (s *Simulation) processLine(ctx context.Context, line string, lineNo int) {
	r, err := ParseRecord(line, lineNo, s.cfg.Signals)
	if err != nil {
		s.report.Skipped++
		s.obs.RecordParseFailure(lineNo, err)
		return
	}
	s.report.Processed++

	s.publishReading(ctx, r)

	full, err := s.window.Append(r)
	if err != nil {
		s.obs.LogCritical("window_append_failed", err, ports.Field{Key: "line", Value: lineNo})
		return
	}
	s.obs.SetGauge(ports.MetricWindowOccupancy, float64(s.window.Len()))

	if full {
		s.flush(ctx)
	}
}

func (s *Simulation) publishReading(ctx context.Context, r domain.Reading) {
	payload, err := encodeReading(r, s.cfg.Signals)
	if err == nil {
		err = s.pub.Publish(ctx, s.cfg.InputTopic, payload)
	}
	if err != nil {
		s.report.PublishFailures++
		s.obs.IncCounter(ports.MetricPublishFailures, 1)
		s.obs.LogError("publish_reading_failed", err,
			ports.Field{Key: "topic", Value: s.cfg.InputTopic},
			ports.Field{Key: "line", Value: r.Line})
		return
	}
	s.report.Published++
	s.obs.IncCounter(ports.MetricReadingsPublished, 1)
}

// flush scores the full window, publishes the summary and only then drains.
func (s *Simulation) flush(ctx context.Context) {
	s.report.Windows++
	windowNo := s.report.Windows
	records := s.window.Records()
	last := records[len(records)-1]

	count := s.detect(ctx, records, windowNo)
	total := s.tally.Add(count)
	s.emitSummary(ctx, last.Raw, total, windowNo)

	s.window.Drain()
	s.obs.SetGauge(ports.MetricWindowOccupancy, 0)

	// cancellation is picked up by the main loop before the next line
	_ = s.sleep(ctx, s.cfg.Policy.Pacing)
}

func (s *Simulation) detect(ctx context.Context, records []domain.Reading, windowNo int) int {
	req := ports.DetectRequest{
		ModelID:     s.cfg.ModelID,
		SignalNames: s.cfg.Signals,
		Points:      make([]ports.DataPoint, len(records)),
	}
	for i, r := range records {
		if len(r.Values) != len(s.cfg.Signals) {
			s.obs.IncCounter(ports.MetricInferenceFailures, 1)
			s.obs.LogError("inference_request_invalid",
				fmt.Errorf("line %d has %d values for %d signals", r.Line, len(r.Values), len(s.cfg.Signals)),
				ports.Field{Key: "window", Value: windowNo})
			return 0
		}
		req.Points[i] = ports.DataPoint{Timestamp: r.Timestamp, Values: r.Values}
	}

	start := time.Now()
	res, err := s.det.Detect(ctx, req)
	s.obs.ObserveLatency(ports.MetricInferenceLatency, time.Since(start).Seconds())
	if err != nil {
		s.obs.IncCounter(ports.MetricInferenceFailures, 1)
		s.obs.LogError("inference_failed", err,
			ports.Field{Key: "window", Value: windowNo},
			ports.Field{Key: "first_line", Value: records[0].Line},
			ports.Field{Key: "last_line", Value: records[len(records)-1].Line})
		return 0
	}

	count := res.Count()
	s.obs.IncCounter(ports.MetricWindowsSubmitted, 1)
	s.obs.IncCounter(ports.MetricAnomalies, float64(count))
	return count
}

func (s *Simulation) emitSummary(ctx context.Context, raw string, total int64, windowNo int) {
	key, millis, err := CoarsenTimestamp(raw, s.cfg.Policy.Year)
	if err != nil {
		s.obs.LogError("summary_failed", err, ports.Field{Key: "window", Value: windowNo})
		return
	}
	summary := domain.Summary{DisplayKey: key, EpochMillis: millis, Total: total}

	payload, err := encodeSummary(summary)
	if err == nil {
		err = s.pub.Publish(ctx, s.cfg.AnomaliesTopic, payload)
	}
	if err != nil {
		s.obs.IncCounter(ports.MetricPublishFailures, 1)
		s.obs.LogError("publish_summary_failed", err,
			ports.Field{Key: "topic", Value: s.cfg.AnomaliesTopic},
			ports.Field{Key: "window", Value: windowNo})
	} else {
		s.obs.LogInfo("summary_published",
			ports.Field{Key: "window", Value: windowNo},
			ports.Field{Key: "ts", Value: key},
			ports.Field{Key: "total", Value: total})
	}

	if s.archive != nil {
		if err := s.archive.Record(ctx, summary); err != nil {
			s.obs.LogError("archive_failed", err,
				ports.Field{Key: "archive", Value: s.archive.Name()},
				ports.Field{Key: "window", Value: windowNo})
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
