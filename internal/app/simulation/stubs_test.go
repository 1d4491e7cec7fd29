package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/ghalamif/bearingsim/internal/domain"
	"github.com/ghalamif/bearingsim/internal/ports"
)

type stubSource struct {
	lines   []string
	openErr error
	readErr error
	pos     int
	closed  bool
}

func (s *stubSource) Open() error { return s.openErr }

func (s *stubSource) Next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	l := s.lines[s.pos]
	s.pos++
	return l, true
}

func (s *stubSource) Err() error   { return s.readErr }
func (s *stubSource) Close() error { s.closed = true; return nil }
func (s *stubSource) Name() string { return "stub" }

type published struct {
	topic   string
	payload string
}

type stubPublisher struct {
	msgs     []published
	failOn   string
	failures int
}

func (p *stubPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if p.failOn != "" && topic == p.failOn {
		p.failures++
		return errors.New("broker unavailable")
	}
	p.msgs = append(p.msgs, published{topic: topic, payload: string(payload)})
	return nil
}

func (p *stubPublisher) Name() string { return "stub" }

func (p *stubPublisher) onTopic(topic string) []string {
	var out []string
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m.payload)
		}
	}
	return out
}

type stubDetector struct {
	perCall  int
	err      error
	requests []ports.DetectRequest
}

func (d *stubDetector) Detect(_ context.Context, req ports.DetectRequest) (ports.DetectResult, error) {
	pts := make([]ports.DataPoint, len(req.Points))
	copy(pts, req.Points)
	req.Points = pts
	d.requests = append(d.requests, req)
	if d.err != nil {
		return ports.DetectResult{}, d.err
	}
	return ports.DetectResult{Detections: make([]ports.Detection, d.perCall)}, nil
}

func (d *stubDetector) Describe(context.Context) (ports.ModelInfo, error) {
	return ports.ModelInfo{ID: "model"}, nil
}

type stubArchive struct {
	summaries []domain.Summary
	err       error
}

func (a *stubArchive) Record(_ context.Context, s domain.Summary) error {
	if a.err != nil {
		return a.err
	}
	a.summaries = append(a.summaries, s)
	return nil
}

func (a *stubArchive) Name() string { return "stub" }

type stubObs struct {
	errorMsgs  []string
	errors     []error
	critical   []error
	parseFails []int
	counters   map[string]float64
	gauges     []float64
}

func (m *stubObs) LogInfo(string, ...ports.Field) {}
func (m *stubObs) LogError(msg string, err error, _ ...ports.Field) {
	m.errorMsgs = append(m.errorMsgs, msg)
	m.errors = append(m.errors, err)
}
func (m *stubObs) LogCritical(_ string, err error, _ ...ports.Field) {
	m.critical = append(m.critical, err)
}
func (m *stubObs) IncCounter(name string, v float64) {
	if m.counters == nil {
		m.counters = map[string]float64{}
	}
	m.counters[name] += v
}
func (m *stubObs) ObserveLatency(string, float64) {}
func (m *stubObs) SetGauge(name string, v float64) {
	if name == ports.MetricWindowOccupancy {
		m.gauges = append(m.gauges, v)
	}
}
func (m *stubObs) RecordParseFailure(line int, _ error) { m.parseFails = append(m.parseFails, line) }

type recordingSleeper struct {
	calls []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	if d > 0 {
		r.calls = append(r.calls, d)
	}
	return ctx.Err()
}
