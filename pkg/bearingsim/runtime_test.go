package bearingsim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const recording = `Date,Br11,Br12,Br21,Br22,Br31,Br32,Br41,Br42
2022-02-12T10:00:00Z,1,2,3,4,5,6,7,8
2022-02-12T10:00:01Z,1,2,3,4,5,6,7,8
2022-02-12T10:00:02Z,1,2,3,4,5,6,7,8
2022-02-12T11:00:03Z,1,2,3,4,5,6,7,8
2022-02-12T11:00:04Z,1,2,3,4,5,6,7,8
`

func testConfig(path string) *Config {
	return &Config{
		Source: SourceConfig{Path: path},
		MQTT: MQTTConfig{
			InputTopic:     "bb/input",
			AnomaliesTopic: "bb/anomalies",
		},
		Inference: InferenceConfig{
			Endpoint:    "http://127.0.0.1:1",
			ModelID:     "model-1",
			SignalNames: []string{"Br11", "Br12", "Br21", "Br22", "Br31", "Br32", "Br41", "Br42"},
		},
		Window:  Policy{WindowSize: 2, Pacing: time.Second, Year: 2022},
		Metrics: MetricsConfig{Disabled: true},
	}
}

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bearings.csv")
	require.NoError(t, os.WriteFile(path, []byte(recording), 0o600))
	return path
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestNewRuntimeWithCustomAdapters(t *testing.T) {
	src := &stubSource{}
	pub := NewCallbackPublisher("cb", func(context.Context, Message) error { return nil })
	det := &stubDetector{}
	arc := &stubArchive{}
	obs := &stubObservability{}

	rt, err := NewRuntime(testConfig(""),
		WithSource(src),
		WithPublisher(pub),
		WithDetector(det),
		WithArchive(arc),
		WithObservability(obs),
	)
	require.NoError(t, err)
	require.Same(t, src, rt.src.(*stubSource))
	require.Equal(t, pub, rt.pub)
	require.Same(t, det, rt.det.(*stubDetector))
	require.Same(t, arc, rt.archive.(*stubArchive))
	require.Same(t, obs, rt.obs.(*stubObservability))
	require.Equal(t, StateIdle, rt.State())
}

func TestNewRuntimeRequiresConfig(t *testing.T) {
	_, err := NewRuntime(nil)
	require.Error(t, err)
}

func TestRuntimeRunReplaysFile(t *testing.T) {
	det := &stubDetector{perCall: 1}
	arc := &stubArchive{}
	pub, ch, closeFn := NewChannelPublisher("chan", 16)
	defer closeFn()

	rt, err := NewRuntime(testConfig(writeRecording(t)),
		WithPublisher(pub),
		WithDetector(det),
		WithArchive(arc),
		WithObservability(&stubObservability{}),
		WithSleeper(noSleep),
	)
	require.NoError(t, err)

	report, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, rt.State())
	require.Equal(t, 5, report.Processed)
	require.Equal(t, 2, report.Windows)
	require.Equal(t, int64(2), report.Anomalies)
	require.Equal(t, 1, report.Discarded)
	require.True(t, det.described)

	var summaries []string
	for len(ch) > 0 {
		msg := <-ch
		if msg.Topic == "bb/anomalies" {
			summaries = append(summaries, string(msg.Payload))
		}
	}
	require.Equal(t, []string{
		`{"ts":"12/02/2022 10","tts":1644660000000,"total":1}`,
		`{"ts":"12/02/2022 11","tts":1644663600000,"total":2}`,
	}, summaries)
	require.Len(t, arc.records, 2)
	require.Equal(t, int64(2), arc.records[1].Total)
}

func TestRuntimeRunMissingFile(t *testing.T) {
	rt, err := NewRuntime(testConfig(filepath.Join(t.TempDir(), "missing.csv")),
		WithPublisher(NewCallbackPublisher("cb", func(context.Context, Message) error { return nil })),
		WithDetector(&stubDetector{}),
		WithObservability(&stubObservability{}),
	)
	require.NoError(t, err)

	_, err = rt.Run(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	require.Equal(t, StateFailed, rt.State())
}

func TestRuntimeDescribeFailureIsNotFatal(t *testing.T) {
	obs := &stubObservability{}
	rt, err := NewRuntime(testConfig(""),
		WithSource(&stubSource{lines: []string{"header"}}),
		WithPublisher(NewCallbackPublisher("cb", func(context.Context, Message) error { return nil })),
		WithDetector(&stubDetector{describeErr: errors.New("404")}),
		WithObservability(obs),
	)
	require.NoError(t, err)

	_, err = rt.Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, obs.errorMessages(), "model_describe_failed")
}

func TestRuntimeDescribesProjectWhenConfigured(t *testing.T) {
	cfg := testConfig("")
	cfg.Inference.ProjectID = "project-1"
	det := &projectDetector{projectErr: errors.New("forbidden")}
	obs := &stubObservability{}

	rt, err := NewRuntime(cfg,
		WithSource(&stubSource{lines: []string{"header"}}),
		WithPublisher(NewCallbackPublisher("cb", func(context.Context, Message) error { return nil })),
		WithDetector(det),
		WithObservability(obs),
	)
	require.NoError(t, err)

	_, err = rt.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, det.projects)
	require.True(t, det.described)
	require.Contains(t, obs.errorMessages(), "project_describe_failed")
}

func TestRuntimeSkipsProjectWithoutID(t *testing.T) {
	det := &projectDetector{}
	rt, err := NewRuntime(testConfig(""),
		WithSource(&stubSource{lines: []string{"header"}}),
		WithPublisher(NewCallbackPublisher("cb", func(context.Context, Message) error { return nil })),
		WithDetector(det),
		WithObservability(&stubObservability{}),
	)
	require.NoError(t, err)

	_, err = rt.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, det.projects)
}

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := testConfig("")
	flow, err := ConfFromConfig(cfg)
	require.NoError(t, err)
	require.Same(t, cfg, flow.Config())

	src := &stubSource{lines: []string{"header", "2022-02-12T10:00:00Z,1,2,3,4,5,6,7,8", "2022-02-12T10:00:01Z,1,2,3,4,5,6,7,8"}}
	var mu sync.Mutex
	var topics []string

	report, err := flow.
		StreamIN(
			StreamInSource(src),
			StreamInObservability(&stubObservability{}),
		).
		Options(WithSleeper(noSleep)).
		Run(context.Background(),
			StreamOutDetector(&stubDetector{}),
			StreamOutCallback("cb", func(_ context.Context, msg Message) error {
				mu.Lock()
				topics = append(topics, msg.Topic)
				mu.Unlock()
				return nil
			}),
		)
	require.NoError(t, err)
	require.Equal(t, 1, report.Windows)
	require.Equal(t, []string{"bb/input", "bb/input", "bb/anomalies"}, topics)
}

func TestFlowRunHonoursCancellation(t *testing.T) {
	flow, err := ConfFromConfig(testConfig(""))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = flow.StreamIN(
		StreamInSource(&stubSource{lines: []string{"header", "2022-02-12T10:00:00Z,1,2,3,4,5,6,7,8"}}),
		StreamInObservability(&stubObservability{}),
	).Run(ctx,
		StreamOutPublisher(NewCallbackPublisher("cb", func(context.Context, Message) error { return nil })),
		StreamOutDetector(&stubDetector{}),
	)
	require.ErrorIs(t, err, context.Canceled)
}

type stubSource struct {
	lines []string
	pos   int
}

func (s *stubSource) Open() error { return nil }
func (s *stubSource) Next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	s.pos++
	return s.lines[s.pos-1], true
}
func (s *stubSource) Err() error   { return nil }
func (s *stubSource) Close() error { return nil }
func (s *stubSource) Name() string { return "stub" }

type stubDetector struct {
	perCall     int
	describeErr error
	described   bool
}

func (s *stubDetector) Detect(context.Context, DetectRequest) (DetectResult, error) {
	return DetectResult{Detections: make([]Detection, s.perCall)}, nil
}

func (s *stubDetector) Describe(context.Context) (ModelInfo, error) {
	s.described = true
	if s.describeErr != nil {
		return ModelInfo{}, s.describeErr
	}
	return ModelInfo{ID: "model-1", DisplayName: "bearings", LifecycleState: "ACTIVE"}, nil
}

type projectDetector struct {
	stubDetector
	projectErr error
	projects   int
}

func (p *projectDetector) DescribeProject(context.Context) (ProjectInfo, error) {
	p.projects++
	return ProjectInfo{ID: "project-1"}, p.projectErr
}

type stubArchive struct {
	records []Summary
}

func (s *stubArchive) Record(_ context.Context, sum Summary) error {
	s.records = append(s.records, sum)
	return nil
}
func (s *stubArchive) Name() string { return "stub" }

type stubObservability struct {
	mu     sync.Mutex
	errors []string
}

func (s *stubObservability) LogInfo(string, ...Field) {}
func (s *stubObservability) LogError(msg string, _ error, _ ...Field) {
	s.mu.Lock()
	s.errors = append(s.errors, msg)
	s.mu.Unlock()
}
func (s *stubObservability) LogCritical(msg string, err error, fields ...Field) {
	s.LogError(msg, err, fields...)
}
func (s *stubObservability) IncCounter(string, float64)     {}
func (s *stubObservability) ObserveLatency(string, float64) {}
func (s *stubObservability) SetGauge(string, float64)       {}
func (s *stubObservability) RecordParseFailure(int, error)  {}

func (s *stubObservability) errorMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}
