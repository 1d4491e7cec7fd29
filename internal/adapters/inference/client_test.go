package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/bearingsim/internal/ports"
)

func TestDetectSendsInlineRequest(t *testing.T) {
	var got detectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/detectAnomalies" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
			t.Errorf("expected uuid request id: %v", err)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detectionResults":[
			{"timestamp":"2004-02-12T10:32:39Z","score":0.9,"anomalies":[{"signalName":"Br11","actualValue":0.2,"estimatedValue":0.06,"anomalyScore":0.8}]},
			{"timestamp":"2004-02-12T10:42:39.000+00:00","score":0.7,"anomalies":[]}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL + "/", ModelID: "model-1", SignalNames: []string{"Br11", "Br12"}, Token: "secret"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ts := time.Date(2004, 2, 12, 10, 32, 39, 0, time.UTC)
	res, err := c.Detect(context.Background(), ports.DetectRequest{
		Points: []ports.DataPoint{
			{Timestamp: ts, Values: []float64{0.06, 0.07}},
			{Timestamp: ts.Add(10 * time.Minute), Values: []float64{0.08, 0.09}},
		},
	})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if got.ModelID != "model-1" || got.RequestType != "INLINE" || len(got.SignalNames) != 2 {
		t.Fatalf("unexpected request envelope: %+v", got)
	}
	if len(got.Data) != 2 || !got.Data[0].Timestamp.Equal(ts) || got.Data[1].Values[1] != 0.09 {
		t.Fatalf("unexpected request data: %+v", got.Data)
	}

	if res.Count() != 2 {
		t.Fatalf("expected 2 detections, got %d", res.Count())
	}
	first := res.Detections[0]
	if !first.Timestamp.Equal(ts) || len(first.Anomalies) != 1 || first.Anomalies[0].SignalName != "Br11" {
		t.Fatalf("unexpected first detection: %+v", first)
	}
	if !res.Detections[1].Timestamp.Equal(ts.Add(10 * time.Minute)) {
		t.Fatalf("unexpected second timestamp: %s", res.Detections[1].Timestamp)
	}
}

func TestDetectReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not active", http.StatusConflict)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, ModelID: "m"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Detect(context.Background(), ports.DetectRequest{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusConflict || se.Body != "model not active" {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestDetectRejectsMisalignedPoints(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "http://127.0.0.1:1", ModelID: "m"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Detect(context.Background(), ports.DetectRequest{
		Points: []ports.DataPoint{{Values: []float64{1, 2}}},
	})
	if err == nil {
		t.Fatalf("expected error for 2 values against 8 default signals")
	}
}

func TestDetectHonoursTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(Config{Endpoint: srv.URL, ModelID: "m", Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Detect(context.Background(), ports.DetectRequest{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/model-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"model-1","displayName":"bearings","lifecycleState":"ACTIVE"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, ModelID: "model-1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	info, err := c.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if info.DisplayName != "bearings" || info.LifecycleState != "ACTIVE" {
		t.Fatalf("unexpected model info %+v", info)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]Config{
		"missing endpoint": {ModelID: "m"},
		"bad endpoint":     {Endpoint: "not a url", ModelID: "m"},
		"missing model":    {Endpoint: "http://localhost"},
		"duplicate signal": {Endpoint: "http://localhost", ModelID: "m", SignalNames: []string{"Br11", "Br11"}},
	}
	for name, cfg := range cases {
		if _, err := NewClient(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestDescribeProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/project-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"project-1","displayName":"bearing rig","lifecycleState":"ACTIVE"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, ModelID: "model-1", ProjectID: "project-1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	info, err := c.DescribeProject(context.Background())
	if err != nil {
		t.Fatalf("DescribeProject: %v", err)
	}
	if info.ID != "project-1" || info.DisplayName != "bearing rig" {
		t.Fatalf("unexpected project info %+v", info)
	}
}

func TestDescribeProjectWithoutID(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "http://127.0.0.1:1", ModelID: "model-1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.DescribeProject(context.Background()); !errors.Is(err, ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
}
