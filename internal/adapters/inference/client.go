package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/relvacode/iso8601"

	"github.com/ghalamif/bearingsim/internal/domain"
	"github.com/ghalamif/bearingsim/internal/ports"
)

const maxErrorBody = 512

// Config points the client at a trained anomaly-detection model.
type Config struct {
	Endpoint    string        `yaml:"endpoint"`
	ModelID     string        `yaml:"model_id"`
	ProjectID   string        `yaml:"project_id"`
	SignalNames []string      `yaml:"signal_names"`
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if len(c.SignalNames) == 0 {
		c.SignalNames = append([]string(nil), domain.DefaultSignalNames...)
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if _, err := url.ParseRequestURI(c.Endpoint); err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if c.ModelID == "" {
		return errors.New("model_id is required")
	}
	seen := make(map[string]struct{}, len(c.SignalNames))
	for _, name := range c.SignalNames {
		if name == "" {
			return errors.New("signal names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate signal name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference service returned %d: %s", e.StatusCode, e.Body)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client calls the inline anomaly-detection API over HTTP/JSON.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, http: http.DefaultClient}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type dataItem struct {
	Timestamp time.Time `json:"timestamp"`
	Values    []float64 `json:"values"`
}

type detectRequest struct {
	ModelID     string     `json:"modelId"`
	RequestType string     `json:"requestType"`
	SignalNames []string   `json:"signalNames"`
	Data        []dataItem `json:"data"`
}

type anomalyWire struct {
	SignalName     string  `json:"signalName"`
	ActualValue    float64 `json:"actualValue"`
	EstimatedValue float64 `json:"estimatedValue"`
	AnomalyScore   float64 `json:"anomalyScore"`
}

type detectionWire struct {
	Timestamp *iso8601.Time `json:"timestamp"`
	Score     float64       `json:"score"`
	Anomalies []anomalyWire `json:"anomalies"`
}

type detectResponse struct {
	DetectionResults []detectionWire `json:"detectionResults"`
}

type modelWire struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	LifecycleState string `json:"lifecycleState"`
}

// Detect submits one window inline and returns every detection the model reported.
func (c *Client) Detect(ctx context.Context, req ports.DetectRequest) (ports.DetectResult, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.cfg.ModelID
	}
	signals := req.SignalNames
	if len(signals) == 0 {
		signals = c.cfg.SignalNames
	}

	body := detectRequest{
		ModelID:     modelID,
		RequestType: "INLINE",
		SignalNames: signals,
		Data:        make([]dataItem, len(req.Points)),
	}
	for i, p := range req.Points {
		if len(p.Values) != len(signals) {
			return ports.DetectResult{}, fmt.Errorf("point %d has %d values for %d signals", i, len(p.Values), len(signals))
		}
		body.Data[i] = dataItem{Timestamp: p.Timestamp.UTC(), Values: p.Values}
	}

	var resp detectResponse
	if err := c.do(ctx, http.MethodPost, "/detectAnomalies", body, &resp); err != nil {
		return ports.DetectResult{}, err
	}

	out := ports.DetectResult{Detections: make([]ports.Detection, len(resp.DetectionResults))}
	for i, d := range resp.DetectionResults {
		det := ports.Detection{Score: d.Score}
		if d.Timestamp != nil {
			det.Timestamp = d.Timestamp.Time
		}
		for _, a := range d.Anomalies {
			det.Anomalies = append(det.Anomalies, ports.Anomaly{
				SignalName:     a.SignalName,
				ActualValue:    a.ActualValue,
				EstimatedValue: a.EstimatedValue,
				AnomalyScore:   a.AnomalyScore,
			})
		}
		out.Detections[i] = det
	}
	return out, nil
}

// Describe fetches the metadata of the configured model.
func (c *Client) Describe(ctx context.Context) (ports.ModelInfo, error) {
	var m modelWire
	if err := c.do(ctx, http.MethodGet, "/models/"+url.PathEscape(c.cfg.ModelID), nil, &m); err != nil {
		return ports.ModelInfo{}, err
	}
	return ports.ModelInfo{ID: m.ID, DisplayName: m.DisplayName, LifecycleState: m.LifecycleState}, nil
}

// ErrNoProject is returned by DescribeProject when no project id is configured.
var ErrNoProject = errors.New("inference: no project configured")

// DescribeProject fetches the metadata of the project that owns the model.
func (c *Client) DescribeProject(ctx context.Context) (ports.ProjectInfo, error) {
	if c.cfg.ProjectID == "" {
		return ports.ProjectInfo{}, ErrNoProject
	}
	var p modelWire
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(c.cfg.ProjectID), nil, &p); err != nil {
		return ports.ProjectInfo{}, err
	}
	return ports.ProjectInfo{ID: p.ID, DisplayName: p.DisplayName, LifecycleState: p.LifecycleState}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

var (
	_ ports.Detector         = (*Client)(nil)
	_ ports.ProjectDescriber = (*Client)(nil)
)
