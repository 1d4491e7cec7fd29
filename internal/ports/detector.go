package ports

import (
	"context"
	"time"
)

// Detector submits a batch of points to an anomaly-detection model.
type Detector interface {
	Detect(ctx context.Context, req DetectRequest) (DetectResult, error)
	Describe(ctx context.Context) (ModelInfo, error)
}

type DataPoint struct {
	Timestamp time.Time
	Values    []float64
}

type DetectRequest struct {
	ModelID     string
	SignalNames []string
	Points      []DataPoint
}

type Anomaly struct {
	SignalName     string
	ActualValue    float64
	EstimatedValue float64
	AnomalyScore   float64
}

type Detection struct {
	Timestamp time.Time
	Score     float64
	Anomalies []Anomaly
}

type DetectResult struct {
	Detections []Detection
}

// Count is the number of anomalous points found in the batch.
func (r DetectResult) Count() int { return len(r.Detections) }

type ModelInfo struct {
	ID             string
	DisplayName    string
	LifecycleState string
}

type ProjectInfo struct {
	ID             string
	DisplayName    string
	LifecycleState string
}

// ProjectDescriber is implemented by detectors whose models live in a project.
type ProjectDescriber interface {
	DescribeProject(ctx context.Context) (ProjectInfo, error)
}
