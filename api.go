package bearingsim

import (
	"context"
	"time"

	base "github.com/ghalamif/bearingsim/pkg/bearingsim"
)

// Run states reported by Runtime.State.
const (
	StateIdle      = base.StateIdle
	StateRunning   = base.StateRunning
	StateCompleted = base.StateCompleted
	StateFailed    = base.StateFailed
	StateCancelled = base.StateCancelled
)

// Re-exported errors for convenience.
var (
	ErrSourceUnavailable      = base.ErrSourceUnavailable
	ErrChannelPublisherClosed = base.ErrChannelPublisherClosed
)

// Type aliases so consumers can import github.com/ghalamif/bearingsim directly.
type (
	Config          = base.Config
	SourceConfig    = base.SourceConfig
	MQTTConfig      = base.MQTTConfig
	InferenceConfig = base.InferenceConfig
	Policy          = base.Policy
	MetricsConfig   = base.MetricsConfig
	ArchiveConfig   = base.ArchiveConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Report          = base.Report
	Reading         = base.Reading
	Summary         = base.Summary
	Message         = base.Message
	PublishFunc     = base.PublishFunc
	Source          = base.Source
	Publisher       = base.Publisher
	Detector        = base.Detector
	DetectRequest   = base.DetectRequest
	DetectResult    = base.DetectResult
	DataPoint       = base.DataPoint
	Detection       = base.Detection
	Anomaly         = base.Anomaly
	ModelInfo       = base.ModelInfo
	ProjectInfo     = base.ProjectInfo
	State           = base.State
	Archive         = base.Archive
	Observability   = base.Observability
	Field           = base.Field
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src Source) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutPublisher(p Publisher) StreamOutOption {
	return base.StreamOutPublisher(p)
}

func StreamOutDetector(d Detector) StreamOutOption {
	return base.StreamOutDetector(d)
}

func StreamOutArchive(a Archive) StreamOutOption {
	return base.StreamOutArchive(a)
}

func StreamOutCallback(name string, fn PublishFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src Source) RuntimeOption {
	return base.WithSource(src)
}

func WithPublisher(p Publisher) RuntimeOption {
	return base.WithPublisher(p)
}

func WithDetector(d Detector) RuntimeOption {
	return base.WithDetector(d)
}

func WithArchive(a Archive) RuntimeOption {
	return base.WithArchive(a)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithSleeper(fn func(ctx context.Context, d time.Duration) error) RuntimeOption {
	return base.WithSleeper(fn)
}

// Publisher adapters.
func NewCallbackPublisher(name string, fn PublishFunc) Publisher {
	return base.NewCallbackPublisher(name, fn)
}

func NewChannelPublisher(name string, buffer int) (Publisher, <-chan Message, func()) {
	return base.NewChannelPublisher(name, buffer)
}

func ArchivedTotals(ctx context.Context, cfg ArchiveConfig) ([]int64, error) {
	return base.ArchivedTotals(ctx, cfg)
}
