package bearingsim

import (
	"context"
	"fmt"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the source side of the simulation.
type StreamInOption func(*Flow)

// StreamOutOption configures the publisher, detector and archive side.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can adjust window,
// broker or model settings before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records source-side overrides (recording source, observability).
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records output overrides and builds a Runtime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) (Report, error) {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return Report{}, err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInSource replays lines from a caller-provided source instead of the CSV file.
func StreamInSource(src Source) StreamInOption {
	return func(f *Flow) {
		if f != nil && src != nil {
			f.appendOptions(WithSource(src))
		}
	}
}

// StreamInObservability overrides the default Prometheus and tint logging stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutPublisher sends readings and summaries somewhere other than the MQTT broker.
func StreamOutPublisher(p Publisher) StreamOutOption {
	return func(f *Flow) {
		if f != nil && p != nil {
			f.appendOptions(WithPublisher(p))
		}
	}
}

// StreamOutDetector scores windows with a caller-provided model instead of the HTTP endpoint.
func StreamOutDetector(d Detector) StreamOutOption {
	return func(f *Flow) {
		if f != nil && d != nil {
			f.appendOptions(WithDetector(d))
		}
	}
}

// StreamOutArchive stores every summary in a caller-provided archive.
func StreamOutArchive(a Archive) StreamOutOption {
	return func(f *Flow) {
		if f != nil && a != nil {
			f.appendOptions(WithArchive(a))
		}
	}
}

// StreamOutCallback installs a publisher built from a simple callback function.
func StreamOutCallback(name string, fn PublishFunc) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithPublisher(NewCallbackPublisher(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
