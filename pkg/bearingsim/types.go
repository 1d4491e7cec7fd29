package bearingsim

import (
	"github.com/ghalamif/bearingsim/internal/app/simulation"
	"github.com/ghalamif/bearingsim/internal/domain"
	"github.com/ghalamif/bearingsim/internal/ports"
)

// Reading is one parsed line of the recording.
type Reading = domain.Reading

// Summary is the running anomaly total published after each window.
type Summary = domain.Summary

// Source yields raw recording lines (files, embedded fixtures, generators).
type Source = ports.Source

// Publisher hands payloads to a message bus or any other consumer.
type Publisher = ports.Publisher

// Detector scores a window of readings.
type Detector = ports.Detector

type (
	DetectRequest = ports.DetectRequest
	DetectResult  = ports.DetectResult
	DataPoint     = ports.DataPoint
	Detection     = ports.Detection
	Anomaly       = ports.Anomaly
	ModelInfo     = ports.ModelInfo
	ProjectInfo   = ports.ProjectInfo
)

// Archive stores emitted summaries.
type Archive = ports.Archive

// Observability emits logs and metrics about the run.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// Report is returned by Runtime.Run.
type Report = simulation.Report

type State = simulation.State

// ErrSourceUnavailable marks a recording that could not be opened or read.
var ErrSourceUnavailable = simulation.ErrSourceUnavailable

const (
	StateIdle      = simulation.StateIdle
	StateRunning   = simulation.StateRunning
	StateCompleted = simulation.StateCompleted
	StateFailed    = simulation.StateFailed
	StateCancelled = simulation.StateCancelled
)
