package domain

import (
	"fmt"
	"time"
)

// TimestampLayout is the only accepted timestamp format in recorded data.
const TimestampLayout = "2006-01-02T15:04:05Z"

// DefaultSignalNames lists the bearing channels of the test rig, in column order.
var DefaultSignalNames = []string{"Br11", "Br12", "Br21", "Br22", "Br31", "Br32", "Br41", "Br42"}

// Reading is one timestamped bearing sample replayed from a recording.
type Reading struct {
	Timestamp time.Time
	Raw       string
	Values    []float64
	Line      int
}

// Summary is emitted once per full window.
type Summary struct {
	DisplayKey  string `json:"ts"`
	EpochMillis int64  `json:"tts"`
	Total       int64  `json:"total"`
}

// ParseError reports a data line that could not be turned into a Reading.
type ParseError struct {
	Line   int
	Field  int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	if e.Field > 0 {
		msg = fmt.Sprintf("line %d field %d: %s", e.Line, e.Field, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
