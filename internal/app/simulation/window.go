package simulation

import (
	"errors"
	"fmt"

	"github.com/ghalamif/bearingsim/internal/domain"
)

// ErrWindowFull is returned by Append once the window holds Cap readings.
var ErrWindowFull = errors.New("simulation: window full")

// Window is a fixed-size batch of consecutive readings awaiting inference.
// It is owned by a single simulation loop and is not safe for concurrent use.
type Window struct {
	data []domain.Reading
	cap  int
}

func NewWindow(size int) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size must be >= 1, got %d", size)
	}
	return &Window{
		data: make([]domain.Reading, 0, size),
		cap:  size,
	}, nil
}

// Append adds r and reports whether the window just reached capacity.
// The caller must Drain a full window before appending again.
func (w *Window) Append(r domain.Reading) (bool, error) {
	if len(w.data) >= w.cap {
		return true, ErrWindowFull
	}
	w.data = append(w.data, r)
	return len(w.data) == w.cap, nil
}

// Records exposes the buffered readings without resetting the window.
func (w *Window) Records() []domain.Reading {
	return w.data
}

// Drain returns the buffered readings in insertion order and empties the window.
func (w *Window) Drain() []domain.Reading {
	if len(w.data) == 0 {
		return nil
	}
	out := make([]domain.Reading, len(w.data))
	copy(out, w.data)
	w.data = w.data[:0]
	return out
}

func (w *Window) Len() int { return len(w.data) }

func (w *Window) Cap() int { return w.cap }
