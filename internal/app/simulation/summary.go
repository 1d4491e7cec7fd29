package simulation

import (
	"fmt"
	"time"
)

const displayKeyLayout = "02/01/2006 15"

// CoarsenTimestamp rebuilds a recorded timestamp as an hour bucket key
// ("DD/MM/YYYY HH") and its epoch in milliseconds.
//
// Only day, month and hour are taken from raw; the year always comes from the
// caller, so windows that straddle a new year are labelled with the wrong year.
func CoarsenTimestamp(raw string, year int) (string, int64, error) {
	if len(raw) < 13 || raw[4] != '-' || raw[7] != '-' || raw[10] != 'T' {
		return "", 0, fmt.Errorf("coarsen %q: unexpected timestamp shape", raw)
	}
	day, month, hour := raw[8:10], raw[5:7], raw[11:13]

	key := fmt.Sprintf("%s/%s/%04d %s", day, month, year, hour)
	t, err := time.ParseInLocation(displayKeyLayout, key, time.UTC)
	if err != nil {
		return "", 0, fmt.Errorf("coarsen %q: %w", raw, err)
	}
	return key, t.UnixMilli(), nil
}

// Tally is the running anomaly count for one run.
type Tally struct {
	total int64
}

// Add records n detections and returns the new total. Negative counts are ignored.
func (t *Tally) Add(n int) int64 {
	if n > 0 {
		t.total += int64(n)
	}
	return t.total
}

func (t *Tally) Total() int64 { return t.total }
