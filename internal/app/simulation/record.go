package simulation

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ghalamif/bearingsim/internal/domain"
)

var errNotFinite = errors.New("value is not finite")

// ParseRecord turns one "timestamp,v1,...,vN" line into a Reading.
// The number of values must match the number of signals.
func ParseRecord(line string, lineNo int, signals []string) (domain.Reading, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) != len(signals)+1 {
		return domain.Reading{}, &domain.ParseError{
			Line:   lineNo,
			Reason: "expected " + strconv.Itoa(len(signals)+1) + " fields, got " + strconv.Itoa(len(fields)),
		}
	}

	raw := strings.TrimSpace(fields[0])
	ts, err := time.ParseInLocation(domain.TimestampLayout, raw, time.UTC)
	if err != nil {
		return domain.Reading{}, &domain.ParseError{Line: lineNo, Field: 1, Reason: "bad timestamp", Err: err}
	}

	values := make([]float64, len(signals))
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return domain.Reading{}, &domain.ParseError{Line: lineNo, Field: i + 2, Reason: "bad value for " + signals[i], Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Reading{}, &domain.ParseError{Line: lineNo, Field: i + 2, Reason: "bad value for " + signals[i], Err: errNotFinite}
		}
		values[i] = v
	}

	return domain.Reading{
		Timestamp: ts,
		Raw:       raw,
		Values:    values,
		Line:      lineNo,
	}, nil
}
