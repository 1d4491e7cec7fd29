package simulation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ghalamif/bearingsim/internal/domain"
)

// encodeReading renders {"ts": raw, "<signal>": value, ...} with signal keys
// lower-cased and kept in column order.
func encodeReading(r domain.Reading, signals []string) ([]byte, error) {
	if len(r.Values) != len(signals) {
		return nil, fmt.Errorf("line %d: %d values for %d signals", r.Line, len(r.Values), len(signals))
	}

	var b bytes.Buffer
	b.WriteString(`{"ts":`)
	ts, err := json.Marshal(r.Raw)
	if err != nil {
		return nil, err
	}
	b.Write(ts)

	for i, name := range signals {
		key, err := json.Marshal(strings.ToLower(name))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		b.WriteByte(',')
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func encodeSummary(s domain.Summary) ([]byte, error) {
	return json.Marshal(s)
}
