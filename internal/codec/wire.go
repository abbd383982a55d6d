// Package codec converts between local rows and the remote wire shape.
// Locally timestamps are Unix milliseconds and JSON payloads (run routes,
// message data) are compact strings; on the wire timestamps are ISO-8601
// strings with millisecond precision and JSON payloads are native values.
// Absent optionals serialize as explicit nulls.
//
// Each table gets a static wire struct with field-by-field mapping — no
// reflection beyond encoding/json's own, and each pair is unit-testable in
// isolation.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// isoLayout is RFC 3339 with forced millisecond precision, UTC. The remote
// store compares and returns timestamps in this shape, so watermark filter
// values must use it too.
const isoLayout = "2006-01-02T15:04:05.000Z"

// ISOMillis formats a Unix-millisecond timestamp for the wire.
func ISOMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoLayout)
}

// isoTime is a Unix-millisecond timestamp that marshals as an ISO-8601 string.
type isoTime int64

func (t isoTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ISOMillis(int64(t)))
}

func (t *isoTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("codec: timestamp not a string: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("codec: parsing timestamp %q: %w", s, err)
	}

	*t = isoTime(parsed.UnixMilli())

	return nil
}

// jsonText is a locally-stored JSON string that crosses the wire as the value
// itself. The empty string means absent and marshals as null. Invalid JSON in
// the local string is an encoding error — the row is poison until repaired.
type jsonText string

func (j jsonText) MarshalJSON() ([]byte, error) {
	if j == "" {
		return []byte("null"), nil
	}

	if !json.Valid([]byte(j)) {
		return nil, fmt.Errorf("codec: local JSON payload is not valid JSON")
	}

	return []byte(j), nil
}

func (j *jsonText) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*j = ""
		return nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return fmt.Errorf("codec: compacting JSON payload: %w", err)
	}

	*j = jsonText(buf.String())

	return nil
}

// isoPtr converts an optional millisecond timestamp for the wire.
func isoPtr(ms *int64) *isoTime {
	if ms == nil {
		return nil
	}

	t := isoTime(*ms)

	return &t
}

// msPtr converts an optional wire timestamp back to milliseconds.
func msPtr(t *isoTime) *int64 {
	if t == nil {
		return nil
	}

	ms := int64(*t)

	return &ms
}
