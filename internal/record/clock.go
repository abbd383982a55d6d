package record

import "time"

// Clock supplies millisecond wall-clock timestamps. A single Clock instance
// must feed created_at, updated_at, and the download watermark so that
// within-process ordering stays consistent. Tests inject a fixed clock.
type Clock interface {
	Now() int64
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current time as Unix milliseconds.
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}
