package domain

import (
	"fmt"
	"time"
)

// InvalidRangeError is returned when a fetch is requested with start after end.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s", FormatDate(e.Start), FormatDate(e.End))
}

// UpstreamError reports a failed catalog request: transport failure, non-2xx
// status, or a body that is not a feature collection. StatusCode is 0 when no
// response was received.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog error: status %d: %s", e.StatusCode, e.Message)
	}
	return "catalog error: " + e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
