package scout

import (
	"errors"
	"fmt"
	"time"
)

// ErrPermissionDenied is returned when the caller's tier is insufficient.
var ErrPermissionDenied = errors.New("permission denied")

// ErrNoDestination is returned by the log router when the kind has no
// configured channel. Emitters treat it as a no-op, never as a failure.
var ErrNoDestination = errors.New("no destination configured")

// AlreadyRunningError rejects a submission while another job holds the
// single-flight slot. It carries enough context for a useful reply.
type AlreadyRunningError struct {
	Requester Requester
	Username  string
	Elapsed   time.Duration
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("a search for %q is already running (requested by %s, elapsed %s)",
		e.Username, e.Requester.DisplayName, e.Elapsed.Round(time.Second))
}

// InvalidParameterError names the offending field so the caller can fix it.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// ScanFailureError wraps an adapter-reported failure. Error() stays generic;
// Detail is only ever routed to the debug log.
type ScanFailureError struct {
	JobID  string
	Detail string
}

func (e *ScanFailureError) Error() string {
	return "search failed"
}
