// Package progress defines the lifecycle events emitted by the search scheduler.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSearchStart     Stage = "SEARCH_START"
	StageSearchProgress  Stage = "SEARCH_PROGRESS"
	StageSearchDone      Stage = "SEARCH_DONE"
	StageSearchError     Stage = "SEARCH_ERROR"
	StageSearchCancelled Stage = "SEARCH_CANCELLED"
)

// Event captures a single milestone of a search run.
type Event struct {
	// JobID uniquely identifies a job run using the 16-byte UUID form.
	JobID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Username is the search target.
	Username string
	// RequesterID identifies who started the search.
	RequesterID string
	// SitesChecked carries the cumulative checked-site count.
	SitesChecked int64
	// Found carries the cumulative found-account count.
	Found int64
	// Dur captures wall time for terminal events.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Terminal reports whether the event ends a search run.
func (e Event) Terminal() bool {
	switch e.Stage {
	case StageSearchDone, StageSearchError, StageSearchCancelled:
		return true
	default:
		return false
	}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == [16]byte{} {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSearchStart:
		if e.Username == "" {
			return errors.New("search start requires username")
		}
	case StageSearchProgress, StageSearchDone, StageSearchError, StageSearchCancelled:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.SitesChecked < 0 || e.Found < 0 {
		return errors.New("counters must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// JobUUID converts the binary job ID to uuid.UUID for repositories.
func (e Event) JobUUID() uuid.UUID {
	return uuid.UUID(e.JobID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
