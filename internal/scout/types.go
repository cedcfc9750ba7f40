// Package scout defines core types shared across subsystems.
package scout

import (
	"time"
)

// JobStatus represents the lifecycle state of a search job.
type JobStatus string

// Job status values. Completed, Failed and Cancelled are terminal.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition can occur from s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Requester identifies the user who invoked a command.
type Requester struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Parameters captures per-search configuration knobs requested by the caller.
type Parameters struct {
	Username       string        `json:"username"`
	TopSites       int           `json:"top_sites"`
	Tags           []string      `json:"tags,omitempty"`
	Sites          []string      `json:"sites,omitempty"`
	SiteTimeout    time.Duration `json:"site_timeout"`
	MaxConnections int           `json:"max_connections"`
	Retries        int           `json:"retries"`
	ParsingEnabled bool          `json:"parsing_enabled"`
	IncludeSimilar bool          `json:"include_similar"`
}

// FoundAccount is one claimed account discovered by the scan engine.
// Insertion order in Job.Found equals discovery order.
type FoundAccount struct {
	Site     string            `json:"site"`
	URL      string            `json:"url"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Job represents one in-flight or archived search.
type Job struct {
	ID           string         `json:"id"`
	Requester    Requester      `json:"requester"`
	Parameters   Parameters     `json:"parameters"`
	Status       JobStatus      `json:"status"`
	Submitted    time.Time      `json:"submitted_at"`
	Started      *time.Time     `json:"started_at,omitempty"`
	Finished     *time.Time     `json:"finished_at,omitempty"`
	SitesChecked int            `json:"sites_checked"`
	Found        []FoundAccount `json:"found_accounts"`
	ErrorText    string         `json:"error_text,omitempty"`
}

// Duration returns the wall time between start and finish. For a running job
// it returns the elapsed time since start measured against now.
func (j Job) Duration(now time.Time) time.Duration {
	if j.Started == nil {
		return 0
	}
	if j.Finished != nil {
		return j.Finished.Sub(*j.Started)
	}
	return now.Sub(*j.Started)
}

// Clone returns a deep copy so snapshots cannot alias scheduler state.
func (j Job) Clone() Job {
	cp := j
	if j.Started != nil {
		t := *j.Started
		cp.Started = &t
	}
	if j.Finished != nil {
		t := *j.Finished
		cp.Finished = &t
	}
	cp.Found = make([]FoundAccount, len(j.Found))
	copy(cp.Found, j.Found)
	cp.Parameters.Tags = append([]string(nil), j.Parameters.Tags...)
	cp.Parameters.Sites = append([]string(nil), j.Parameters.Sites...)
	return cp
}

// Outcome classifies how a scan terminated.
type Outcome string

// Terminal outcomes reported by the scan engine.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Status returns the job status corresponding to the outcome.
func (o Outcome) Status() JobStatus {
	switch o {
	case OutcomeCompleted:
		return JobStatusCompleted
	case OutcomeCancelled:
		return JobStatusCancelled
	default:
		return JobStatusFailed
	}
}

// ScanEvent is one message on the scan engine's event stream. A non-terminal
// event carries progress; the final event carries the outcome. The engine
// must send exactly one terminal event and then close the stream.
type ScanEvent struct {
	SitesChecked int            `json:"sites_checked"`
	NewEntries   []FoundAccount `json:"new_entries,omitempty"`
	Terminal     bool           `json:"terminal"`
	Outcome      Outcome        `json:"outcome,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// WhitelistEntry grants a user the Whitelisted tier. Unique per UserID.
type WhitelistEntry struct {
	UserID  string    `json:"user_id"`
	AddedBy string    `json:"added_by"`
	Notes   string    `json:"notes,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// SearchRecord is the durable history row written for each finished search.
type SearchRecord struct {
	UserID        string        `json:"user_id"`
	Username      string        `json:"username"`
	SitesChecked  int           `json:"sites_checked"`
	AccountsFound int           `json:"accounts_found"`
	Duration      time.Duration `json:"duration"`
	Timestamp     time.Time     `json:"timestamp"`
}

// LogKind partitions routed events across destination channels.
type LogKind string

// Routable log kinds.
const (
	LogKindDebug  LogKind = "debug"
	LogKindUser   LogKind = "user"
	LogKindOutput LogKind = "output"
)

// Limits bounds user-supplied search parameters. Zero fields fall back to
// the package defaults below.
type Limits struct {
	TopSites       int
	SiteTimeout    time.Duration
	MaxConnections int
	Retries        int
}

// Hard ceilings applied when a Limits field is unset.
const (
	DefaultTopSitesLimit       = 1500
	DefaultSiteTimeoutLimit    = 300 * time.Second
	DefaultMaxConnectionsLimit = 200
	DefaultRetriesLimit        = 5
)

func (l Limits) withDefaults() Limits {
	if l.TopSites <= 0 {
		l.TopSites = DefaultTopSitesLimit
	}
	if l.SiteTimeout <= 0 {
		l.SiteTimeout = DefaultSiteTimeoutLimit
	}
	if l.MaxConnections <= 0 {
		l.MaxConnections = DefaultMaxConnectionsLimit
	}
	if l.Retries <= 0 {
		l.Retries = DefaultRetriesLimit
	}
	return l
}
