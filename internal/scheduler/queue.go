// Package scheduler enforces single-flight execution of search jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/progress"
	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Config controls Queue behavior.
type Config struct {
	// Limits bounds user-supplied parameters; enforced before job creation.
	Limits scout.Limits
	// MaxDuration fails a job that overruns it. Zero disables the bound.
	// Per-site timeouts remain the scan engine's responsibility.
	MaxDuration time.Duration
}

// JobHandle is returned by Submit. Done receives exactly one terminal
// snapshot of the job and is then closed to further sends (buffered, never
// blocks the scheduler).
type JobHandle struct {
	ID   string
	Done <-chan scout.Job
}

// Queue is the single-flight scheduler. At most one job holds the run slot
// at any instant; concurrent submissions race on one mutex-guarded
// check-and-set, so exactly one wins.
type Queue struct {
	scanner scout.Scanner
	clock   scout.Clock
	idGen   scout.IDGenerator
	emitter progress.Emitter
	cfg     Config
	logger  *zap.Logger

	mu     sync.Mutex
	active *run // nil while idle
}

// run is the slot holder: one job, its cancel signal and delivery channel.
type run struct {
	job       *scout.Job
	cancel    context.CancelFunc
	done      chan scout.Job
	finalized bool // guarded by Queue.mu; guarantees one terminal transition
}

// New constructs a Queue.
func New(
	scanner scout.Scanner,
	clock scout.Clock,
	idGen scout.IDGenerator,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Queue {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		scanner: scanner,
		clock:   clock,
		idGen:   idGen,
		emitter: emitter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Submit validates the parameters, admits the job if the slot is free, and
// starts the scan asynchronously. It never blocks on the scan itself.
// Validation failures return before any queue state is touched.
func (q *Queue) Submit(params scout.Parameters, requester scout.Requester) (JobHandle, error) {
	if err := params.Validate(q.cfg.Limits); err != nil {
		return JobHandle{}, err
	}
	jobID, err := q.idGen.NewID()
	if err != nil {
		return JobHandle{}, fmt.Errorf("generate job id: %w", err)
	}
	now := q.clock.Now()

	q.mu.Lock()
	if q.active != nil {
		blocker := q.active.job
		conflict := &scout.AlreadyRunningError{
			Requester: blocker.Requester,
			Username:  blocker.Parameters.Username,
			Elapsed:   blocker.Duration(now),
		}
		q.mu.Unlock()
		return JobHandle{}, conflict
	}
	started := now
	job := &scout.Job{
		ID:         jobID,
		Requester:  requester,
		Parameters: params,
		Status:     scout.JobStatusQueued,
		Submitted:  now,
	}
	// Admission and dispatch are one atomic step: the slot is taken before
	// the lock drops, so a concurrent Submit observes Running, never Idle.
	job.Status = scout.JobStatusRunning
	job.Started = &started
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{job: job, cancel: cancel, done: make(chan scout.Job, 1)}
	q.active = r
	q.mu.Unlock()

	q.emit(r, progress.StageSearchStart)
	q.logger.Info("search admitted",
		zap.String("job_id", jobID),
		zap.String("username", params.Username),
		zap.String("requester_id", requester.ID),
	)

	go q.execute(ctx, r)
	return JobHandle{ID: jobID, Done: r.done}, nil
}

// Snapshot returns a copy of the active job's public fields, or false while
// the queue is idle. It never blocks on a running scan.
func (q *Queue) Snapshot() (scout.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil {
		return scout.Job{}, false
	}
	return q.active.job.Clone(), true
}

// Cancel transitions the active job to Cancelled, releases the slot, and
// signals the scan engine to stop. Further progress events from the
// cancelled run are discarded. Returns false if the queue was idle.
func (q *Queue) Cancel() (scout.Job, bool) {
	q.mu.Lock()
	r := q.active
	q.mu.Unlock()
	if r == nil {
		return scout.Job{}, false
	}
	snap, ok := q.finalize(r, scout.OutcomeCancelled, "cancelled by user")
	if !ok {
		return scout.Job{}, false
	}
	return snap, true
}

func (q *Queue) execute(ctx context.Context, r *run) {
	events, err := q.scanner.Scan(ctx, r.job.Parameters)
	if err != nil {
		q.finalize(r, scout.OutcomeFailed, fmt.Sprintf("start scan: %v", err))
		return
	}

	var overrun <-chan time.Time
	if q.cfg.MaxDuration > 0 {
		timer := time.NewTimer(q.cfg.MaxDuration)
		defer timer.Stop()
		overrun = timer.C
	}

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				// Stream ended without a terminal event; the slot must not
				// leak, so the job fails rather than hanging in Running.
				q.finalize(r, scout.OutcomeFailed, "scan stream closed without terminal event")
				return
			}
			if evt.Terminal {
				q.finalize(r, evt.Outcome, evt.Error)
				return
			}
			q.applyProgress(r, evt)
		case <-overrun:
			q.finalize(r, scout.OutcomeFailed, "exceeded maximum search duration")
			go drainEvents(events)
			return
		}
	}
}

// applyProgress folds a progress event into the job. Arrival order on the
// single consumer goroutine defines discovery order, regardless of which
// site finished first inside the engine.
func (q *Queue) applyProgress(r *run, evt scout.ScanEvent) {
	q.mu.Lock()
	if r.finalized {
		q.mu.Unlock()
		return
	}
	if evt.SitesChecked > r.job.SitesChecked {
		r.job.SitesChecked = evt.SitesChecked
	}
	r.job.Found = append(r.job.Found, evt.NewEntries...)
	q.mu.Unlock()

	q.emit(r, progress.StageSearchProgress)
}

// finalize performs the terminal transition exactly once: it stamps the
// outcome, releases the single-flight slot, signals the engine to stop, and
// delivers the snapshot. Every exit path of a run funnels through here so
// the slot can never leak into a permanently-busy state.
func (q *Queue) finalize(r *run, outcome scout.Outcome, detail string) (scout.Job, bool) {
	now := q.clock.Now()

	q.mu.Lock()
	if r.finalized {
		q.mu.Unlock()
		return scout.Job{}, false
	}
	r.finalized = true
	r.job.Status = outcome.Status()
	r.job.Finished = &now
	if outcome != scout.OutcomeCompleted {
		r.job.ErrorText = detail
	}
	snap := r.job.Clone()
	if q.active == r {
		q.active = nil
	}
	q.mu.Unlock()

	r.cancel()
	select {
	case r.done <- snap:
	default:
	}

	q.emit(r, terminalStage(outcome))
	q.logger.Info("search finished",
		zap.String("job_id", snap.ID),
		zap.String("status", string(snap.Status)),
		zap.Int("sites_checked", snap.SitesChecked),
		zap.Int("found", len(snap.Found)),
		zap.Duration("duration", snap.Duration(now)),
	)
	return snap, true
}

func (q *Queue) emit(r *run, stage progress.Stage) {
	q.mu.Lock()
	job := r.job.Clone()
	q.mu.Unlock()

	id, err := uuid.Parse(job.ID)
	if err != nil {
		return
	}
	q.emitter.Emit(progress.Event{
		JobID:        progress.UUIDToBytes(id),
		TS:           q.clock.Now(),
		Stage:        stage,
		Username:     job.Parameters.Username,
		RequesterID:  job.Requester.ID,
		SitesChecked: int64(job.SitesChecked),
		Found:        int64(len(job.Found)),
		Dur:          job.Duration(q.clock.Now()),
		Note:         job.ErrorText,
	})
}

func terminalStage(outcome scout.Outcome) progress.Stage {
	switch outcome {
	case scout.OutcomeCompleted:
		return progress.StageSearchDone
	case scout.OutcomeCancelled:
		return progress.StageSearchCancelled
	default:
		return progress.StageSearchError
	}
}

// drainEvents empties an abandoned stream so the producer can finish
// shutting down after a max-duration overrun.
func drainEvents(events <-chan scout.ScanEvent) {
	for range events {
	}
}
