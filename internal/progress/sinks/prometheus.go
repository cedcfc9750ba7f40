package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbazhenov/scoutbot/internal/progress"
)

// PrometheusSink exports search progress metrics via Prometheus. It owns all
// collectors for searches started/completed/running and result counters.
type PrometheusSink struct {
	searchesStarted   prometheus.Counter
	searchesCompleted *prometheus.CounterVec
	searchRunning     prometheus.Gauge
	searchRuntime     *prometheus.HistogramVec
	sitesChecked      prometheus.Counter
	accountsFound     prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		searchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutbot_searches_started_total",
			Help: "Total searches that have started.",
		}),
		searchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoutbot_searches_completed_total",
			Help: "Total searches completed partitioned by result.",
		}, []string{"result"}),
		searchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scoutbot_search_running",
			Help: "Whether a search currently holds the single-flight slot.",
		}),
		searchRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoutbot_search_runtime_seconds",
			Help:    "Wall time per completed search.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		sitesChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutbot_sites_checked_total",
			Help: "Cumulative sites checked across completed searches.",
		}),
		accountsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutbot_accounts_found_total",
			Help: "Cumulative accounts found across completed searches.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.searchesStarted,
		s.searchesCompleted,
		s.searchRunning,
		s.searchRuntime,
		s.sitesChecked,
		s.accountsFound,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSearchStart:
		s.searchesStarted.Inc()
		if s.tracker.start(evt.JobID) {
			s.searchRunning.Inc()
		}
	case progress.StageSearchDone:
		s.complete(evt, "completed")
	case progress.StageSearchError:
		s.complete(evt, "failed")
	case progress.StageSearchCancelled:
		s.complete(evt, "cancelled")
	}
}

func (s *PrometheusSink) complete(evt progress.Event, result string) {
	s.searchesCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.searchRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	s.sitesChecked.Add(float64(evt.SitesChecked))
	s.accountsFound.Add(float64(evt.Found))
	if s.tracker.complete(evt.JobID) {
		s.searchRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
