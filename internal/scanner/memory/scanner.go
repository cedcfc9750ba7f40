// Package memory provides a synthetic scan engine for development and tests.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Config controls the synthetic engine.
type Config struct {
	// Sites are the names probed per run. Empty uses a small builtin set.
	Sites []string
	// StepDelay is the pause between per-site events.
	StepDelay time.Duration
	// HitEvery marks every n-th site as a found account. Zero means every
	// third site.
	HitEvery int
}

// Scanner fabricates deterministic results from the username. It exists so
// the full pipeline (queue, reports, pagination, routing) can run without
// the external recon engine installed.
type Scanner struct {
	cfg Config
}

// New constructs the synthetic Scanner.
func New(cfg Config) *Scanner {
	if len(cfg.Sites) == 0 {
		cfg.Sites = []string{
			"github", "reddit", "mastodon", "bluesky", "gitlab",
			"keybase", "twitch", "steam", "soundcloud", "medium",
		}
	}
	if cfg.HitEvery <= 0 {
		cfg.HitEvery = 3
	}
	return &Scanner{cfg: cfg}
}

// Scan emits one progress event per site and a terminal completion. Hits are
// a pure function of username and site, so reruns produce identical results.
func (s *Scanner) Scan(ctx context.Context, params scout.Parameters) (<-chan scout.ScanEvent, error) {
	sites := s.cfg.Sites
	if params.TopSites > 0 && params.TopSites < len(sites) {
		sites = sites[:params.TopSites]
	}

	events := make(chan scout.ScanEvent)
	go func() {
		defer close(events)
		checked := 0
		for _, site := range sites {
			if s.cfg.StepDelay > 0 {
				select {
				case <-time.After(s.cfg.StepDelay):
				case <-ctx.Done():
					s.send(ctx, events, scout.ScanEvent{
						Terminal: true,
						Outcome:  scout.OutcomeCancelled,
						Error:    "scan cancelled",
					})
					return
				}
			} else if ctx.Err() != nil {
				s.send(ctx, events, scout.ScanEvent{
					Terminal: true,
					Outcome:  scout.OutcomeCancelled,
					Error:    "scan cancelled",
				})
				return
			}

			checked++
			evt := scout.ScanEvent{SitesChecked: checked}
			if s.hit(params.Username, site) {
				evt.NewEntries = []scout.FoundAccount{{
					Site: site,
					URL:  fmt.Sprintf("https://%s.example/%s", site, params.Username),
				}}
			}
			if !s.send(ctx, events, evt) {
				return
			}
		}
		s.send(ctx, events, scout.ScanEvent{Terminal: true, Outcome: scout.OutcomeCompleted})
	}()
	return events, nil
}

// Reload is a no-op for the synthetic engine.
func (s *Scanner) Reload(context.Context) error { return nil }

func (s *Scanner) send(ctx context.Context, events chan<- scout.ScanEvent, evt scout.ScanEvent) bool {
	select {
	case events <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scanner) hit(username, site string) bool {
	h := fnv.New32a()
	h.Write([]byte(username))
	h.Write([]byte{0})
	h.Write([]byte(site))
	return h.Sum32()%uint32(s.cfg.HitEvery) == 0
}
