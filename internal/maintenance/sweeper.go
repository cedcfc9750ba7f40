// Package maintenance runs the periodic housekeeping jobs: log retention
// and paginator session eviction.
package maintenance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/paginate"
	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Config controls the Sweeper.
type Config struct {
	// Schedule is a cron expression; empty defaults to hourly.
	Schedule string
	// LogDir is the file-log directory swept for stale files.
	LogDir string
	// LogRetention drops log files older than this. Zero defaults to 7 days.
	LogRetention time.Duration
}

// Sweeper owns the cron loop. CleanupLogs is also callable directly so the
// owner command and the schedule share one implementation.
type Sweeper struct {
	cfg    Config
	clock  scout.Clock
	arena  *paginate.Arena
	logger *zap.Logger
	cron   *cron.Cron
}

// New constructs a Sweeper. arena may be nil when pagination is not in use.
func New(cfg Config, clock scout.Clock, arena *paginate.Arena, logger *zap.Logger) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}
	if cfg.LogRetention <= 0 {
		cfg.LogRetention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		cfg:    cfg,
		clock:  clock,
		arena:  arena,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start registers the sweep job and launches the cron loop.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	if s.arena != nil {
		if evicted := s.arena.Evict(); evicted > 0 {
			s.logger.Debug("evicted idle paginator sessions", zap.Int("count", evicted))
		}
	}
	if s.cfg.LogDir == "" {
		return
	}
	removed, err := s.CleanupLogs()
	if err != nil {
		s.logger.Warn("log sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("removed stale log files", zap.Int("count", removed))
	}
}

// CleanupLogs removes .log files in the configured directory older than the
// retention window and returns how many were deleted.
func (s *Sweeper) CleanupLogs() (int, error) {
	return CleanupDir(s.cfg.LogDir, s.cfg.LogRetention, s.clock)
}

// CleanupOlderThan is CleanupLogs with a caller-chosen age, used by the owner
// command when it is invoked with an explicit day count.
func (s *Sweeper) CleanupOlderThan(maxAge time.Duration) (int, error) {
	return CleanupDir(s.cfg.LogDir, maxAge, s.clock)
}

// CleanupDir removes .log files under dir whose modification time is older
// than maxAge. Missing directories count as already clean.
func CleanupDir(dir string, maxAge time.Duration, clock scout.Clock) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read log dir: %w", err)
	}
	cutoff := clock.Now().Add(-maxAge)

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
