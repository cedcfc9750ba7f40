// Package logrouter fans bot events out to their configured destinations.
package logrouter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Message is one routed event.
type Message struct {
	Kind scout.LogKind
	Text string
	// AttachmentURIs reference stored report artifacts, if any.
	AttachmentURIs []string
}

// Sender delivers a message to a destination channel.
type Sender interface {
	Send(ctx context.Context, destination string, msg Message) error
}

// Config controls the Router.
type Config struct {
	// FileDir is where per-kind log files are appended when file logging
	// is enabled. Empty disables file logging entirely.
	FileDir string
}

// Router reads the destination for each event from the record store at send
// time, so channel reassignments apply to the very next event without a
// restart. A kind with no configured destination returns ErrNoDestination,
// which callers treat as "skip", never as a failure.
type Router struct {
	store  scout.RecordStore
	sender Sender
	clock  scout.Clock
	cfg    Config
	logger *zap.Logger

	fileMu sync.Mutex
}

// New constructs a Router.
func New(store scout.RecordStore, sender Sender, clock scout.Clock, cfg Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		store:  store,
		sender: sender,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// Route delivers msg to the channel configured for its kind. The file copy
// is written regardless of channel configuration when file logging is on.
func (r *Router) Route(ctx context.Context, msg Message) error {
	if err := r.appendFile(ctx, msg); err != nil {
		// File trouble must not block channel delivery.
		r.logger.Warn("file log append failed", zap.Error(err))
	}

	key := scout.SettingKeyForKind(msg.Kind)
	if key == "" {
		return fmt.Errorf("unknown log kind %q", msg.Kind)
	}
	dest, ok, err := r.store.GetSetting(ctx, key)
	if err != nil {
		return fmt.Errorf("resolve destination for %s: %w", msg.Kind, err)
	}
	if !ok || dest == "" {
		return fmt.Errorf("%s log: %w", msg.Kind, scout.ErrNoDestination)
	}
	if err := r.sender.Send(ctx, dest, msg); err != nil {
		return fmt.Errorf("send %s log to %s: %w", msg.Kind, dest, err)
	}
	return nil
}

// FileLoggingEnabled reports the current file-logging switch. The switch
// lives in the record store; absent means enabled.
func (r *Router) FileLoggingEnabled(ctx context.Context) (bool, error) {
	if r.cfg.FileDir == "" {
		return false, nil
	}
	v, ok, err := r.store.GetSetting(ctx, scout.SettingFileLogs)
	if err != nil {
		return false, fmt.Errorf("read file-log setting: %w", err)
	}
	if !ok {
		return true, nil
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true, nil
	}
	return enabled, nil
}

// SetFileLogging flips the file-logging switch and returns the new state.
func (r *Router) SetFileLogging(ctx context.Context, enabled bool) error {
	return r.store.SetSetting(ctx, scout.SettingFileLogs, strconv.FormatBool(enabled))
}

func (r *Router) appendFile(ctx context.Context, msg Message) error {
	enabled, err := r.FileLoggingEnabled(ctx)
	if err != nil || !enabled {
		return err
	}

	r.fileMu.Lock()
	defer r.fileMu.Unlock()

	if err := os.MkdirAll(r.cfg.FileDir, 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(r.cfg.FileDir, string(msg.Kind)+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s [%s] %s\n",
		r.clock.Now().UTC().Format(time.RFC3339), msg.Kind, msg.Text)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}
