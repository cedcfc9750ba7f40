package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

func (s *Service) handleWhitelist(ctx context.Context, req Request) (Response, error) {
	sub := strings.ToLower(s.arg(req, 0))
	switch sub {
	case "add":
		userID := s.arg(req, 1)
		if userID == "" {
			return Response{}, &scout.InvalidParameterError{Field: "user", Reason: "user id is required"}
		}
		if s.deps.Gate.IsOwner(userID) {
			return Response{Text: fmt.Sprintf("%s is an owner and already authorized.", userID)}, nil
		}
		notes, _ := s.option(req, "notes")
		added, err := s.deps.Store.AddWhitelist(ctx, scout.WhitelistEntry{
			UserID:  userID,
			AddedBy: req.Requester.ID,
			Notes:   notes,
			AddedAt: s.deps.Clock.Now().UTC(),
		})
		if err != nil {
			return Response{}, fmt.Errorf("add whitelist entry: %w", err)
		}
		if !added {
			return Response{Text: fmt.Sprintf("%s is already whitelisted.", userID)}, nil
		}
		s.routeDebug(ctx, fmt.Sprintf("%s whitelisted %s", req.Requester.ID, userID))
		return Response{Text: fmt.Sprintf("Added %s to the whitelist.", userID)}, nil

	case "remove":
		userID := s.arg(req, 1)
		if userID == "" {
			return Response{}, &scout.InvalidParameterError{Field: "user", Reason: "user id is required"}
		}
		removed, err := s.deps.Store.RemoveWhitelist(ctx, userID)
		if err != nil {
			return Response{}, fmt.Errorf("remove whitelist entry: %w", err)
		}
		if !removed {
			return Response{Text: fmt.Sprintf("%s is not on the whitelist.", userID)}, nil
		}
		s.routeDebug(ctx, fmt.Sprintf("%s removed %s from the whitelist", req.Requester.ID, userID))
		return Response{Text: fmt.Sprintf("Removed %s from the whitelist.", userID)}, nil

	case "view", "":
		entries, err := s.deps.Store.ListWhitelist(ctx)
		if err != nil {
			return Response{}, fmt.Errorf("list whitelist: %w", err)
		}
		if len(entries) == 0 {
			return Response{Text: "The whitelist is empty."}, nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Whitelisted users (%d):\n", len(entries))
		for i, e := range entries {
			fmt.Fprintf(&b, "%d. %s (added by %s on %s)",
				i+1, e.UserID, e.AddedBy, e.AddedAt.UTC().Format("2006-01-02"))
			if e.Notes != "" {
				fmt.Fprintf(&b, " - %s", e.Notes)
			}
			b.WriteString("\n")
		}
		return Response{Text: strings.TrimRight(b.String(), "\n")}, nil

	default:
		return Response{}, &scout.InvalidParameterError{
			Field:  "subcommand",
			Reason: fmt.Sprintf("unknown whitelist subcommand %q (use add, remove or view)", sub),
		}
	}
}

func (s *Service) handleSettings(ctx context.Context, _ Request) (Response, error) {
	params, err := s.effectiveDefaults(ctx)
	if err != nil {
		return Response{}, err
	}
	settings, err := s.deps.Store.AllSettings(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("read settings: %w", err)
	}

	channel := func(key string) string {
		if v, ok := settings[key]; ok && v != "" {
			return v
		}
		return "(not set)"
	}
	fileLogs := "enabled"
	if v, ok := settings[scout.SettingFileLogs]; ok {
		if enabled, err := strconv.ParseBool(v); err == nil && !enabled {
			fileLogs = "disabled"
		}
	}

	var b strings.Builder
	b.WriteString("Current settings:\n")
	fmt.Fprintf(&b, "Search defaults: top_sites=%d, timeout=%ds, max_connections=%d, retries=%d, parsing=%t, similar=%t\n",
		params.TopSites, int(params.SiteTimeout.Seconds()), params.MaxConnections,
		params.Retries, params.ParsingEnabled, params.IncludeSimilar)
	fmt.Fprintf(&b, "Debug channel:  %s\n", channel(scout.SettingDebugChannel))
	fmt.Fprintf(&b, "User channel:   %s\n", channel(scout.SettingUserChannel))
	fmt.Fprintf(&b, "Output channel: %s\n", channel(scout.SettingOutputChannel))
	fmt.Fprintf(&b, "File logs:      %s", fileLogs)
	return Response{Text: b.String()}, nil
}

// defaultKeys maps setdefault names to their setting key and value codec.
var defaultKeys = map[string]struct {
	setting string
	kind    string // "int", "seconds" or "bool"
}{
	"top_sites":       {scout.SettingTopSites, "int"},
	"timeout":         {scout.SettingSiteTimeout, "seconds"},
	"max_connections": {scout.SettingMaxConnections, "int"},
	"retries":         {scout.SettingRetries, "int"},
	"parsing":         {scout.SettingParsing, "bool"},
	"similar":         {scout.SettingIncludeSimilar, "bool"},
}

// handleSetDefault persists an owner override for a search default.
// Numeric values are clamped into the hard limits rather than rejected.
func (s *Service) handleSetDefault(ctx context.Context, req Request) (Response, error) {
	key := strings.ToLower(s.arg(req, 0))
	value := s.arg(req, 1)
	spec, ok := defaultKeys[key]
	if !ok {
		names := make([]string, 0, len(defaultKeys))
		for name := range defaultKeys {
			names = append(names, name)
		}
		sort.Strings(names)
		return Response{}, &scout.InvalidParameterError{
			Field:  "key",
			Reason: fmt.Sprintf("unknown default %q (known: %s)", key, strings.Join(names, ", ")),
		}
	}
	if value == "" {
		deleted, err := s.deps.Store.DeleteSetting(ctx, spec.setting)
		if err != nil {
			return Response{}, fmt.Errorf("clear default %s: %w", key, err)
		}
		if !deleted {
			return Response{Text: fmt.Sprintf("Default %s was not overridden.", key)}, nil
		}
		return Response{Text: fmt.Sprintf("Cleared the %s override; the configured default applies again.", key)}, nil
	}

	stored, display, err := s.encodeDefault(spec.kind, key, value)
	if err != nil {
		return Response{}, err
	}
	if err := s.deps.Store.SetSetting(ctx, spec.setting, stored); err != nil {
		return Response{}, fmt.Errorf("store default %s: %w", key, err)
	}
	s.routeDebug(ctx, fmt.Sprintf("%s set default %s to %s", req.Requester.ID, key, display))
	return Response{Text: fmt.Sprintf("Default %s is now %s.", key, display)}, nil
}

func (s *Service) encodeDefault(kind, key, value string) (stored, display string, err error) {
	limits := s.deps.Limits
	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", "", &scout.InvalidParameterError{Field: key, Reason: "must be true or false"}
		}
		v := strconv.FormatBool(b)
		return v, v, nil
	case "seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", "", &scout.InvalidParameterError{Field: key, Reason: "must be an integer of seconds"}
		}
		maxSec := int(limits.SiteTimeout.Seconds())
		if maxSec <= 0 {
			maxSec = int(scout.DefaultSiteTimeoutLimit.Seconds())
		}
		n = scout.Clamp(n, 1, maxSec)
		return strconv.Itoa(n), fmt.Sprintf("%ds", n), nil
	default:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", "", &scout.InvalidParameterError{Field: key, Reason: "must be an integer"}
		}
		min, max := 1, 0
		switch key {
		case "top_sites":
			max = limits.TopSites
			if max <= 0 {
				max = scout.DefaultTopSitesLimit
			}
		case "max_connections":
			max = limits.MaxConnections
			if max <= 0 {
				max = scout.DefaultMaxConnectionsLimit
			}
		case "retries":
			min = 0
			max = limits.Retries
			if max <= 0 {
				max = scout.DefaultRetriesLimit
			}
		}
		n = scout.Clamp(n, min, max)
		v := strconv.Itoa(n)
		return v, v, nil
	}
}

// handleLogChannel returns the handler for debuglog/userlog/outputlog. An
// empty argument clears the destination, silencing that kind.
func (s *Service) handleLogChannel(kind scout.LogKind) func(context.Context, Request) (Response, error) {
	return func(ctx context.Context, req Request) (Response, error) {
		key := scout.SettingKeyForKind(kind)
		channelID := s.arg(req, 0)
		if channelID == "" {
			if _, err := s.deps.Store.DeleteSetting(ctx, key); err != nil {
				return Response{}, fmt.Errorf("clear %s channel: %w", kind, err)
			}
			return Response{Text: fmt.Sprintf("The %s log channel is now unset; %s events will be skipped.", kind, kind)}, nil
		}
		if err := s.deps.Store.SetSetting(ctx, key, channelID); err != nil {
			return Response{}, fmt.Errorf("set %s channel: %w", kind, err)
		}
		return Response{Text: fmt.Sprintf("The %s log channel is now %s.", kind, channelID)}, nil
	}
}

// handleReload refreshes the scan engine's site data. Refused while a search
// is running so the engine never swaps data mid-scan.
func (s *Service) handleReload(ctx context.Context, req Request) (Response, error) {
	if job, running := s.deps.Queue.Snapshot(); running {
		return Response{}, &scout.AlreadyRunningError{
			Requester: job.Requester,
			Username:  job.Parameters.Username,
			Elapsed:   job.Duration(s.deps.Clock.Now()),
		}
	}
	if err := s.deps.Scanner.Reload(ctx); err != nil {
		s.routeDebug(ctx, fmt.Sprintf("engine reload requested by %s failed: %v", req.Requester.ID, err))
		return Response{}, fmt.Errorf("reload engine data: %w", err)
	}
	return Response{Text: "Engine site data reloaded."}, nil
}

func (s *Service) handleToggleFileLogs(ctx context.Context, _ Request) (Response, error) {
	enabled, err := s.deps.Router.FileLoggingEnabled(ctx)
	if err != nil {
		return Response{}, err
	}
	if err := s.deps.Router.SetFileLogging(ctx, !enabled); err != nil {
		return Response{}, fmt.Errorf("toggle file logs: %w", err)
	}
	if enabled {
		return Response{Text: "File logging disabled."}, nil
	}
	return Response{Text: "File logging enabled."}, nil
}

// handleCleanupLogs removes stale log files. An optional first argument sets
// the age threshold in days (minimum 1); otherwise the configured retention
// window applies.
func (s *Service) handleCleanupLogs(ctx context.Context, req Request) (Response, error) {
	if s.deps.Sweeper == nil {
		return Response{Text: "Log cleanup is not configured."}, nil
	}
	var (
		removed int
		err     error
	)
	if arg := s.arg(req, 0); arg != "" {
		days, parseErr := strconv.Atoi(arg)
		if parseErr != nil {
			return Response{}, &scout.InvalidParameterError{Field: "days", Reason: "must be an integer number of days"}
		}
		if days < 1 {
			days = 1
		}
		removed, err = s.deps.Sweeper.CleanupOlderThan(time.Duration(days) * 24 * time.Hour)
	} else {
		removed, err = s.deps.Sweeper.CleanupLogs()
	}
	if err != nil {
		return Response{}, fmt.Errorf("clean up logs: %w", err)
	}
	s.routeDebug(ctx, fmt.Sprintf("%s cleaned up %d log file(s)", req.Requester.ID, removed))
	if removed == 0 {
		return Response{Text: "No stale log files to remove."}, nil
	}
	return Response{Text: fmt.Sprintf("Removed %d stale log file(s).", removed)}, nil
}
