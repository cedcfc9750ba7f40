package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// handleQuickSearch runs a search with the effective defaults; only the
// username may be supplied.
func (s *Service) handleQuickSearch(ctx context.Context, req Request) (Response, error) {
	username := scout.NormalizeUsername(s.arg(req, 0))
	if username == "" {
		return Response{}, &scout.InvalidParameterError{Field: "username", Reason: "username is required"}
	}
	params, err := s.effectiveDefaults(ctx)
	if err != nil {
		return Response{}, err
	}
	params.Username = username
	return s.submit(ctx, req, params)
}

// handleSearch runs a search with per-invocation overrides on top of the
// effective defaults.
func (s *Service) handleSearch(ctx context.Context, req Request) (Response, error) {
	username := scout.NormalizeUsername(s.arg(req, 0))
	if username == "" {
		return Response{}, &scout.InvalidParameterError{Field: "username", Reason: "username is required"}
	}
	params, err := s.effectiveDefaults(ctx)
	if err != nil {
		return Response{}, err
	}
	params.Username = username
	if err := s.applyOverrides(req, &params); err != nil {
		return Response{}, err
	}
	return s.submit(ctx, req, params)
}

func (s *Service) handleCancel(ctx context.Context, req Request) (Response, error) {
	running, ok := s.deps.Queue.Snapshot()
	if !ok {
		return Response{Text: "No search is currently running."}, nil
	}
	// Only the initiator or an owner may cancel someone's search.
	if running.Requester.ID != req.Requester.ID && !s.deps.Gate.IsOwner(req.Requester.ID) {
		return Response{}, fmt.Errorf("only the initiator or an owner may cancel: %w",
			scout.ErrPermissionDenied)
	}
	snap, ok := s.deps.Queue.Cancel()
	if !ok {
		return Response{Text: "No search is currently running."}, nil
	}
	return Response{
		Text:  fmt.Sprintf("Cancelled search for %q.", snap.Parameters.Username),
		JobID: snap.ID,
	}, nil
}

func (s *Service) handleStatus(ctx context.Context, _ Request) (Response, error) {
	job, running := s.deps.Queue.Snapshot()
	if !running {
		return Response{Text: "Idle. No search is currently running."}, nil
	}
	elapsed := job.Duration(s.deps.Clock.Now()).Round(time.Second)
	return Response{
		Text: fmt.Sprintf("Searching %q for %s (requested by %s): %d sites checked, %d accounts found so far.",
			job.Parameters.Username, elapsed, job.Requester.DisplayName,
			job.SitesChecked, len(job.Found)),
		JobID: job.ID,
	}, nil
}

// submit hands the job to the scheduler and arranges asynchronous delivery
// of the result. The immediate response only acknowledges admission.
func (s *Service) submit(ctx context.Context, req Request, params scout.Parameters) (Response, error) {
	handle, err := s.deps.Queue.Submit(params, req.Requester)
	if err != nil {
		return Response{}, err
	}

	s.routeKind(ctx, scout.LogKindUser,
		fmt.Sprintf("%s started a search for %q.", req.Requester.DisplayName, params.Username), nil)

	go s.deliver(handle.Done)

	return Response{
		Text:  fmt.Sprintf("Search started for %q. Results will be posted when it finishes.", params.Username),
		JobID: handle.ID,
	}, nil
}

// deliver consumes the terminal job, renders and stores the reports, and
// routes the result to the output channel with a fresh paginator session.
func (s *Service) deliver(done <-chan scout.Job) {
	job, ok := <-done
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.DeliveryTimeout)
	defer cancel()

	switch job.Status {
	case scout.JobStatusCancelled:
		s.routeKind(ctx, scout.LogKindUser,
			fmt.Sprintf("Search for %q was cancelled after checking %d sites.",
				job.Parameters.Username, job.SitesChecked), nil)
		return
	case scout.JobStatusFailed:
		// The user sees a generic failure; the detail goes to the debug log.
		s.routeDebug(ctx, fmt.Sprintf("search %s for %q failed: %s",
			job.ID, job.Parameters.Username, job.ErrorText))
		s.routeKind(ctx, scout.LogKindUser,
			fmt.Sprintf("Search for %q failed.", job.Parameters.Username), nil)
		return
	}

	arts, err := s.deps.Writer.Store(ctx, s.deps.Blobs, job)
	if err != nil {
		s.routeDebug(ctx, fmt.Sprintf("archiving report for search %s failed: %v", job.ID, err))
		s.logger.Warn("report archival failed", zap.String("job_id", job.ID), zap.Error(err))
		// Results are still announced; only the artifacts are missing.
	}

	messageID, err := s.deps.IDGen.NewID()
	if err != nil {
		s.logger.Warn("message id generation failed", zap.Error(err))
		messageID = job.ID
	}
	page := s.deps.Arena.Register(messageID, job.Found, s.deps.PerPage)

	text := fmt.Sprintf("Search for %q finished: %d sites checked, %d accounts found (page 1/%d, message %s).",
		job.Parameters.Username, job.SitesChecked, len(job.Found), page.Total, messageID)
	var attachments []string
	for _, uri := range []string{arts.TextURI, arts.HTMLURI} {
		if uri != "" {
			attachments = append(attachments, uri)
		}
	}
	s.routeKind(ctx, scout.LogKindOutput, text, attachments)
}

// effectiveDefaults layers the owner's stored overrides on top of the
// configured defaults. Reads happen at admission time so a setdefault
// applies to the very next search.
func (s *Service) effectiveDefaults(ctx context.Context) (scout.Parameters, error) {
	params := s.deps.Defaults

	settings, err := s.deps.Store.AllSettings(ctx)
	if err != nil {
		return scout.Parameters{}, fmt.Errorf("read stored defaults: %w", err)
	}
	if v, ok := settings[scout.SettingTopSites]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			params.TopSites = n
		}
	}
	if v, ok := settings[scout.SettingSiteTimeout]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			params.SiteTimeout = time.Duration(n) * time.Second
		}
	}
	if v, ok := settings[scout.SettingMaxConnections]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			params.MaxConnections = n
		}
	}
	if v, ok := settings[scout.SettingRetries]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			params.Retries = n
		}
	}
	if v, ok := settings[scout.SettingParsing]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			params.ParsingEnabled = b
		}
	}
	if v, ok := settings[scout.SettingIncludeSimilar]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			params.IncludeSimilar = b
		}
	}
	return params, nil
}

// applyOverrides folds the named options of a search command into params.
// Values are parsed strictly; range checks stay with Parameters.Validate.
func (s *Service) applyOverrides(req Request, params *scout.Parameters) error {
	if v, ok := s.option(req, "top_sites"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &scout.InvalidParameterError{Field: "top_sites", Reason: "must be an integer"}
		}
		params.TopSites = n
	}
	if v, ok := s.option(req, "timeout"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &scout.InvalidParameterError{Field: "timeout", Reason: "must be an integer of seconds"}
		}
		params.SiteTimeout = time.Duration(n) * time.Second
	}
	if v, ok := s.option(req, "max_connections"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &scout.InvalidParameterError{Field: "max_connections", Reason: "must be an integer"}
		}
		params.MaxConnections = n
	}
	if v, ok := s.option(req, "retries"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &scout.InvalidParameterError{Field: "retries", Reason: "must be an integer"}
		}
		params.Retries = n
	}
	if v, ok := s.option(req, "parsing"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &scout.InvalidParameterError{Field: "parsing", Reason: "must be true or false"}
		}
		params.ParsingEnabled = b
	}
	if v, ok := s.option(req, "similar"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &scout.InvalidParameterError{Field: "similar", Reason: "must be true or false"}
		}
		params.IncludeSimilar = b
	}
	if v, ok := s.option(req, "tags"); ok && v != "" {
		params.Tags = splitList(v)
	}
	if v, ok := s.option(req, "sites"); ok && v != "" {
		params.Sites = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isNoDestination(err error) bool {
	return errors.Is(err, scout.ErrNoDestination)
}
