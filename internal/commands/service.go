// Package commands implements the bot's command surface on top of the
// scheduler, permission gate, stores and log router.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/logrouter"
	"github.com/mbazhenov/scoutbot/internal/maintenance"
	"github.com/mbazhenov/scoutbot/internal/paginate"
	"github.com/mbazhenov/scoutbot/internal/permission"
	"github.com/mbazhenov/scoutbot/internal/report"
	"github.com/mbazhenov/scoutbot/internal/scheduler"
	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Request is one invoked command.
type Request struct {
	// Command is the lower-case command name, e.g. "search" or "whitelist".
	Command string
	// Args are the positional arguments, e.g. the subcommand and username.
	Args []string
	// Options are the named arguments, e.g. {"top_sites": "750"}.
	Options map[string]string
	// Requester identifies the caller.
	Requester scout.Requester
}

// Response is the immediate reply to a command. Long-running searches reply
// right away; the result arrives later through the log router.
type Response struct {
	Text string
	// JobID is set for search submissions.
	JobID string
	// Page and MessageID are set when the response is paginated.
	Page      *paginate.Page
	MessageID string
	// AttachmentURIs reference stored report artifacts.
	AttachmentURIs []string
}

// Deps bundles the collaborators the Service needs.
type Deps struct {
	Gate    *permission.Gate
	Queue   *scheduler.Queue
	Store   scout.RecordStore
	Router  *logrouter.Router
	Writer  *report.Writer
	Blobs   scout.BlobStore
	Arena   *paginate.Arena
	Scanner scout.Scanner
	Sweeper *maintenance.Sweeper
	Clock   scout.Clock
	IDGen   scout.IDGenerator
	Logger  *zap.Logger

	// Defaults are the configured search parameters before store overrides.
	Defaults scout.Parameters
	// Limits bounds user-supplied parameters.
	Limits scout.Limits
	// PerPage is the paginator page size.
	PerPage int
	// DeliveryTimeout bounds post-search report rendering and routing.
	DeliveryTimeout time.Duration
	// Version is reported by the about command.
	Version string
}

// Service dispatches command requests.
type Service struct {
	deps     Deps
	logger   *zap.Logger
	handlers map[string]handler
}

type handler struct {
	tier permission.Tier
	run  func(ctx context.Context, req Request) (Response, error)
}

// New constructs the Service.
func New(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.PerPage <= 0 {
		deps.PerPage = paginate.DefaultPerPage
	}
	if deps.DeliveryTimeout <= 0 {
		deps.DeliveryTimeout = 30 * time.Second
	}
	s := &Service{deps: deps, logger: deps.Logger}
	s.handlers = map[string]handler{
		"help":   {permission.TierMember, s.handleHelp},
		"about":  {permission.TierMember, s.handleAbout},
		"status": {permission.TierMember, s.handleStatus},

		"quicksearch": {permission.TierWhitelisted, s.handleQuickSearch},
		"search":      {permission.TierWhitelisted, s.handleSearch},
		"cancel":      {permission.TierWhitelisted, s.handleCancel},

		"whitelist":      {permission.TierOwner, s.handleWhitelist},
		"settings":       {permission.TierOwner, s.handleSettings},
		"setdefault":     {permission.TierOwner, s.handleSetDefault},
		"debuglog":       {permission.TierOwner, s.handleLogChannel(scout.LogKindDebug)},
		"userlog":        {permission.TierOwner, s.handleLogChannel(scout.LogKindUser)},
		"outputlog":      {permission.TierOwner, s.handleLogChannel(scout.LogKindOutput)},
		"reload":         {permission.TierOwner, s.handleReload},
		"togglefilelogs": {permission.TierOwner, s.handleToggleFileLogs},
		"cleanuplogs":    {permission.TierOwner, s.handleCleanupLogs},
	}
	return s
}

// Handle authorizes and dispatches one request.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	name := strings.ToLower(strings.TrimSpace(req.Command))
	h, ok := s.handlers[name]
	if !ok {
		return Response{}, &scout.InvalidParameterError{
			Field:  "command",
			Reason: fmt.Sprintf("unknown command %q", name),
		}
	}
	if err := s.deps.Gate.Authorize(ctx, req.Requester.ID, h.tier); err != nil {
		if errors.Is(err, scout.ErrPermissionDenied) {
			s.routeKind(ctx, scout.LogKindUser,
				fmt.Sprintf("%s was denied %q (requires %s)", req.Requester.ID, name, h.tier), nil)
		}
		return Response{}, err
	}
	return h.run(ctx, req)
}

// Commands lists the registered command names, sorted. Used by help and by
// the API surface.
func (s *Service) Commands() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) arg(req Request, i int) string {
	if i >= len(req.Args) {
		return ""
	}
	return strings.TrimSpace(req.Args[i])
}

func (s *Service) option(req Request, key string) (string, bool) {
	v, ok := req.Options[key]
	return strings.TrimSpace(v), ok
}

// routeDebug sends detail to the debug channel; a missing destination is
// fine, anything else is logged but never surfaced to the user.
func (s *Service) routeDebug(ctx context.Context, text string) {
	s.routeKind(ctx, scout.LogKindDebug, text, nil)
}

func (s *Service) routeKind(ctx context.Context, kind scout.LogKind, text string, attachments []string) {
	err := s.deps.Router.Route(ctx, logrouter.Message{
		Kind:           kind,
		Text:           text,
		AttachmentURIs: attachments,
	})
	if err != nil && !isNoDestination(err) {
		s.logger.Warn("log routing failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
