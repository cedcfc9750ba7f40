package commands

import (
	"context"
	"fmt"
	"strings"
)

var helpTopics = []struct {
	name  string
	usage string
	desc  string
}{
	{"help", "help", "show this overview"},
	{"about", "about", "show version and build information"},
	{"status", "status", "show whether a search is running and its progress"},
	{"quicksearch", "quicksearch <username>", "search with the current defaults"},
	{"search", "search <username> [top_sites=N] [timeout=S] [max_connections=N] [retries=N] [parsing=BOOL] [similar=BOOL] [tags=a,b] [sites=a,b]", "search with per-run overrides"},
	{"cancel", "cancel", "cancel the running search (initiator or owner)"},
	{"whitelist", "whitelist add|remove|view [user]", "manage who may run searches"},
	{"settings", "settings", "show effective defaults and channel assignments"},
	{"setdefault", "setdefault <key> [value]", "override a search default; empty value clears it"},
	{"debuglog", "debuglog|userlog|outputlog [channel]", "assign or clear a log destination"},
	{"reload", "reload", "refresh the engine's site data"},
	{"togglefilelogs", "togglefilelogs", "flip file logging on or off"},
	{"cleanuplogs", "cleanuplogs [days]", "delete stale log files now"},
}

// handleHelp lists the commands available to the caller; higher tiers see a
// longer list.
func (s *Service) handleHelp(ctx context.Context, req Request) (Response, error) {
	tier, err := s.deps.Gate.Resolve(ctx, req.Requester.ID)
	if err != nil {
		return Response{}, fmt.Errorf("resolve caller tier: %w", err)
	}
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, t := range helpTopics {
		h, ok := s.handlers[t.name]
		if !ok || tier < h.tier {
			continue
		}
		fmt.Fprintf(&b, "  %s - %s\n", t.usage, t.desc)
	}
	return Response{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func (s *Service) handleAbout(_ context.Context, _ Request) (Response, error) {
	version := s.deps.Version
	if version == "" {
		version = "dev"
	}
	return Response{
		Text: fmt.Sprintf("scoutbot %s - username reconnaissance over your chat platform.\n"+
			"One search runs at a time; results arrive as paginated reports with text and HTML artifacts.",
			version),
	}, nil
}
