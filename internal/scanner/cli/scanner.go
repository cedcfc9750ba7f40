// Package cli adapts an external recon command into the Scanner interface.
//
// The engine is invoked once per search and streams NDJSON on stdout, one
// object per line:
//
//	{"type":"progress","sites_checked":120}
//	{"type":"found","site":"GitHub","url":"https://github.com/user","tags":["coding"]}
//
// The process exit code is the terminal signal: zero completes the run,
// anything else fails it with the tail of stderr as the debug detail.
package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Config controls how the external engine is invoked.
type Config struct {
	// Binary is the engine executable. Required.
	Binary string
	// ExtraArgs are appended verbatim after the generated flags.
	ExtraArgs []string
	// ReloadArgs, when set, define the invocation used by Reload to refresh
	// the engine's site database.
	ReloadArgs []string
}

// Scanner shells out to the external engine.
type Scanner struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs the CLI-backed Scanner.
func New(cfg Config, logger *zap.Logger) (*Scanner, error) {
	if strings.TrimSpace(cfg.Binary) == "" {
		return nil, fmt.Errorf("scanner binary is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cfg: cfg, logger: logger}, nil
}

type wireLine struct {
	Type         string            `json:"type"`
	SitesChecked int               `json:"sites_checked,omitempty"`
	Site         string            `json:"site,omitempty"`
	URL          string            `json:"url,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Scan launches the engine and converts its NDJSON stream into scan events.
func (s *Scanner) Scan(ctx context.Context, params scout.Parameters) (<-chan scout.ScanEvent, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.args(params)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	s.logger.Debug("engine started",
		zap.String("binary", s.cfg.Binary),
		zap.String("username", params.Username),
	)

	events := make(chan scout.ScanEvent)
	go func() {
		defer close(events)

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		checked := 0
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var wl wireLine
			if err := json.Unmarshal(line, &wl); err != nil {
				s.logger.Debug("skipping malformed engine line", zap.Error(err))
				continue
			}
			evt, ok := s.convert(wl, &checked)
			if !ok {
				continue
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				// The process is being killed; fall through to Wait so the
				// terminal event reflects cancellation.
			}
		}

		waitErr := cmd.Wait()
		// The consumer reads until the channel closes, so this send cannot
		// block indefinitely.
		events <- s.terminalEvent(ctx, waitErr, stderr.Bytes())
	}()
	return events, nil
}

// Reload refreshes the engine's site database. Refused when no reload
// invocation is configured.
func (s *Scanner) Reload(ctx context.Context) error {
	if len(s.cfg.ReloadArgs) == 0 {
		return fmt.Errorf("engine has no reload command configured")
	}
	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.cfg.ReloadArgs...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("reload engine data: %w (%s)", err, tail(out, 512))
	}
	s.logger.Info("engine data reloaded", zap.String("binary", s.cfg.Binary))
	return nil
}

func (s *Scanner) args(params scout.Parameters) []string {
	args := []string{
		params.Username,
		"--json-lines",
		"--top-sites", strconv.Itoa(params.TopSites),
		"--timeout", strconv.Itoa(int(params.SiteTimeout.Seconds())),
		"--max-connections", strconv.Itoa(params.MaxConnections),
		"--retries", strconv.Itoa(params.Retries),
	}
	if !params.ParsingEnabled {
		args = append(args, "--no-extracting")
	}
	if params.IncludeSimilar {
		args = append(args, "--similar")
	}
	for _, tag := range params.Tags {
		args = append(args, "--tags", tag)
	}
	for _, site := range params.Sites {
		args = append(args, "--site", site)
	}
	return append(args, s.cfg.ExtraArgs...)
}

func (s *Scanner) convert(wl wireLine, checked *int) (scout.ScanEvent, bool) {
	switch wl.Type {
	case "progress":
		if wl.SitesChecked > *checked {
			*checked = wl.SitesChecked
		}
		return scout.ScanEvent{SitesChecked: *checked}, true
	case "found":
		if wl.Site == "" || wl.URL == "" {
			return scout.ScanEvent{}, false
		}
		if wl.SitesChecked > *checked {
			*checked = wl.SitesChecked
		}
		return scout.ScanEvent{
			SitesChecked: *checked,
			NewEntries: []scout.FoundAccount{{
				Site:     wl.Site,
				URL:      wl.URL,
				Tags:     wl.Tags,
				Metadata: wl.Metadata,
			}},
		}, true
	default:
		return scout.ScanEvent{}, false
	}
}

func (s *Scanner) terminalEvent(ctx context.Context, waitErr error, stderr []byte) scout.ScanEvent {
	if ctx.Err() != nil {
		return scout.ScanEvent{
			Terminal: true,
			Outcome:  scout.OutcomeCancelled,
			Error:    "scan cancelled",
		}
	}
	if waitErr == nil {
		return scout.ScanEvent{Terminal: true, Outcome: scout.OutcomeCompleted}
	}
	detail := tail(stderr, 512)
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		detail = fmt.Sprintf("engine exited with code %d: %s", exitErr.ExitCode(), detail)
	} else {
		detail = fmt.Sprintf("engine wait: %v: %s", waitErr, detail)
	}
	return scout.ScanEvent{
		Terminal: true,
		Outcome:  scout.OutcomeFailed,
		Error:    strings.TrimSpace(detail),
	}
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
