package scout

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// usernamePattern matches the identifiers the scan engine accepts.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-_\.]{3,64}$`)

// NormalizeUsername strips a leading @ and surrounding whitespace.
func NormalizeUsername(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
}

// Validate checks the parameters against the configured limits. It is called
// before any queue state is touched; a failure never creates a job.
func (p Parameters) Validate(limits Limits) error {
	lim := limits.withDefaults()
	if !usernamePattern.MatchString(p.Username) {
		return &InvalidParameterError{
			Field:  "username",
			Reason: "must be 3-64 characters of letters, digits, hyphen, underscore or period",
		}
	}
	if p.TopSites < 1 || p.TopSites > lim.TopSites {
		return &InvalidParameterError{
			Field:  "top_sites",
			Reason: fmt.Sprintf("must be between 1 and %d", lim.TopSites),
		}
	}
	if p.SiteTimeout < time.Second || p.SiteTimeout > lim.SiteTimeout {
		return &InvalidParameterError{
			Field:  "timeout",
			Reason: fmt.Sprintf("must be between 1s and %s", lim.SiteTimeout),
		}
	}
	if p.MaxConnections < 1 || p.MaxConnections > lim.MaxConnections {
		return &InvalidParameterError{
			Field:  "max_connections",
			Reason: fmt.Sprintf("must be between 1 and %d", lim.MaxConnections),
		}
	}
	if p.Retries < 0 || p.Retries > lim.Retries {
		return &InvalidParameterError{
			Field:  "retries",
			Reason: fmt.Sprintf("must be between 0 and %d", lim.Retries),
		}
	}
	return nil
}

// Clamp bounds v to [min, max]. Used by setdefault, which forgives
// out-of-range values instead of rejecting them.
func Clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
