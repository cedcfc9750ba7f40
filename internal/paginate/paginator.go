// Package paginate splits search results into pages and tracks per-message
// navigation state.
package paginate

import (
	"sync"
	"time"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// DefaultPerPage is used when a caller passes a non-positive page size.
const DefaultPerPage = 10

// Page is one view of a paginated result set.
type Page struct {
	// Index is zero-based; Total is the page count, at least 1.
	Index   int
	Total   int
	Entries []scout.FoundAccount
}

// HasPrev reports whether backward navigation is possible.
func (p Page) HasPrev() bool { return p.Index > 0 }

// HasNext reports whether forward navigation is possible.
func (p Page) HasNext() bool { return p.Index < p.Total-1 }

// Split divides entries into pages of perPage, preserving order. An empty
// result set still yields one empty page so every report has a rendered view.
func Split(entries []scout.FoundAccount, perPage int) [][]scout.FoundAccount {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if len(entries) == 0 {
		return [][]scout.FoundAccount{nil}
	}
	pages := make([][]scout.FoundAccount, 0, (len(entries)+perPage-1)/perPage)
	for start := 0; start < len(entries); start += perPage {
		end := start + perPage
		if end > len(entries) {
			end = len(entries)
		}
		pages = append(pages, entries[start:end])
	}
	return pages
}

type session struct {
	pages    [][]scout.FoundAccount
	current  int
	lastSeen time.Time
}

// Arena tracks one navigation session per delivered message. Sessions expire
// after TTL of inactivity and are swept by the maintenance loop, mirroring
// the chat platform's own control timeout.
type Arena struct {
	clock       scout.Clock
	ttl         time.Duration
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*session
}

// NewArena constructs an Arena. ttl <= 0 defaults to 15 minutes,
// maxSessions <= 0 defaults to 256.
func NewArena(clock scout.Clock, ttl time.Duration, maxSessions int) *Arena {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if maxSessions <= 0 {
		maxSessions = 256
	}
	return &Arena{
		clock:       clock,
		ttl:         ttl,
		maxSessions: maxSessions,
		sessions:    make(map[string]*session),
	}
}

// Register creates a session for messageID and returns its first page.
// Re-registering an ID replaces the previous session. When the arena is
// full, the stalest session is evicted to make room.
func (a *Arena) Register(messageID string, entries []scout.FoundAccount, perPage int) Page {
	pages := Split(entries, perPage)
	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.sessions[messageID]; !exists && len(a.sessions) >= a.maxSessions {
		a.evictStalestLocked()
	}
	s := &session{pages: pages, lastSeen: now}
	a.sessions[messageID] = s
	return a.pageLocked(s)
}

// Current returns the session's current page without moving it.
func (a *Arena) Current(messageID string) (Page, bool) {
	return a.move(messageID, func(s *session) int { return s.current })
}

// Next advances one page, clamping at the last page.
func (a *Arena) Next(messageID string) (Page, bool) {
	return a.move(messageID, func(s *session) int { return s.current + 1 })
}

// Prev moves back one page, clamping at the first page.
func (a *Arena) Prev(messageID string) (Page, bool) {
	return a.move(messageID, func(s *session) int { return s.current - 1 })
}

// First jumps to the first page.
func (a *Arena) First(messageID string) (Page, bool) {
	return a.move(messageID, func(*session) int { return 0 })
}

// Last jumps to the last page.
func (a *Arena) Last(messageID string) (Page, bool) {
	return a.move(messageID, func(s *session) int { return len(s.pages) - 1 })
}

// Jump moves to an absolute page index. An out-of-range target leaves the
// session where it is; only the relative moves clamp at the bounds.
func (a *Arena) Jump(messageID string, index int) (Page, bool) {
	return a.move(messageID, func(s *session) int {
		if index < 0 || index > len(s.pages)-1 {
			return s.current
		}
		return index
	})
}

// Evict drops sessions idle longer than the TTL and returns how many were
// removed.
func (a *Arena) Evict() int {
	cutoff := a.clock.Now().Add(-a.ttl)

	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for id, s := range a.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(a.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func (a *Arena) move(messageID string, target func(*session) int) (Page, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[messageID]
	if !ok {
		return Page{}, false
	}
	idx := target(s)
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.pages)-1 {
		idx = len(s.pages) - 1
	}
	s.current = idx
	s.lastSeen = a.clock.Now()
	return a.pageLocked(s), true
}

func (a *Arena) pageLocked(s *session) Page {
	return Page{
		Index:   s.current,
		Total:   len(s.pages),
		Entries: s.pages[s.current],
	}
}

func (a *Arena) evictStalestLocked() {
	var (
		stalest   string
		stalestAt time.Time
		found     bool
	)
	for id, s := range a.sessions {
		if !found || s.lastSeen.Before(stalestAt) {
			stalest, stalestAt, found = id, s.lastSeen, true
		}
	}
	if found {
		delete(a.sessions, stalest)
	}
}
