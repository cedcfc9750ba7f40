package paginate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func accounts(n int) []scout.FoundAccount {
	out := make([]scout.FoundAccount, n)
	for i := range out {
		out[i] = scout.FoundAccount{
			Site: fmt.Sprintf("site-%02d", i),
			URL:  fmt.Sprintf("https://site-%02d.example/user", i),
		}
	}
	return out
}

func TestSplit(t *testing.T) {
	t.Parallel()

	pages := Split(accounts(25), 10)
	require.Len(t, pages, 3)
	require.Len(t, pages[0], 10)
	require.Len(t, pages[1], 10)
	require.Len(t, pages[2], 5)
	require.Equal(t, "site-00", pages[0][0].Site)
	require.Equal(t, "site-24", pages[2][4].Site)

	// Empty input still yields one (empty) page.
	pages = Split(nil, 10)
	require.Len(t, pages, 1)
	require.Empty(t, pages[0])
}

func TestNavigationClampsAtBounds(t *testing.T) {
	t.Parallel()

	arena := NewArena(newFakeClock(), 0, 0)
	first := arena.Register("msg-1", accounts(25), 10)
	require.Equal(t, 0, first.Index)
	require.Equal(t, 3, first.Total)
	require.False(t, first.HasPrev())
	require.True(t, first.HasNext())

	// Prev at the first page stays put.
	page, ok := arena.Prev("msg-1")
	require.True(t, ok)
	require.Equal(t, 0, page.Index)

	page, ok = arena.Next("msg-1")
	require.True(t, ok)
	require.Equal(t, 1, page.Index)

	page, ok = arena.Last("msg-1")
	require.True(t, ok)
	require.Equal(t, 2, page.Index)
	require.False(t, page.HasNext())

	// Next at the last page stays put.
	page, ok = arena.Next("msg-1")
	require.True(t, ok)
	require.Equal(t, 2, page.Index)

	page, ok = arena.First("msg-1")
	require.True(t, ok)
	require.Equal(t, 0, page.Index)
}

func TestJumpIgnoresOutOfRangeTargets(t *testing.T) {
	t.Parallel()

	arena := NewArena(newFakeClock(), 0, 0)
	arena.Register("msg-1", accounts(25), 10)

	// Out-of-range targets leave the session where it is.
	page, ok := arena.Jump("msg-1", 99)
	require.True(t, ok)
	require.Equal(t, 0, page.Index)

	page, ok = arena.Jump("msg-1", -5)
	require.True(t, ok)
	require.Equal(t, 0, page.Index)

	page, ok = arena.Jump("msg-1", 1)
	require.True(t, ok)
	require.Equal(t, 1, page.Index)
	require.Equal(t, "site-10", page.Entries[0].Site)

	// Still a no-op from a non-zero position.
	page, ok = arena.Jump("msg-1", 3)
	require.True(t, ok)
	require.Equal(t, 1, page.Index)
}

func TestUnknownMessageReportsMiss(t *testing.T) {
	t.Parallel()

	arena := NewArena(newFakeClock(), 0, 0)
	_, ok := arena.Next("missing")
	require.False(t, ok)
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	arena := NewArena(newFakeClock(), 0, 0)
	arena.Register("msg-1", accounts(25), 10)
	arena.Register("msg-2", accounts(25), 10)

	_, ok := arena.Next("msg-1")
	require.True(t, ok)

	page, ok := arena.Current("msg-2")
	require.True(t, ok)
	require.Equal(t, 0, page.Index, "navigating one message must not move another")
}

func TestEvictDropsIdleSessions(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	arena := NewArena(clock, 10*time.Minute, 0)
	arena.Register("old", accounts(5), 10)

	clock.Advance(5 * time.Minute)
	arena.Register("fresh", accounts(5), 10)

	clock.Advance(6 * time.Minute)
	removed := arena.Evict()
	require.Equal(t, 1, removed)
	require.Equal(t, 1, arena.Len())

	_, ok := arena.Current("old")
	require.False(t, ok)
	_, ok = arena.Current("fresh")
	require.True(t, ok)
}

func TestNavigationRefreshesTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	arena := NewArena(clock, 10*time.Minute, 0)
	arena.Register("msg-1", accounts(25), 10)

	clock.Advance(8 * time.Minute)
	_, ok := arena.Next("msg-1")
	require.True(t, ok)

	clock.Advance(8 * time.Minute)
	require.Zero(t, arena.Evict(), "recent navigation keeps the session alive")
}

func TestArenaCapacityEvictsStalest(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	arena := NewArena(clock, time.Hour, 2)

	arena.Register("a", accounts(5), 10)
	clock.Advance(time.Minute)
	arena.Register("b", accounts(5), 10)
	clock.Advance(time.Minute)
	arena.Register("c", accounts(5), 10)

	require.Equal(t, 2, arena.Len())
	_, ok := arena.Current("a")
	require.False(t, ok, "the stalest session makes room")
	_, ok = arena.Current("c")
	require.True(t, ok)
}
