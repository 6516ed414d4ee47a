package session

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/storage"
)

var _ storage.StatsStore = (*fakeStats)(nil)

// fakeStats records stat mutations in memory.
type fakeStats struct {
	focusSeconds        map[string]int64
	breakSeconds        map[string]int64
	sessionsCompleted   map[string]int64
	distractionsBlocked map[string]int64
}

func newFakeStats() *fakeStats {
	return &fakeStats{
		focusSeconds:        make(map[string]int64),
		breakSeconds:        make(map[string]int64),
		sessionsCompleted:   make(map[string]int64),
		distractionsBlocked: make(map[string]int64),
	}
}

func (f *fakeStats) GetDailyStats(ctx context.Context, date string) (*storage.DailyStats, error) {
	return &storage.DailyStats{
		Date:                date,
		FocusSeconds:        f.focusSeconds[date],
		BreakSeconds:        f.breakSeconds[date],
		SessionsCompleted:   f.sessionsCompleted[date],
		DistractionsBlocked: f.distractionsBlocked[date],
	}, nil
}

func (f *fakeStats) AddFocusSeconds(ctx context.Context, date string, seconds int64) error {
	f.focusSeconds[date] += seconds
	return nil
}

func (f *fakeStats) AddBreakSeconds(ctx context.Context, date string, seconds int64) error {
	f.breakSeconds[date] += seconds
	return nil
}

func (f *fakeStats) IncrementSessionsCompleted(ctx context.Context, date string) error {
	f.sessionsCompleted[date]++
	return nil
}

func (f *fakeStats) IncrementDistractionsBlocked(ctx context.Context, date string) error {
	f.distractionsBlocked[date]++
	return nil
}

func (f *fakeStats) DeleteStatsBefore(ctx context.Context, date string) (int, error) {
	return 0, nil
}

func setupManager(t *testing.T) (*Manager, *TestClock, *fakeStats) {
	t.Helper()
	clock := &TestClock{CurrentTime: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	stats := newFakeStats()
	cfg := config.SessionConfig{DefaultFocusMinutes: 25, DefaultBreakMinutes: 5}
	m := NewManager(cfg, stats, clock, zerolog.Nop())
	t.Cleanup(m.Stop)
	return m, clock, stats
}

func TestManagerStartFocusDefaults(t *testing.T) {
	m, _, _ := setupManager(t)

	st := m.StartFocus(context.Background(), 0)
	if st.State != StateFocus {
		t.Fatalf("Expected focus state, got %s", st.State)
	}
	if st.DurationSeconds != 25*60 {
		t.Errorf("Expected default 25 minute duration, got %d seconds", st.DurationSeconds)
	}
	if st.RemainingSeconds != 25*60 {
		t.Errorf("Expected full duration remaining, got %d seconds", st.RemainingSeconds)
	}
}

func TestManagerFocusExpiryStartsBreak(t *testing.T) {
	m, clock, stats := setupManager(t)

	m.StartFocus(context.Background(), 0)
	clock.Advance(25 * time.Minute)

	if got := m.State(); got != StateBreak {
		t.Fatalf("Expected break after focus expiry, got %s", got)
	}
	if got := stats.focusSeconds["2026-03-10"]; got != 25*60 {
		t.Errorf("Expected 1500 focus seconds recorded, got %d", got)
	}
	if got := stats.sessionsCompleted["2026-03-10"]; got != 1 {
		t.Errorf("Expected 1 completed session, got %d", got)
	}

	// The auto-started break runs for the default break length.
	st := m.Status()
	if st.DurationSeconds != 5*60 {
		t.Errorf("Expected 5 minute break, got %d seconds", st.DurationSeconds)
	}
}

func TestManagerBreakExpiryReturnsIdle(t *testing.T) {
	m, clock, stats := setupManager(t)

	m.StartBreak(context.Background(), 0)
	clock.Advance(5 * time.Minute)

	if got := m.State(); got != StateIdle {
		t.Fatalf("Expected idle after break expiry, got %s", got)
	}
	if got := stats.breakSeconds["2026-03-10"]; got != 5*60 {
		t.Errorf("Expected 300 break seconds recorded, got %d", got)
	}
}

func TestManagerRestartRearmsTimer(t *testing.T) {
	m, clock, stats := setupManager(t)

	m.StartFocus(context.Background(), 0)
	clock.Advance(10 * time.Minute)
	m.StartFocus(context.Background(), 0)

	// The original timer would have fired 15 minutes from here. Only
	// the re-armed one may expire the session.
	clock.Advance(20 * time.Minute)
	if got := m.State(); got != StateFocus {
		t.Fatalf("Expected focus (old timer must not fire), got %s", got)
	}

	clock.Advance(5 * time.Minute)
	if got := m.State(); got != StateBreak {
		t.Fatalf("Expected break after re-armed timer expiry, got %s", got)
	}

	// Both focus segments were recorded, one completion.
	if got := stats.focusSeconds["2026-03-10"]; got != 35*60 {
		t.Errorf("Expected 2100 focus seconds, got %d", got)
	}
	if got := stats.sessionsCompleted["2026-03-10"]; got != 1 {
		t.Errorf("Expected 1 completed session, got %d", got)
	}
}

func TestManagerEndRecordsElapsed(t *testing.T) {
	m, clock, stats := setupManager(t)

	m.StartFocus(context.Background(), 0)
	clock.Advance(10 * time.Minute)
	st := m.End(context.Background())

	if st.State != StateIdle {
		t.Fatalf("Expected idle after end, got %s", st.State)
	}
	if got := stats.focusSeconds["2026-03-10"]; got != 10*60 {
		t.Errorf("Expected 600 focus seconds, got %d", got)
	}
	if got := stats.sessionsCompleted["2026-03-10"]; got != 0 {
		t.Errorf("Manually ended session must not count as completed, got %d", got)
	}

	// No timer left armed.
	clock.Advance(time.Hour)
	if got := m.State(); got != StateIdle {
		t.Errorf("Expected idle to persist, got %s", got)
	}
}

func TestManagerEndWhileIdleIsNoop(t *testing.T) {
	m, _, stats := setupManager(t)

	st := m.End(context.Background())
	if st.State != StateIdle {
		t.Fatalf("Expected idle, got %s", st.State)
	}
	if len(stats.focusSeconds) != 0 || len(stats.breakSeconds) != 0 {
		t.Errorf("Idle end must not record stats")
	}
}

func TestManagerTransitionHook(t *testing.T) {
	m, clock, _ := setupManager(t)

	type hop struct{ from, to State }
	var seen []hop
	m.OnTransition(func(from, to State) {
		seen = append(seen, hop{from, to})
	})

	m.StartFocus(context.Background(), 0)
	clock.Advance(25 * time.Minute)
	clock.Advance(5 * time.Minute)

	want := []hop{
		{StateIdle, StateFocus},
		{StateFocus, StateBreak},
		{StateBreak, StateIdle},
	}
	if len(seen) != len(want) {
		t.Fatalf("Expected %d transitions, got %d: %v", len(want), len(seen), seen)
	}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("Transition %d: expected %v, got %v", i, w, seen[i])
		}
	}
}

func TestManagerIdleStatusIsZeroed(t *testing.T) {
	m, _, _ := setupManager(t)

	st := m.Status()
	if st.State != StateIdle {
		t.Fatalf("Expected idle, got %s", st.State)
	}
	if st.StartedAt != nil {
		t.Errorf("Idle status must carry no start time, got %v", st.StartedAt)
	}
	if st.DurationSeconds != 0 || st.ElapsedSeconds != 0 || st.RemainingSeconds != 0 {
		t.Errorf("Idle status must be zeroed, got %+v", st)
	}

	body, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(body), "started_at") {
		t.Errorf("Idle status must omit started_at, got %s", body)
	}
}

func TestManagerActiveStatusCarriesStartTime(t *testing.T) {
	m, clock, _ := setupManager(t)

	started := clock.CurrentTime
	m.StartFocus(context.Background(), 10*time.Minute)

	st := m.Status()
	if st.StartedAt == nil || !st.StartedAt.Equal(started) {
		t.Fatalf("Expected start time %v, got %v", started, st.StartedAt)
	}
}

func TestManagerStatsDateFollowsClock(t *testing.T) {
	m, clock, stats := setupManager(t)
	clock.CurrentTime = time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC)

	m.StartFocus(context.Background(), 10*time.Minute)
	clock.Advance(10 * time.Minute)
	m.RecordDistractionBlocked(context.Background())

	if got := stats.focusSeconds["2026-03-11"]; got != 10*60 {
		t.Errorf("Expected focus seconds under the clock's date, got %v", stats.focusSeconds)
	}
	if got := stats.distractionsBlocked["2026-03-11"]; got != 1 {
		t.Errorf("Expected blocked distraction under the clock's date, got %v", stats.distractionsBlocked)
	}
}

func TestManagerStatusCountsDown(t *testing.T) {
	m, clock, _ := setupManager(t)

	m.StartFocus(context.Background(), 10*time.Minute)
	clock.CurrentTime = clock.CurrentTime.Add(4 * time.Minute)

	st := m.Status()
	if st.ElapsedSeconds != 4*60 {
		t.Errorf("Expected 240 elapsed seconds, got %d", st.ElapsedSeconds)
	}
	if st.RemainingSeconds != 6*60 {
		t.Errorf("Expected 360 remaining seconds, got %d", st.RemainingSeconds)
	}
}
