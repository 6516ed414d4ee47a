package session

import "time"

// Clock provides time and timer scheduling for the session manager.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f on a real timer.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// TestClock provides fixed time for testing. Scheduled callbacks are
// collected instead of fired; tests trigger them with FireTimers.
type TestClock struct {
	CurrentTime time.Time

	pending []*testTimer
}

// Now returns the test time.
func (t *TestClock) Now() time.Time {
	return t.CurrentTime
}

// AfterFunc records the callback without scheduling anything.
func (t *TestClock) AfterFunc(d time.Duration, f func()) Timer {
	tt := &testTimer{f: f, deadline: t.CurrentTime.Add(d)}
	t.pending = append(t.pending, tt)
	return tt
}

// Advance moves the clock forward and fires every pending timer whose
// deadline has passed and that has not been stopped.
func (t *TestClock) Advance(d time.Duration) {
	t.CurrentTime = t.CurrentTime.Add(d)
	due := t.pending
	t.pending = nil
	for _, tt := range due {
		if !tt.stopped && !tt.deadline.After(t.CurrentTime) {
			// May re-enter AfterFunc and arm new timers; those are
			// picked up on the next Advance.
			tt.f()
			continue
		}
		t.pending = append(t.pending, tt)
	}
}

type testTimer struct {
	f        func()
	deadline time.Time
	stopped  bool
}

func (t *testTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}
