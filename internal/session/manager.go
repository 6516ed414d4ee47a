package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/metrics"
	"github.com/goodtune/focusd/internal/storage"
)

// State is the session state machine state.
type State string

const (
	StateIdle  State = "idle"
	StateFocus State = "focus"
	StateBreak State = "break"
)

// Status is a snapshot of the current session.
type Status struct {
	State            State         `json:"state"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	Duration         time.Duration `json:"-"`
	Elapsed          time.Duration `json:"-"`
	Remaining        time.Duration `json:"-"`
	DurationSeconds  int64         `json:"duration_seconds"`
	ElapsedSeconds   int64         `json:"elapsed_seconds"`
	RemainingSeconds int64         `json:"remaining_seconds"`
}

// TransitionHook is called after every state change, outside the
// manager lock. from and to are never equal.
type TransitionHook func(from, to State)

// Manager owns the session state machine. All mutations are serialized
// behind a single mutex, and at most one expiry timer is armed at a
// time: arming a new one stops the previous.
type Manager struct {
	mu       sync.Mutex
	state    State
	started  time.Time
	duration time.Duration
	timer    Timer
	timerGen uint64

	defaultFocus time.Duration
	defaultBreak time.Duration

	clock  Clock
	stats  storage.StatsStore
	hooks  []TransitionHook
	logger zerolog.Logger
}

// NewManager creates a session manager in the idle state.
func NewManager(cfg config.SessionConfig, stats storage.StatsStore, clock Clock, logger zerolog.Logger) *Manager {
	if clock == nil {
		clock = RealClock{}
	}
	return &Manager{
		state:        StateIdle,
		defaultFocus: time.Duration(cfg.DefaultFocusMinutes) * time.Minute,
		defaultBreak: time.Duration(cfg.DefaultBreakMinutes) * time.Minute,
		clock:        clock,
		stats:        stats,
		logger:       logger.With().Str("component", "session").Logger(),
	}
}

// OnTransition registers a hook invoked after every state change.
// Must be called before the manager is in use.
func (m *Manager) OnTransition(hook TransitionHook) {
	m.hooks = append(m.hooks, hook)
}

// StartFocus begins a focus session. A zero duration selects the
// configured default. Starting while a session is active ends the
// current segment first.
func (m *Manager) StartFocus(ctx context.Context, d time.Duration) Status {
	if d <= 0 {
		d = m.defaultFocus
	}
	return m.transition(ctx, StateFocus, d, false)
}

// StartBreak begins a break. A zero duration selects the configured
// default.
func (m *Manager) StartBreak(ctx context.Context, d time.Duration) Status {
	if d <= 0 {
		d = m.defaultBreak
	}
	return m.transition(ctx, StateBreak, d, false)
}

// End stops the current session and returns to idle. Ending while idle
// is a no-op.
func (m *Manager) End(ctx context.Context) Status {
	return m.transition(ctx, StateIdle, 0, false)
}

// Status returns a snapshot of the current session.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RecordDistractionBlocked bumps today's blocked-distraction count.
func (m *Manager) RecordDistractionBlocked(ctx context.Context) {
	if err := m.stats.IncrementDistractionsBlocked(ctx, m.today()); err != nil {
		m.logger.Error().Err(err).Msg("Failed to record blocked distraction")
	}
}

// Stop cancels any armed expiry timer. The manager must not be used
// afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
}

func (m *Manager) transition(ctx context.Context, to State, d time.Duration, expired bool) Status {
	m.mu.Lock()
	st, from := m.transitionLocked(ctx, to, d, expired)
	hooks := m.hooks
	m.mu.Unlock()

	m.finishTransition(from, to, d, expired, hooks)
	return st
}

// transitionLocked performs the state change. Callers hold m.mu.
func (m *Manager) transitionLocked(ctx context.Context, to State, d time.Duration, expired bool) (Status, State) {
	from := m.state
	if from == StateIdle && to == StateIdle {
		return m.statusLocked(), from
	}

	m.stopTimerLocked()
	m.recordSegmentLocked(ctx, expired)

	m.state = to
	m.started = m.clock.Now()
	m.duration = d

	if to != StateIdle {
		m.armTimerLocked(d)
	} else {
		m.started = time.Time{}
		m.duration = 0
	}
	return m.statusLocked(), from
}

func (m *Manager) finishTransition(from, to State, d time.Duration, expired bool, hooks []TransitionHook) {
	if from == StateIdle && to == StateIdle {
		return
	}
	m.logger.Info().
		Str("from", string(from)).
		Str("to", string(to)).
		Dur("duration", d).
		Bool("expired", expired).
		Msg("Session transition")
	metrics.SessionTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()

	if from != to {
		for _, h := range hooks {
			h(from, to)
		}
	}
}

// recordSegmentLocked flushes the segment that is ending into daily
// stats. A focus session counts as completed only when it ran to
// expiry.
func (m *Manager) recordSegmentLocked(ctx context.Context, expired bool) {
	if m.state == StateIdle {
		return
	}
	elapsed := m.clock.Now().Sub(m.started)
	if elapsed < 0 {
		elapsed = 0
	}
	seconds := int64(elapsed / time.Second)
	date := m.today()

	var err error
	switch m.state {
	case StateFocus:
		if seconds > 0 {
			err = m.stats.AddFocusSeconds(ctx, date, seconds)
		}
		if err == nil && expired {
			err = m.stats.IncrementSessionsCompleted(ctx, date)
		}
	case StateBreak:
		if seconds > 0 {
			err = m.stats.AddBreakSeconds(ctx, date, seconds)
		}
	}
	if err != nil {
		m.logger.Error().Err(err).Str("state", string(m.state)).Msg("Failed to record session stats")
	}
}

// statusLocked builds a snapshot of the current session. Callers hold
// m.mu. Idle status carries no start time and zeroed durations.
func (m *Manager) statusLocked() Status {
	st := Status{State: m.state}
	if m.state == StateIdle {
		return st
	}

	started := m.started
	st.StartedAt = &started
	st.Duration = m.duration
	st.Elapsed = m.clock.Now().Sub(m.started)
	if st.Elapsed < 0 {
		st.Elapsed = 0
	}
	st.Remaining = m.duration - st.Elapsed
	if st.Remaining < 0 {
		st.Remaining = 0
	}

	st.DurationSeconds = int64(st.Duration / time.Second)
	st.ElapsedSeconds = int64(st.Elapsed / time.Second)
	st.RemainingSeconds = int64(st.Remaining / time.Second)
	return st
}

// today formats the clock's current date for daily stats keys.
func (m *Manager) today() string {
	return m.clock.Now().Format("2006-01-02")
}

func (m *Manager) armTimerLocked(d time.Duration) {
	m.timerGen++
	gen := m.timerGen
	m.timer = m.clock.AfterFunc(d, func() {
		m.expire(gen)
	})
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// expire handles timer fire. A fire whose generation no longer matches
// lost a race with a newer transition and is ignored.
func (m *Manager) expire(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.mu.Lock()
	if gen != m.timerGen {
		m.mu.Unlock()
		return
	}
	state := m.state

	var from, to State
	var d time.Duration
	switch state {
	case StateFocus:
		// A completed focus session rolls straight into a break.
		d = m.defaultBreak
		_, from = m.transitionLocked(ctx, StateBreak, d, true)
		to = StateBreak
	case StateBreak:
		_, from = m.transitionLocked(ctx, StateIdle, 0, true)
		to = StateIdle
	default:
		m.mu.Unlock()
		return
	}
	hooks := m.hooks
	m.mu.Unlock()

	metrics.SessionExpiriesTotal.WithLabelValues(string(state)).Inc()
	m.logger.Info().Str("state", string(state)).Msg("Session timer expired")
	m.finishTransition(from, to, d, true, hooks)
}
