// Package watch tracks browser tabs and decides when the page a user
// is dwelling on should be analyzed for distraction.
package watch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/analysis"
	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/metrics"
	"github.com/goodtune/focusd/internal/session"
)

// EventKind is the type of tab event.
type EventKind string

const (
	EventActivated EventKind = "activated"
	EventUpdated   EventKind = "updated"
	EventRemoved   EventKind = "removed"
)

// Event is one browser tab lifecycle notification.
type Event struct {
	Kind  EventKind `json:"kind"`
	TabID string    `json:"tab_id"`
	URL   string    `json:"url,omitempty"`
	Title string    `json:"title,omitempty"`
}

// Analyzer produces a verdict for a page. Satisfied by the analysis
// pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, tabID string, page analysis.Page) analysis.Verdict
}

// Actuator mutates a browser tab.
type Actuator interface {
	Redirect(ctx context.Context, tabID, targetURL string) error
	Remove(ctx context.Context, tabID string) error
}

type tabState struct {
	gen      uint64
	url      string
	title    string
	lastGood string
	timer    session.Timer
}

// Watcher holds per-tab dwell timers. Every navigation bumps the
// tab's generation and cancels the pending timer; a timer that fires
// with a stale generation is discarded. When a dwell timer survives,
// the page goes through the analysis pipeline and the verdict is
// applied to the tab.
type Watcher struct {
	mu   sync.Mutex
	tabs map[string]*tabState

	dwell         time.Duration
	blockPatterns []string
	safeURL       string

	analyzer Analyzer
	actuator Actuator
	clock    session.Clock
	logger   zerolog.Logger
}

// NewWatcher creates a tab watcher.
func NewWatcher(cfg config.WatcherConfig, analyzer Analyzer, actuator Actuator, clock session.Clock, logger zerolog.Logger) *Watcher {
	if clock == nil {
		clock = session.RealClock{}
	}
	safeURL := cfg.SafeURL
	if safeURL == "" {
		safeURL = "about:blank"
	}
	return &Watcher{
		tabs:          make(map[string]*tabState),
		dwell:         config.Duration(cfg.DwellTime, time.Minute),
		blockPatterns: cfg.BlockPatterns,
		safeURL:       safeURL,
		analyzer:      analyzer,
		actuator:      actuator,
		clock:         clock,
		logger:        logger.With().Str("component", "watch").Logger(),
	}
}

// Handle processes one tab event.
func (w *Watcher) Handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventRemoved:
		w.remove(ev.TabID)
	case EventActivated, EventUpdated:
		w.navigated(ctx, ev.TabID, ev.URL, ev.Title)
	default:
		w.logger.Warn().Str("kind", string(ev.Kind)).Msg("Unknown tab event kind")
	}
}

// AnalyzeNow runs an immediate analysis, bypassing the dwell timer.
// For a tracked tab, any pending timer is invalidated first and the
// verdict is applied. Untracked keys (requests not tied to a tab event
// stream) are analyzed without creating watcher state, so they cannot
// accumulate in the tab map.
func (w *Watcher) AnalyzeNow(ctx context.Context, tabID string, page analysis.Page) analysis.Verdict {
	w.mu.Lock()
	t, tracked := w.tabs[tabID]
	var gen uint64
	if tracked {
		t.gen++
		gen = t.gen
		w.stopTimerLocked(t)
		t.url = page.URL
		t.title = page.Title
	}
	w.mu.Unlock()

	verdict := w.analyzer.Analyze(ctx, tabID, page)
	if tracked {
		w.apply(ctx, tabID, gen, verdict)
	}
	return verdict
}

func (w *Watcher) remove(tabID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tabs[tabID]
	if !ok {
		return
	}
	t.gen++
	w.stopTimerLocked(t)
	delete(w.tabs, tabID)
	metrics.TabsWatched.Set(float64(len(w.tabs)))
	w.logger.Debug().Str("tab", tabID).Msg("Tab removed")
}

func (w *Watcher) navigated(ctx context.Context, tabID, url, title string) {
	w.mu.Lock()
	t := w.ensureLocked(tabID)
	t.gen++
	gen := t.gen
	w.stopTimerLocked(t)
	t.url = url
	t.title = title

	if !watchable(url) {
		w.mu.Unlock()
		w.logger.Debug().Str("tab", tabID).Str("url", url).Msg("Ignoring internal URL")
		return
	}

	if w.matchesBlockPattern(url) {
		delete(w.tabs, tabID)
		metrics.TabsWatched.Set(float64(len(w.tabs)))
		w.mu.Unlock()
		w.logger.Info().Str("tab", tabID).Str("url", url).Msg("Blocked URL pattern, removing tab")
		if err := w.actuator.Remove(ctx, tabID); err != nil {
			w.logger.Error().Err(err).Str("tab", tabID).Msg("Tab removal failed")
			return
		}
		metrics.TabRemovalsTotal.Inc()
		return
	}

	t.timer = w.clock.AfterFunc(w.dwell, func() {
		w.dwellElapsed(tabID, gen)
	})
	w.mu.Unlock()

	w.logger.Debug().Str("tab", tabID).Str("url", url).Dur("dwell", w.dwell).Msg("Tab dwell timer armed")
}

// dwellElapsed runs when a tab has shown the same page for the full
// dwell time.
func (w *Watcher) dwellElapsed(tabID string, gen uint64) {
	w.mu.Lock()
	t, ok := w.tabs[tabID]
	if !ok || t.gen != gen {
		w.mu.Unlock()
		metrics.StaleTimerFiresTotal.Inc()
		w.logger.Debug().Str("tab", tabID).Msg("Discarding stale dwell timer")
		return
	}
	page := analysis.Page{URL: t.url, Title: t.title, Timestamp: w.clock.Now()}
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	verdict := w.analyzer.Analyze(ctx, tabID, page)
	w.apply(ctx, tabID, gen, verdict)
}

// apply records or enforces a verdict, unless the tab navigated away
// while the analysis was in flight.
func (w *Watcher) apply(ctx context.Context, tabID string, gen uint64, verdict analysis.Verdict) {
	w.mu.Lock()
	t, ok := w.tabs[tabID]
	if !ok || t.gen != gen {
		w.mu.Unlock()
		metrics.StaleTimerFiresTotal.Inc()
		w.logger.Debug().Str("tab", tabID).Msg("Discarding stale verdict")
		return
	}

	if verdict.Decision != analysis.DecisionRedirect {
		t.lastGood = verdict.URL
		w.mu.Unlock()
		return
	}

	target := w.redirectTargetLocked(t)
	w.mu.Unlock()
	w.redirect(ctx, tabID, target, "verdict")
}

func (w *Watcher) redirect(ctx context.Context, tabID, target, reason string) {
	if err := w.actuator.Redirect(ctx, tabID, target); err != nil {
		w.logger.Error().Err(err).Str("tab", tabID).Str("target", target).Msg("Tab redirect failed")
		return
	}
	metrics.TabRedirectsTotal.WithLabelValues(reason).Inc()
	w.logger.Info().Str("tab", tabID).Str("target", target).Str("reason", reason).Msg("Tab redirected")
}

// LastGood returns the most recent allowed URL for a tab.
func (w *Watcher) LastGood(tabID string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.tabs[tabID]; ok {
		return t.lastGood
	}
	return ""
}

// Stop cancels all pending dwell timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.tabs {
		t.gen++
		w.stopTimerLocked(t)
	}
}

func (w *Watcher) ensureLocked(tabID string) *tabState {
	t, ok := w.tabs[tabID]
	if !ok {
		t = &tabState{}
		w.tabs[tabID] = t
		metrics.TabsWatched.Set(float64(len(w.tabs)))
	}
	return t
}

func (w *Watcher) stopTimerLocked(t *tabState) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// redirectTargetLocked picks the last known good URL for the tab,
// falling back to the configured safe URL.
func (w *Watcher) redirectTargetLocked(t *tabState) string {
	if t.lastGood != "" {
		return t.lastGood
	}
	return w.safeURL
}

func (w *Watcher) matchesBlockPattern(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range w.blockPatterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// watchable reports whether a URL belongs to a normal web page rather
// than a browser-internal surface.
func watchable(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
