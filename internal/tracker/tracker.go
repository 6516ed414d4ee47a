// Package tracker watches the stream of distraction verdicts and
// triggers an intervention when they cluster.
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/metrics"
)

const (
	// DetectionWindow is how far back events count toward the
	// intervention threshold.
	DetectionWindow = 10 * time.Minute

	// InterventionThreshold is the number of distractions inside the
	// window that triggers an intervention.
	InterventionThreshold = 2
)

// Speaker delivers the intervention message.
type Speaker interface {
	Say(text string) bool
}

type event struct {
	url string
	at  time.Time
}

// Tracker keeps a sliding window of distraction events. Each recorded
// event that pushes the window count to the threshold triggers a
// spoken intervention.
type Tracker struct {
	mu      sync.Mutex
	events  []event
	speaker Speaker
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a tracker.
func New(speaker Speaker, logger zerolog.Logger) *Tracker {
	return &Tracker{
		speaker: speaker,
		now:     time.Now,
		logger:  logger.With().Str("component", "tracker").Logger(),
	}
}

// Record logs one distraction event and returns true if it triggered
// an intervention.
func (t *Tracker) Record(url, title string) bool {
	t.mu.Lock()
	now := t.now()
	t.prune(now)
	t.events = append(t.events, event{url: url, at: now})
	count := len(t.events)
	t.mu.Unlock()

	t.logger.Info().Str("url", url).Str("title", title).Int("recent", count).Msg("Distraction recorded")

	if count < InterventionThreshold {
		return false
	}

	metrics.InterventionsTotal.WithLabelValues("spoken").Inc()
	t.logger.Warn().Int("recent", count).Msg("Distraction cluster detected, intervening")
	t.speaker.Say(interventionMessage(count))
	return true
}

// RecentCount returns the number of events inside the window.
func (t *Tracker) RecentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(t.now())
	return len(t.events)
}

// prune drops events older than the window. Callers hold t.mu.
func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-DetectionWindow)
	kept := t.events[:0]
	for _, e := range t.events {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	t.events = kept
}

func interventionMessage(count int) string {
	return fmt.Sprintf(
		"I noticed %d distractions in the last few minutes. Let's take a breath and get back to what matters.",
		count)
}
