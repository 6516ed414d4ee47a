package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (s *fakeSpeaker) Say(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return true
}

func (s *fakeSpeaker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}

func TestTrackerInterventionThreshold(t *testing.T) {
	speaker := &fakeSpeaker{}
	tr := New(speaker, zerolog.Nop())

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	if tr.Record("https://example.com/a", "first") {
		t.Fatalf("Single distraction must not intervene")
	}
	if speaker.count() != 0 {
		t.Fatalf("Expected no speech yet")
	}

	now = now.Add(2 * time.Minute)
	if !tr.Record("https://example.com/b", "second") {
		t.Fatalf("Second distraction inside window must intervene")
	}
	if speaker.count() != 1 {
		t.Errorf("Expected one intervention, got %d", speaker.count())
	}
}

func TestTrackerWindowExpiry(t *testing.T) {
	speaker := &fakeSpeaker{}
	tr := New(speaker, zerolog.Nop())

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.Record("https://example.com/a", "first")

	// Second event lands outside the 10 minute window.
	now = now.Add(11 * time.Minute)
	if tr.Record("https://example.com/b", "second") {
		t.Fatalf("Events outside the window must not count together")
	}
	if got := tr.RecentCount(); got != 1 {
		t.Errorf("Expected 1 recent event after pruning, got %d", got)
	}
}
