package sensor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
)

// fakeClassifier returns a scripted sequence of gestures.
type fakeClassifier struct {
	gestures []Gesture
	idx      int
}

func (f *fakeClassifier) Classify(ctx context.Context) (Gesture, float64, error) {
	if f.idx >= len(f.gestures) {
		return GestureNone, 0, nil
	}
	g := f.gestures[f.idx]
	f.idx++
	return g, 0.9, nil
}

func TestGestureSensorCooldown(t *testing.T) {
	classifier := &fakeClassifier{gestures: []Gesture{
		GestureOpenPalm, GestureOpenPalm, GestureClosedFist, GestureNone, GestureClosedFist,
	}}
	s := NewGestureSensor(config.GestureConfig{Interval: "250ms", Cooldown: "2s"}, classifier)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	poll := func() []Event {
		t.Helper()
		events, err := s.Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		return events
	}

	// First gesture emits.
	if events := poll(); len(events) != 1 || events[0].Label != string(GestureOpenPalm) {
		t.Fatalf("Expected open_palm event, got %v", events)
	}

	// Within cooldown: suppressed even though a gesture is visible.
	now = now.Add(500 * time.Millisecond)
	if events := poll(); len(events) != 0 {
		t.Fatalf("Expected suppression inside cooldown, got %v", events)
	}

	// After cooldown the next gesture emits.
	now = now.Add(2 * time.Second)
	if events := poll(); len(events) != 1 || events[0].Label != string(GestureClosedFist) {
		t.Fatalf("Expected closed_fist event, got %v", events)
	}

	// No gesture, no event, and no cooldown reset.
	now = now.Add(3 * time.Second)
	if events := poll(); len(events) != 0 {
		t.Fatalf("Expected no event for empty frame, got %v", events)
	}
	if events := poll(); len(events) != 1 {
		t.Fatalf("Expected event after cooldown, got %v", events)
	}
}

// fakeListener returns a scripted sequence of utterances.
type fakeListener struct {
	texts []string
	idx   int
}

func (f *fakeListener) Listen(ctx context.Context) (string, error) {
	if f.idx >= len(f.texts) {
		return "", nil
	}
	text := f.texts[f.idx]
	f.idx++
	return text, nil
}

func TestWakeWordSensorCommandWindow(t *testing.T) {
	listener := &fakeListener{texts: []string{
		"start focus", // no wake phrase yet: ignored
		"Hey Buddy",   // wake
		"please start focus",
		"take a break", // window already consumed: ignored
		"hey buddy",    // wake again
		"",             // silence
		"take a break", // still inside window
	}}
	s := NewWakeWordSensor(config.WakeWordConfig{Phrase: "hey buddy", CommandWindow: "8s"}, listener)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	poll := func() []Event {
		t.Helper()
		events, err := s.Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		return events
	}

	if events := poll(); len(events) != 0 {
		t.Fatalf("Command without wake must be ignored, got %v", events)
	}
	if events := poll(); len(events) != 1 || events[0].Label != LabelWake {
		t.Fatalf("Expected wake event, got %v", events)
	}

	now = now.Add(3 * time.Second)
	if events := poll(); len(events) != 1 || events[0].Label != LabelCommandFocus {
		t.Fatalf("Expected focus command, got %v", events)
	}

	now = now.Add(time.Second)
	if events := poll(); len(events) != 0 {
		t.Fatalf("Second command after one wake must be ignored, got %v", events)
	}

	if events := poll(); len(events) != 1 || events[0].Label != LabelWake {
		t.Fatalf("Expected second wake event, got %v", events)
	}
	now = now.Add(5 * time.Second)
	if events := poll(); len(events) != 0 {
		t.Fatalf("Silence must produce no event, got %v", events)
	}
	now = now.Add(2 * time.Second)
	if events := poll(); len(events) != 1 || events[0].Label != LabelCommandBreak {
		t.Fatalf("Expected break command inside window, got %v", events)
	}
}

func TestWakeWordSensorWindowExpiry(t *testing.T) {
	listener := &fakeListener{texts: []string{"hey buddy", "start focus"}}
	s := NewWakeWordSensor(config.WakeWordConfig{Phrase: "hey buddy", CommandWindow: "8s"}, listener)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if _, err := s.Poll(context.Background()); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}

	// Command arrives after the window closed.
	now = now.Add(9 * time.Second)
	events, err := s.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("Command outside window must be ignored, got %v", events)
	}
}

func TestWakeWordSensorInlineCommand(t *testing.T) {
	listener := &fakeListener{texts: []string{"hey buddy start focus"}}
	s := NewWakeWordSensor(config.WakeWordConfig{Phrase: "hey buddy", CommandWindow: "8s"}, listener)

	events, err := s.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(events) != 1 || events[0].Label != LabelCommandFocus {
		t.Fatalf("Expected inline focus command, got %v", events)
	}
}

// fakeScanner returns a scripted sequence of scan results.
type fakeScanner struct {
	scans [][]string
	idx   int
}

func (f *fakeScanner) Scan(ctx context.Context) ([]string, error) {
	if f.idx >= len(f.scans) {
		return nil, nil
	}
	out := f.scans[f.idx]
	f.idx++
	return out, nil
}

func TestWifiSensorDedup(t *testing.T) {
	scanner := &fakeScanner{scans: [][]string{
		{"HomeNet", "Central Station WiFi"},
		{"HomeNet", "Central Station WiFi"}, // still visible: suppressed
		{"HomeNet"},                         // network gone: suppression resets
		{"HomeNet", "Central Station WiFi"}, // visible again: announce
	}}
	cfg := config.WifiConfig{Interval: "60s", Keywords: []string{"bus", "train", "station", "transit"}}
	s := NewWifiSensor(cfg, scanner)

	poll := func() []Event {
		t.Helper()
		events, err := s.Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		return events
	}

	if events := poll(); len(events) != 1 || events[0].Detail != "Central Station WiFi" {
		t.Fatalf("Expected transit event on first sighting, got %v", events)
	}
	if events := poll(); len(events) != 0 {
		t.Fatalf("Expected suppression while still visible, got %v", events)
	}
	if events := poll(); len(events) != 0 {
		t.Fatalf("Expected no event when network absent, got %v", events)
	}
	if events := poll(); len(events) != 1 {
		t.Fatalf("Expected re-announcement after reappearing, got %v", events)
	}
}

func TestWifiSensorKeywordMatchIsCaseInsensitive(t *testing.T) {
	scanner := &fakeScanner{scans: [][]string{{"EXPRESS-TRAIN-WIFI", "HomeNet"}}}
	s := NewWifiSensor(config.WifiConfig{Keywords: []string{"train"}}, scanner)

	events, err := s.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(events) != 1 || events[0].Detail != "EXPRESS-TRAIN-WIFI" {
		t.Fatalf("Expected case-insensitive match, got %v", events)
	}
}

// flakySource fails a fixed number of polls before succeeding.
type flakySource struct {
	mu       sync.Mutex
	failures int
	polls    int
	emitted  bool
}

func (f *flakySource) Name() string            { return "flaky" }
func (f *flakySource) Interval() time.Duration { return time.Millisecond }

func (f *flakySource) Poll(ctx context.Context) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.polls <= f.failures {
		return nil, errors.New("sensor offline")
	}
	if f.emitted {
		return nil, nil
	}
	f.emitted = true
	return []Event{{Source: "flaky", Label: "recovered"}}, nil
}

func TestRunnerRecoversAfterErrors(t *testing.T) {
	src := &flakySource{failures: 3}
	got := make(chan Event, 1)
	r := NewRunner(src, func(ev Event) { got <- ev }, zerolog.Nop())
	r.Start()
	defer r.Stop()

	select {
	case ev := <-got:
		if ev.Label != "recovered" {
			t.Errorf("Expected recovered event, got %v", ev)
		}
		if ev.At.IsZero() {
			t.Errorf("Expected runner to stamp event time")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Runner did not recover from poll errors")
	}
}

// panickySource panics once, then emits.
type panickySource struct {
	mu       sync.Mutex
	panicked bool
	emitted  bool
}

func (p *panickySource) Name() string            { return "panicky" }
func (p *panickySource) Interval() time.Duration { return time.Millisecond }

func (p *panickySource) Poll(ctx context.Context) ([]Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.panicked {
		p.panicked = true
		panic("camera disappeared")
	}
	if p.emitted {
		return nil, nil
	}
	p.emitted = true
	return []Event{{Source: "panicky", Label: "ok"}}, nil
}

func TestRunnerSurvivesPanic(t *testing.T) {
	got := make(chan Event, 1)
	r := NewRunner(&panickySource{}, func(ev Event) { got <- ev }, zerolog.Nop())
	r.Start()
	defer r.Stop()

	select {
	case ev := <-got:
		if ev.Label != "ok" {
			t.Errorf("Expected ok event after panic recovery, got %v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Runner did not survive sensor panic")
	}
}

func TestNextBackoffCapped(t *testing.T) {
	b := nextBackoff(0, time.Second)
	if b != time.Second {
		t.Fatalf("Expected initial backoff of 1s, got %v", b)
	}
	for i := 0; i < 10; i++ {
		b = nextBackoff(b, time.Second)
	}
	if b != maxBackoff {
		t.Errorf("Expected backoff capped at %v, got %v", maxBackoff, b)
	}
}
