package sensor

import (
	"context"
	"time"

	"github.com/goodtune/focusd/internal/config"
)

// Gesture is a recognized hand pose.
type Gesture string

const (
	GestureNone       Gesture = ""
	GestureOpenPalm   Gesture = "open_palm"
	GestureClosedFist Gesture = "closed_fist"
)

// FrameClassifier looks at the camera and reports the current hand
// pose, if any.
type FrameClassifier interface {
	Classify(ctx context.Context) (Gesture, float64, error)
}

// GestureSensor polls a frame classifier and emits one event per
// recognized gesture, rate limited by a cooldown so a hand held up
// for a second does not fire dozens of toggles.
type GestureSensor struct {
	classifier FrameClassifier
	interval   time.Duration
	cooldown   time.Duration
	now        func() time.Time

	lastEmit time.Time
}

// NewGestureSensor creates a gesture sensor from config.
func NewGestureSensor(cfg config.GestureConfig, classifier FrameClassifier) *GestureSensor {
	return &GestureSensor{
		classifier: classifier,
		interval:   config.Duration(cfg.Interval, 250*time.Millisecond),
		cooldown:   config.Duration(cfg.Cooldown, 2*time.Second),
		now:        time.Now,
	}
}

func (s *GestureSensor) Name() string {
	return "gesture"
}

func (s *GestureSensor) Interval() time.Duration {
	return s.interval
}

// Poll classifies one frame. Events are suppressed inside the
// cooldown window after the previous emit.
func (s *GestureSensor) Poll(ctx context.Context) ([]Event, error) {
	g, confidence, err := s.classifier.Classify(ctx)
	if err != nil {
		return nil, err
	}
	if g == GestureNone {
		return nil, nil
	}

	now := s.now()
	if !s.lastEmit.IsZero() && now.Sub(s.lastEmit) < s.cooldown {
		return nil, nil
	}
	s.lastEmit = now

	return []Event{{
		Source:     "gesture",
		Label:      string(g),
		Confidence: confidence,
		At:         now,
	}}, nil
}
