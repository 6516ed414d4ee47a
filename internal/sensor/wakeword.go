package sensor

import (
	"context"
	"strings"
	"time"

	"github.com/goodtune/focusd/internal/config"
)

// Wake-word event labels.
const (
	LabelWake           = "wake"
	LabelCommandFocus   = "command_focus"
	LabelCommandBreak   = "command_break"
	LabelCommandEnd     = "command_end"
	LabelCommandStatus  = "command_status"
	LabelCommandUnknown = "command_unknown"
)

// SpeechListener blocks until it transcribes one chunk of speech.
type SpeechListener interface {
	Listen(ctx context.Context) (string, error)
}

// WakeWordSensor listens for the wake phrase and then treats the next
// utterance inside the command window as a voice command. Utterances
// outside the window are discarded.
type WakeWordSensor struct {
	listener SpeechListener
	phrase   string
	window   time.Duration
	now      func() time.Time

	awaitingUntil time.Time
}

// NewWakeWordSensor creates a wake-word sensor from config.
func NewWakeWordSensor(cfg config.WakeWordConfig, listener SpeechListener) *WakeWordSensor {
	phrase := strings.ToLower(strings.TrimSpace(cfg.Phrase))
	if phrase == "" {
		phrase = "hey buddy"
	}
	return &WakeWordSensor{
		listener: listener,
		phrase:   phrase,
		window:   config.Duration(cfg.CommandWindow, 8*time.Second),
		now:      time.Now,
	}
}

func (s *WakeWordSensor) Name() string {
	return "wake_word"
}

// Interval is zero: Listen itself blocks until speech arrives.
func (s *WakeWordSensor) Interval() time.Duration {
	return 0
}

// Poll transcribes one utterance and classifies it as a wake phrase,
// a command, or noise.
func (s *WakeWordSensor) Poll(ctx context.Context) ([]Event, error) {
	text, err := s.listener.Listen(ctx)
	if err != nil {
		return nil, err
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, nil
	}

	now := s.now()

	if strings.Contains(text, s.phrase) {
		s.awaitingUntil = now.Add(s.window)
		// A command may ride along with the wake phrase itself:
		// "hey buddy start focus".
		rest := strings.TrimSpace(afterPhrase(text, s.phrase))
		if rest != "" {
			if label := parseCommand(rest); label != LabelCommandUnknown {
				s.awaitingUntil = time.Time{}
				return []Event{{Source: "wake_word", Label: label, Detail: rest, At: now}}, nil
			}
		}
		return []Event{{Source: "wake_word", Label: LabelWake, At: now}}, nil
	}

	if s.awaitingUntil.IsZero() || now.After(s.awaitingUntil) {
		s.awaitingUntil = time.Time{}
		return nil, nil
	}

	// One command per wake.
	s.awaitingUntil = time.Time{}
	return []Event{{
		Source: "wake_word",
		Label:  parseCommand(text),
		Detail: text,
		At:     now,
	}}, nil
}

func afterPhrase(text, phrase string) string {
	idx := strings.Index(text, phrase)
	if idx < 0 {
		return ""
	}
	return text[idx+len(phrase):]
}

// parseCommand maps a transcribed utterance to a command label.
func parseCommand(text string) string {
	switch {
	case strings.Contains(text, "focus"):
		return LabelCommandFocus
	case strings.Contains(text, "break"):
		return LabelCommandBreak
	case strings.Contains(text, "stop") || strings.Contains(text, "end"):
		return LabelCommandEnd
	case strings.Contains(text, "how am i doing") || strings.Contains(text, "status") || strings.Contains(text, "stats"):
		return LabelCommandStatus
	default:
		return LabelCommandUnknown
	}
}
