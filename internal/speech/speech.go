package speech

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/metrics"
)

// Synthesizer converts a single utterance to audio. Implementations
// may block for the length of the utterance.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Queue serializes utterances through a single worker so that speech
// output never overlaps. Say never blocks the caller; when the queue
// is full the utterance is dropped.
type Queue struct {
	synth  Synthesizer
	ch     chan string
	logger zerolog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewQueue creates a speech queue with the given buffer size.
func NewQueue(synth Synthesizer, size int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = 16
	}
	return &Queue{
		synth:  synth,
		ch:     make(chan string, size),
		logger: logger.With().Str("component", "speech").Logger(),
		done:   make(chan struct{}),
	}
}

// Start runs the speech worker until Stop is called.
func (q *Queue) Start() {
	go q.run()
}

// Stop shuts down the worker. Queued utterances are discarded.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.done)
	})
}

// Say enqueues an utterance without blocking. Returns false if the
// utterance was dropped because the queue is full.
func (q *Queue) Say(text string) bool {
	if text == "" {
		return false
	}
	select {
	case q.ch <- text:
		return true
	default:
		metrics.SpeechDroppedTotal.Inc()
		q.logger.Warn().Str("text", text).Msg("Speech queue full, dropping utterance")
		return false
	}
}

func (q *Queue) run() {
	for {
		select {
		case <-q.done:
			return
		case text := <-q.ch:
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				select {
				case <-q.done:
					cancel()
				case <-ctx.Done():
				}
			}()
			err := q.synth.Speak(ctx, text)
			cancel()
			if err != nil {
				q.logger.Error().Err(err).Str("text", text).Msg("Speech synthesis failed")
				continue
			}
			metrics.SpeechUtterancesTotal.Inc()
			q.logger.Debug().Str("text", text).Msg("Spoke utterance")
		}
	}
}

// CommandSynthesizer shells out to the platform text-to-speech tool.
type CommandSynthesizer struct{}

// Speak runs the platform TTS command and waits for it to finish.
func (CommandSynthesizer) Speak(ctx context.Context, text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "say", text)
	case "windows":
		script := fmt.Sprintf(
			"Add-Type -AssemblyName System.Speech; (New-Object System.Speech.Synthesis.SpeechSynthesizer).Speak(%q)",
			text)
		cmd = exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
	default:
		cmd = exec.CommandContext(ctx, "espeak", text)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tts command failed: %w", err)
	}
	return nil
}

// NopSynthesizer discards all utterances. Used when speech is disabled.
type NopSynthesizer struct{}

func (NopSynthesizer) Speak(ctx context.Context, text string) error {
	return nil
}
