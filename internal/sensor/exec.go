package sensor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandClassifier runs an external gesture recognizer per frame. The
// helper prints a label on stdout, optionally followed by a confidence
// ("open_palm 0.93"); anything else is treated as no gesture.
type CommandClassifier struct {
	Command string
}

func (c CommandClassifier) Classify(ctx context.Context) (Gesture, float64, error) {
	out, err := runHelper(ctx, c.Command)
	if err != nil {
		return GestureNone, 0, fmt.Errorf("gesture recognizer: %w", err)
	}

	fields := strings.Fields(out)
	if len(fields) == 0 {
		return GestureNone, 0, nil
	}

	confidence := 1.0
	if len(fields) > 1 {
		if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
			confidence = v
		}
	}

	switch Gesture(fields[0]) {
	case GestureOpenPalm:
		return GestureOpenPalm, confidence, nil
	case GestureClosedFist:
		return GestureClosedFist, confidence, nil
	}
	return GestureNone, 0, nil
}

// CommandListener runs an external speech-to-text helper. Each
// invocation blocks until an utterance is heard, then prints the
// transcript on stdout.
type CommandListener struct {
	Command string
}

func (l CommandListener) Listen(ctx context.Context) (string, error) {
	out, err := runHelper(ctx, l.Command)
	if err != nil {
		return "", fmt.Errorf("speech listener: %w", err)
	}
	return out, nil
}

// runHelper executes a shell-style command line and returns the first
// line of its stdout, trimmed.
func runHelper(ctx context.Context, command string) (string, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return "", fmt.Errorf("no helper command configured")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	if err := cmd.Start(); err != nil {
		return "", err
	}

	scanner := bufio.NewScanner(stdout)
	var line string
	if scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return "", err
	}
	return line, nil
}
