package opa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/policy"
)

func newEmbeddedEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(config.PolicyConfig{Source: "embedded"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return e
}

func TestEvaluateEmbeddedPolicy(t *testing.T) {
	e := newEmbeddedEngine(t)

	tests := []struct {
		name   string
		input  policy.Input
		action string
	}{
		{
			name: "confident distraction during focus redirects",
			input: policy.Input{
				SessionState:    "focus",
				AnalysisEnabled: true,
				Class:           "DISTRACTION",
				Confidence:      0.9,
			},
			action: policy.ActionRedirect,
		},
		{
			name: "distraction outside focus is allowed",
			input: policy.Input{
				SessionState:    "idle",
				AnalysisEnabled: true,
				Class:           "DISTRACTION",
				Confidence:      0.9,
			},
			action: policy.ActionAllow,
		},
		{
			name: "distraction during break is allowed",
			input: policy.Input{
				SessionState:    "break",
				AnalysisEnabled: true,
				Class:           "DISTRACTION",
				Confidence:      0.9,
			},
			action: policy.ActionAllow,
		},
		{
			name: "gate disabled allows everything",
			input: policy.Input{
				SessionState:    "focus",
				AnalysisEnabled: false,
				Class:           "DISTRACTION",
				Confidence:      0.9,
			},
			action: policy.ActionAllow,
		},
		{
			name: "low confidence is allowed",
			input: policy.Input{
				SessionState:    "focus",
				AnalysisEnabled: true,
				Class:           "DISTRACTION",
				Confidence:      0.6,
			},
			action: policy.ActionAllow,
		},
		{
			name: "work content during focus is allowed",
			input: policy.Input{
				SessionState:    "focus",
				AnalysisEnabled: true,
				Class:           "WORK",
				Confidence:      0.95,
			},
			action: policy.ActionAllow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := e.Evaluate(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if outcome.Action != tt.action {
				t.Errorf("Expected action %q, got %q (%s)", tt.action, outcome.Action, outcome.Reason)
			}
		})
	}
}

func TestFilesystemPolicyOverride(t *testing.T) {
	dir := t.TempDir()
	// A stricter policy that also redirects during breaks.
	custom := `package focusd.intervene

import rego.v1

default decision := {"action": "allow", "reason": "default allow"}

decision := {"action": "redirect", "reason": "strict mode"} if {
	input.class == "DISTRACTION"
	input.confidence > 0.5
}
`
	if err := os.WriteFile(filepath.Join(dir, "intervene.rego"), []byte(custom), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	e, err := NewEngine(config.PolicyConfig{Source: "filesystem", PolicyDir: dir}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	outcome, err := e.Evaluate(context.Background(), policy.Input{
		SessionState:    "break",
		AnalysisEnabled: false,
		Class:           "DISTRACTION",
		Confidence:      0.8,
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome.Action != policy.ActionRedirect {
		t.Errorf("Expected custom policy to redirect, got %q", outcome.Action)
	}
}

func TestFilesystemSourceRequiresPolicies(t *testing.T) {
	_, err := NewEngine(config.PolicyConfig{Source: "filesystem", PolicyDir: t.TempDir()}, zerolog.Nop())
	if err == nil {
		t.Fatalf("Expected error for empty policy directory")
	}
}

func TestReload(t *testing.T) {
	e := newEmbeddedEngine(t)
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
}
