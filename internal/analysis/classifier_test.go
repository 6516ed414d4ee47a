package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
)

func TestRemoteClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"decision": "distraction", "confidence": 0.85, "reason": "entertainment"}`))
	}))
	defer srv.Close()

	c := NewRemoteClassifier(config.AnalysisConfig{Endpoint: srv.URL, Timeout: "5s"}, zerolog.Nop())
	result, err := c.Classify(context.Background(), Page{URL: "https://example.com", Title: "cat videos"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Class != ClassDistraction {
		t.Errorf("Expected DISTRACTION (lowercase input normalized), got %s", result.Class)
	}
	if result.Confidence != 0.85 {
		t.Errorf("Expected confidence 0.85, got %f", result.Confidence)
	}
}

func TestRemoteClassifierErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"decision": `))
			},
		},
		{
			name: "unknown decision",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"decision": "MAYBE", "confidence": 0.5}`))
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewRemoteClassifier(config.AnalysisConfig{Endpoint: srv.URL, Timeout: "5s"}, zerolog.Nop())
			if _, err := c.Classify(context.Background(), Page{URL: "https://example.com"}); err == nil {
				t.Errorf("Expected error")
			}
		})
	}
}

func TestRemoteClassifierUnreachable(t *testing.T) {
	c := NewRemoteClassifier(config.AnalysisConfig{Endpoint: "http://127.0.0.1:1", Timeout: "500ms"}, zerolog.Nop())
	if _, err := c.Classify(context.Background(), Page{URL: "https://example.com"}); err == nil {
		t.Errorf("Expected error for unreachable endpoint")
	}
}

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name  string
		page  Page
		class Class
	}{
		{
			name:  "trusted work domain",
			page:  Page{URL: "https://stackoverflow.com/questions/1", Title: "anything"},
			class: ClassWork,
		},
		{
			name:  "known distraction domain",
			page:  Page{URL: "https://www.tiktok.com/@someone", Title: "anything"},
			class: ClassDistraction,
		},
		{
			name:  "work keywords in title",
			page:  Page{URL: "https://example.com/post", Title: "Go programming tutorial for beginners"},
			class: ClassWork,
		},
		{
			name:  "distraction keywords in title",
			page:  Page{URL: "https://example.com/watch", Title: "funny fails compilation viral"},
			class: ClassDistraction,
		},
		{
			name:  "documentation url pattern",
			page:  Page{URL: "https://example.com/docs/getting-started", Title: "Getting started"},
			class: ClassWork,
		},
		{
			name:  "ambiguous content",
			page:  Page{URL: "https://example.com/page", Title: "hello world weather"},
			class: ClassNeutral,
		},
	}

	c := KeywordClassifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Classify(context.Background(), tt.page)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if result.Class != tt.class {
				t.Errorf("Expected %s, got %s (%s)", tt.class, result.Class, result.Reason)
			}
			if result.Class != ClassNeutral && result.Confidence <= 0.5 {
				t.Errorf("Expected confident result, got %f", result.Confidence)
			}
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.Example.com/path", "example.com"},
		{"http://github.com", "github.com"},
		{"https://docs.python.org/3/", "docs.python.org"},
	}
	for _, tt := range tests {
		if got := extractDomain(tt.url); got != tt.want {
			t.Errorf("extractDomain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
