package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
)

// Classifier decides whether a page is work or distraction.
type Classifier interface {
	Classify(ctx context.Context, page Page) (Result, error)
}

// RemoteClassifier calls an external HTTP classification service.
type RemoteClassifier struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewRemoteClassifier creates a classifier backed by the given endpoint.
func NewRemoteClassifier(cfg config.AnalysisConfig, logger zerolog.Logger) *RemoteClassifier {
	return &RemoteClassifier{
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Timeout: config.Duration(cfg.Timeout, 30*time.Second),
		},
		logger: logger.With().Str("component", "classifier").Logger(),
	}
}

// Classify posts the page to the remote service. Any transport or
// decode failure is returned to the caller, which fails open.
func (c *RemoteClassifier) Classify(ctx context.Context, page Page) (Result, error) {
	body, err := json.Marshal(page)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read analysis response: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("malformed analysis response: %w", err)
	}
	if result.Class == "" {
		return Result{}, fmt.Errorf("analysis response missing decision")
	}
	return result, nil
}

// Keyword scoring tables for the built-in classifier.
var (
	workKeywords = []string{
		"tutorial", "documentation", "guide", "how to", "learn", "programming",
		"coding", "development", "api", "framework", "library", "course",
		"education", "training", "technical", "software", "code", "debug",
		"stackoverflow", "github", "python", "javascript", "react", "node",
		"css", "html", "database", "sql", "algorithm", "data structure",
		"project", "task", "planning", "meeting", "work", "business",
		"professional", "career", "skill", "research", "study", "analysis",
		"report", "article", "academic", "paper", "journal", "reference",
	}

	distractionKeywords = []string{
		"funny", "humor", "comedy", "entertainment", "viral", "memes",
		"fails", "compilation", "reaction", "prank", "challenge",
		"celebrity", "gossip", "drama", "scandal", "trending",
		"breaking", "controversy", "politics", "election", "fashion",
		"social media", "instagram", "tiktok", "snapchat", "dating",
		"gaming", "gameplay", "streamer", "twitch", "esports",
	}

	workDomains = map[string]bool{
		"stackoverflow.com":     true,
		"github.com":            true,
		"developer.mozilla.org": true,
		"docs.python.org":       true,
		"go.dev":                true,
		"pkg.go.dev":            true,
		"w3schools.com":         true,
		"freecodecamp.org":      true,
		"coursera.org":          true,
		"udemy.com":             true,
		"edx.org":               true,
	}

	distractionDomains = map[string]bool{
		"9gag.com":      true,
		"buzzfeed.com":  true,
		"tmz.com":       true,
		"tiktok.com":    true,
		"instagram.com": true,
	}
)

// KeywordClassifier scores page text against built-in keyword and
// domain tables. It is the offline fallback when no remote endpoint
// is configured.
type KeywordClassifier struct{}

// Classify scores the page.
func (KeywordClassifier) Classify(ctx context.Context, page Page) (Result, error) {
	domain := extractDomain(page.URL)

	if workDomains[domain] {
		return Result{
			Class:      ClassWork,
			Confidence: 0.95,
			Reason:     fmt.Sprintf("trusted work domain: %s", domain),
		}, nil
	}
	if distractionDomains[domain] {
		return Result{
			Class:      ClassDistraction,
			Confidence: 0.95,
			Reason:     fmt.Sprintf("known distraction domain: %s", domain),
		}, nil
	}

	// Title carries more signal than the URL path.
	text := strings.ToLower(page.Title + " " + page.Title + " " + page.URL)

	workScore := countKeywords(text, workKeywords)
	distractionScore := countKeywords(text, distractionKeywords)

	lowerURL := strings.ToLower(page.URL)
	if strings.Contains(lowerURL, "/docs/") || strings.Contains(lowerURL, "/documentation/") || strings.Contains(lowerURL, "/api/") {
		workScore += 2
	}

	switch {
	case workScore >= 2 && workScore > distractionScore:
		return Result{
			Class:      ClassWork,
			Confidence: boundedConfidence(workScore - distractionScore),
			Reason:     "work keyword indicators",
		}, nil
	case distractionScore >= 2 && distractionScore > workScore:
		return Result{
			Class:      ClassDistraction,
			Confidence: boundedConfidence(distractionScore - workScore),
			Reason:     "distraction keyword indicators",
		}, nil
	default:
		return Result{
			Class:      ClassNeutral,
			Confidence: 0.3,
			Reason:     "ambiguous content",
		}, nil
	}
}

func countKeywords(text string, keywords []string) int {
	score := 0
	for _, k := range keywords {
		score += countWord(text, k)
	}
	return score
}

// countWord counts whole-word occurrences of k in text.
func countWord(text, k string) int {
	count := 0
	for idx := 0; ; {
		i := strings.Index(text[idx:], k)
		if i < 0 {
			break
		}
		start := idx + i
		end := start + len(k)
		leftOK := start == 0 || !isWordChar(text[start-1])
		rightOK := end == len(text) || !isWordChar(text[end])
		if leftOK && rightOK {
			count++
		}
		idx = end
	}
	return count
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

func boundedConfidence(margin int) float64 {
	c := 0.6 + float64(margin)*0.1
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// extractDomain returns the lowercase host without a www prefix.
func extractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
