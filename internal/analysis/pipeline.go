package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/metrics"
	"github.com/goodtune/focusd/internal/policy"
	"github.com/goodtune/focusd/internal/sensor"
	"github.com/goodtune/focusd/internal/session"
)

// Session is the slice of the session manager the pipeline needs.
type Session interface {
	State() session.State
	RecordDistractionBlocked(ctx context.Context)
}

// VerdictHook observes every completed verdict.
type VerdictHook func(Verdict)

type inflight struct {
	done    chan struct{}
	verdict Verdict
}

// Pipeline turns a page into an intervention verdict. Classification
// results are cached by URL; concurrent requests for the same tab are
// coalesced into a single classifier call. Classifier or policy
// failure fails open to ALLOW.
type Pipeline struct {
	classifier Classifier
	engine     policy.Engine
	sess       Session
	gate       *sensor.Gate
	cache      *expirable.LRU[string, Result]
	logger     zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*inflight
	hooks    []VerdictHook
}

// NewPipeline creates an analysis pipeline.
func NewPipeline(cfg config.AnalysisConfig, classifier Classifier, engine policy.Engine, sess Session, gate *sensor.Gate, logger zerolog.Logger) *Pipeline {
	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	return &Pipeline{
		classifier: classifier,
		engine:     engine,
		sess:       sess,
		gate:       gate,
		cache:      expirable.NewLRU[string, Result](size, nil, config.Duration(cfg.CacheTTL, 10*time.Minute)),
		logger:     logger.With().Str("component", "analysis").Logger(),
		inflight:   make(map[string]*inflight),
	}
}

// OnVerdict registers a hook invoked for every completed verdict.
// Must be called before the pipeline is in use.
func (p *Pipeline) OnVerdict(hook VerdictHook) {
	p.hooks = append(p.hooks, hook)
}

// Analyze classifies the page and applies intervention policy. It
// never returns an error: every failure degrades to an ALLOW verdict.
// A second Analyze for the same tab while one is in flight waits for
// and shares the first result.
func (p *Pipeline) Analyze(ctx context.Context, tabID string, page Page) Verdict {
	p.mu.Lock()
	if fl, ok := p.inflight[tabID]; ok {
		p.mu.Unlock()
		select {
		case <-fl.done:
			return fl.verdict
		case <-ctx.Done():
			return p.failOpen(page, "analysis cancelled")
		}
	}
	fl := &inflight{done: make(chan struct{})}
	p.inflight[tabID] = fl
	p.mu.Unlock()

	verdict := p.analyze(ctx, page)

	p.mu.Lock()
	fl.verdict = verdict
	delete(p.inflight, tabID)
	p.mu.Unlock()
	close(fl.done)

	metrics.AnalysisRequestsTotal.WithLabelValues(string(verdict.Decision)).Inc()
	for _, hook := range p.hooks {
		hook(verdict)
	}
	return verdict
}

func (p *Pipeline) analyze(ctx context.Context, page Page) Verdict {
	start := time.Now()

	result, ok := p.cache.Get(page.URL)
	if ok {
		metrics.VerdictCacheHits.Inc()
	} else {
		metrics.VerdictCacheMisses.Inc()
		var err error
		result, err = p.classifier.Classify(ctx, page)
		if err != nil {
			metrics.AnalysisFailuresTotal.Inc()
			p.logger.Warn().Err(err).Str("url", page.URL).Msg("Classification failed, allowing")
			return p.failOpen(page, "classification failed")
		}
		p.cache.Add(page.URL, result)
	}
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	input := policy.Input{
		SessionState:    string(p.sess.State()),
		AnalysisEnabled: p.gate.Enabled(),
		Class:           string(result.Class),
		Confidence:      result.Confidence,
		URL:             page.URL,
	}
	outcome, err := p.engine.Evaluate(ctx, input)
	if err != nil {
		p.logger.Error().Err(err).Str("url", page.URL).Msg("Policy evaluation failed, allowing")
		return Verdict{
			URL:        page.URL,
			Title:      page.Title,
			Decision:   DecisionAllow,
			Class:      result.Class,
			Confidence: result.Confidence,
			Reason:     "policy evaluation failed",
		}
	}

	decision := DecisionAllow
	if outcome.Action == policy.ActionRedirect {
		decision = DecisionRedirect
		p.sess.RecordDistractionBlocked(ctx)
	}

	verdict := Verdict{
		URL:        page.URL,
		Title:      page.Title,
		Decision:   decision,
		Class:      result.Class,
		Confidence: result.Confidence,
		Reason:     outcome.Reason,
	}
	p.logger.Info().
		Str("url", page.URL).
		Str("class", string(result.Class)).
		Float64("confidence", result.Confidence).
		Str("decision", string(decision)).
		Msg("Analysis verdict")
	return verdict
}

func (p *Pipeline) failOpen(page Page, reason string) Verdict {
	return Verdict{
		URL:        page.URL,
		Title:      page.Title,
		Decision:   DecisionAllow,
		Class:      ClassNeutral,
		Confidence: 0,
		Reason:     reason,
	}
}
