package opa

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/policy"
)

//go:embed intervene.rego
var embeddedPolicy string

// Engine wraps OPA rego engine for intervention policy evaluation
type Engine struct {
	cfg    config.PolicyConfig
	logger zerolog.Logger

	mu    sync.RWMutex
	query rego.PreparedEvalQuery

	modules map[string]*ast.Module
}

// NewEngine creates a new OPA engine. With the embedded source the
// built-in policy is used; with the filesystem source all .rego files
// in the policy directory are loaded.
func NewEngine(cfg config.PolicyConfig, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "opa").Logger(),
	}

	if err := e.load(); err != nil {
		return nil, err
	}

	e.logger.Info().Str("source", cfg.Source).Msg("OPA engine initialized")
	return e, nil
}

func (e *Engine) load() error {
	modules := make(map[string]*ast.Module)

	if e.cfg.Source == "filesystem" {
		files, err := filepath.Glob(filepath.Join(e.cfg.PolicyDir, "*.rego"))
		if err != nil {
			return fmt.Errorf("failed to glob policy files: %w", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no policy files found in %s", e.cfg.PolicyDir)
		}
		for _, file := range files {
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read policy file %s: %w", file, err)
			}
			module, err := ast.ParseModule(file, string(content))
			if err != nil {
				return fmt.Errorf("failed to parse policy file %s: %w", file, err)
			}
			modules[file] = module
			e.logger.Debug().Str("file", file).Str("package", module.Package.Path.String()).Msg("Loaded policy module")
		}
	} else {
		module, err := ast.ParseModule("embedded/intervene.rego", embeddedPolicy)
		if err != nil {
			return fmt.Errorf("failed to parse embedded policy: %w", err)
		}
		modules["embedded/intervene.rego"] = module
	}

	opts := make([]func(*rego.Rego), 0, len(modules)+1)
	opts = append(opts, rego.Query("data.focusd.intervene.decision"))
	for _, module := range modules {
		opts = append(opts, rego.Module(module.Package.Path.String(), module.String()))
	}

	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("failed to prepare intervention query: %w", err)
	}

	e.mu.Lock()
	e.modules = modules
	e.query = query
	e.mu.Unlock()
	return nil
}

// Evaluate runs the intervention query over the given facts.
func (e *Engine) Evaluate(ctx context.Context, input policy.Input) (*policy.Outcome, error) {
	startTime := time.Now()

	facts := map[string]interface{}{
		"session_state":    input.SessionState,
		"analysis_enabled": input.AnalysisEnabled,
		"class":            input.Class,
		"confidence":       input.Confidence,
		"url":              input.URL,
	}

	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(facts))
	if err != nil {
		return nil, fmt.Errorf("intervention query evaluation failed: %w", err)
	}

	e.logger.Debug().Dur("duration_ms", time.Since(startTime)).Msg("Intervention query evaluated")

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, fmt.Errorf("no results from intervention query")
	}

	resultBytes, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intervention outcome: %w", err)
	}

	var outcome policy.Outcome
	if err := json.Unmarshal(resultBytes, &outcome); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intervention outcome: %w", err)
	}
	if outcome.Action == "" {
		return nil, fmt.Errorf("intervention outcome missing action")
	}

	return &outcome, nil
}

// Reload reloads all policies.
func (e *Engine) Reload() error {
	e.logger.Info().Msg("Reloading OPA policies")
	if err := e.load(); err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}
	e.logger.Info().Msg("OPA policies reloaded successfully")
	return nil
}
