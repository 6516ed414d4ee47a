package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goodtune/focusd/internal/analysis"
	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/policy"
	"github.com/goodtune/focusd/internal/policy/opa"
)

var (
	checkSessionState    string
	checkAnalysisEnabled bool
	checkTitle           string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check distraction decisions interactively",
	Long:  `Check what decision focusd would make for a given page without running the daemon.`,
}

var checkURLCmd = &cobra.Command{
	Use:   "url [flags] URL",
	Short: "Check the distraction decision for a URL",
	Long:  `Classify a URL and evaluate the intervention policy against it, as the daemon would during analysis.`,
	Example: `  focusd -c config.yaml check url https://www.youtube.com/watch?v=abc
  focusd check url --session-state idle --title "Go documentation" https://pkg.go.dev/net/http`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckURL,
}

func init() {
	checkURLCmd.Flags().StringVar(&checkSessionState, "session-state", "focus", "Session state to evaluate under (idle, focus, break)")
	checkURLCmd.Flags().BoolVar(&checkAnalysisEnabled, "analysis-enabled", true, "Whether the analysis gate is open")
	checkURLCmd.Flags().StringVar(&checkTitle, "title", "", "Page title (defaults to empty)")

	checkCmd.AddCommand(checkURLCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckURL(cmd *cobra.Command, args []string) error {
	urlStr := args[0]

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host == "" {
		return fmt.Errorf("invalid URL: %s", urlStr)
	}

	switch checkSessionState {
	case "idle", "focus", "break":
	default:
		return fmt.Errorf("invalid session state: %s (must be idle, focus, or break)", checkSessionState)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	// Pick the classifier the daemon would use
	var classifier analysis.Classifier = analysis.KeywordClassifier{}
	classifierName := "keyword"
	if cfg.Analysis.Endpoint != "" {
		classifier = analysis.NewRemoteClassifier(cfg.Analysis, logger)
		classifierName = cfg.Analysis.Endpoint
	}

	// Initialize Policy Engine
	policyEngine, err := opa.NewEngine(cfg.Policy, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Policy Engine: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Analysis.Timeout, 30*time.Second))
	defer cancel()

	// Classify the page
	result, err := classifier.Classify(ctx, analysis.Page{
		URL:       urlStr,
		Title:     checkTitle,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	// Evaluate policy
	outcome, err := policyEngine.Evaluate(ctx, policy.Input{
		SessionState:    checkSessionState,
		AnalysisEnabled: checkAnalysisEnabled,
		Class:           string(result.Class),
		Confidence:      result.Confidence,
		URL:             urlStr,
	})
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	printURLResult(parsedURL, classifierName, result, outcome)

	return nil
}

// printURLResult prints the check result with colors
func printURLResult(parsedURL *url.URL, classifierName string, result analysis.Result, outcome *policy.Outcome) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("DISTRACTION CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("URL:           %s\n", parsedURL.String())
	fmt.Printf("Host:          %s\n", parsedURL.Hostname())
	if checkTitle != "" {
		fmt.Printf("Title:         %s\n", checkTitle)
	}
	fmt.Printf("Classifier:    %s\n", classifierName)
	fmt.Printf("Session state: %s\n", checkSessionState)
	fmt.Printf("Gate open:     %v\n", checkAnalysisEnabled)
	fmt.Println()

	cyan.Print("Class:      ")
	switch result.Class {
	case analysis.ClassWork:
		green.Println("WORK")
	case analysis.ClassNeutral:
		yellow.Println("NEUTRAL")
	case analysis.ClassDistraction:
		red.Println("DISTRACTION")
	default:
		fmt.Println(string(result.Class))
	}
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	if result.Reason != "" {
		fmt.Printf("Reason:     %s\n", result.Reason)
	}
	fmt.Println()

	cyan.Print("Decision:   ")
	switch outcome.Action {
	case policy.ActionAllow:
		green.Println("ALLOW")
		fmt.Println("            → Page will be left alone")
	case policy.ActionRedirect:
		red.Println("REDIRECT")
		fmt.Println("            → Tab will be sent back to the last good page")
		fmt.Println("            → Counted as a blocked distraction")
	default:
		fmt.Println(strings.ToUpper(outcome.Action))
	}

	if outcome.Reason != "" {
		fmt.Printf("Reason:     %s\n", outcome.Reason)
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
