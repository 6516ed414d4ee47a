package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goodtune/focusd/internal/analysis"
	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/policy/opa"
	"github.com/goodtune/focusd/internal/storage/redis"
)

var checkEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "Probe the daemon's dependencies",
	Long:  `Probe redis, the policy bundle, the classifier endpoint, and the platform helper tools focusd relies on.`,
	RunE:  runCheckEnv,
}

func init() {
	checkCmd.AddCommand(checkEnvCmd)
}

func runCheckEnv(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("ENVIRONMENT CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	failed := 0

	// Redis
	store, err := redis.Open(cfg.Storage.Redis)
	if err != nil {
		probe("redis", fmt.Sprintf("%s:%d unreachable: %v", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err), false)
		failed++
	} else {
		probe("redis", fmt.Sprintf("connected to %s:%d", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port), true)
		_ = store.Close()
	}

	// Policy
	if _, err := opa.NewEngine(cfg.Policy, logger); err != nil {
		probe("policy", fmt.Sprintf("compilation failed (%s): %v", cfg.Policy.Source, err), false)
		failed++
	} else {
		probe("policy", fmt.Sprintf("compiled (%s source)", cfg.Policy.Source), true)
	}

	// Classifier
	if cfg.Analysis.Endpoint == "" {
		probe("classifier", "built-in keyword classifier (no endpoint configured)", true)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Analysis.Timeout, 30*time.Second))
		_, err := analysis.NewRemoteClassifier(cfg.Analysis, logger).Classify(ctx, analysis.Page{
			URL:       "https://example.com/",
			Timestamp: time.Now(),
		})
		cancel()
		if err != nil {
			probe("classifier", fmt.Sprintf("%s: %v", cfg.Analysis.Endpoint, err), false)
			failed++
		} else {
			probe("classifier", fmt.Sprintf("%s responded", cfg.Analysis.Endpoint), true)
		}
	}

	// Wifi scan tool
	if cfg.Sensors.Wifi.Enabled {
		tool := wifiScanTool()
		if _, err := exec.LookPath(tool); err != nil {
			probe("wifi", fmt.Sprintf("%s not found", tool), false)
			failed++
		} else {
			probe("wifi", fmt.Sprintf("%s found", tool), true)
		}
	} else {
		probe("wifi", "disabled", true)
	}

	// Speech tool
	if cfg.Speech.Enabled {
		tool := speechTool()
		if _, err := exec.LookPath(tool); err != nil {
			probe("speech", fmt.Sprintf("%s not found", tool), false)
			failed++
		} else {
			probe("speech", fmt.Sprintf("%s found", tool), true)
		}
	} else {
		probe("speech", "disabled", true)
	}

	// Recognizer helpers
	failed += probeHelper("gesture", cfg.Sensors.Gesture.Enabled, cfg.Sensors.Gesture.Command)
	failed += probeHelper("wake_word", cfg.Sensors.WakeWord.Enabled, cfg.Sensors.WakeWord.Command)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// probe prints one ✓/✗ result line
func probe(name, detail string, ok bool) {
	if ok {
		color.New(color.FgGreen, color.Bold).Printf("✓ %-10s", name)
	} else {
		color.New(color.FgRed, color.Bold).Printf("✗ %-10s", name)
	}
	fmt.Printf(" %s\n", detail)
}

// probeHelper checks a configured recognizer helper command
func probeHelper(name string, enabled bool, command string) int {
	if !enabled {
		probe(name, "disabled", true)
		return 0
	}
	if command == "" {
		probe(name, "no recognizer command configured (sensor will be skipped)", true)
		return 0
	}
	bin := strings.Fields(command)[0]
	if _, err := exec.LookPath(bin); err != nil {
		probe(name, fmt.Sprintf("%s not found", bin), false)
		return 1
	}
	probe(name, fmt.Sprintf("%s found", bin), true)
	return 0
}

// wifiScanTool names the platform scan command
func wifiScanTool() string {
	switch runtime.GOOS {
	case "windows":
		return "netsh"
	case "darwin":
		return "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"
	default:
		return "nmcli"
	}
}

// speechTool names the platform TTS command
func speechTool() string {
	switch runtime.GOOS {
	case "windows":
		return "powershell"
	case "darwin":
		return "say"
	default:
		return "espeak"
	}
}
