package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/focusd/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the focusd configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with -dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		// Get default configuration
		defaultCfg := getDefaultConfig()

		// Dump configuration
		dumpConfig(cfg, defaultCfg)
	}

	return nil
}

// getDefaultConfig creates a configuration with default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	setDefaultsForDump(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// setDefaultsForDump sets default configuration values (copied from config package)
func setDefaultsForDump(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.api_port", 5000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.allowed_origins", []string{})

	// Storage defaults
	v.SetDefault("storage.type", "redis")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Session defaults
	v.SetDefault("session.default_focus_minutes", 25)
	v.SetDefault("session.default_break_minutes", 5)

	// Sensor defaults
	v.SetDefault("sensors.gesture.enabled", true)
	v.SetDefault("sensors.gesture.interval", "250ms")
	v.SetDefault("sensors.gesture.cooldown", "2s")
	v.SetDefault("sensors.gesture.command", "")
	v.SetDefault("sensors.wake_word.enabled", true)
	v.SetDefault("sensors.wake_word.phrase", "hey buddy")
	v.SetDefault("sensors.wake_word.command_window", "8s")
	v.SetDefault("sensors.wake_word.command", "")
	v.SetDefault("sensors.wifi.enabled", true)
	v.SetDefault("sensors.wifi.interval", "60s")
	v.SetDefault("sensors.wifi.keywords", []string{"bus", "train", "station", "transit"})

	// Watcher defaults
	v.SetDefault("watcher.dwell_time", "60s")
	v.SetDefault("watcher.block_patterns", []string{"/shorts/"})
	v.SetDefault("watcher.safe_url", "about:blank")

	// Analysis defaults
	v.SetDefault("analysis.endpoint", "")
	v.SetDefault("analysis.timeout", "30s")
	v.SetDefault("analysis.cache_size", 512)
	v.SetDefault("analysis.cache_ttl", "10m")

	// Policy defaults
	v.SetDefault("policy.source", "embedded")
	v.SetDefault("policy.policy_dir", "/etc/focusd/policies")

	// Speech defaults
	v.SetDefault("speech.enabled", true)
	v.SetDefault("speech.queue_size", 16)

	// Retention defaults
	v.SetDefault("retention.url_log_days", 30)
	v.SetDefault("retention.stats_days", 90)
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	// Get all keys from the config file
	allKeys := v.AllKeys()

	// Build set of valid keys
	validKeys := getValidKeys()

	// Find unknown keys
	unknown := []string{}
	for _, key := range allKeys {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys
func getValidKeys() map[string]bool {
	keys := map[string]bool{
		// Server
		"server.api_port":        true,
		"server.metrics_port":    true,
		"server.bind_address":    true,
		"server.allowed_origins": true,

		// Storage
		"storage.type":                 true,
		"storage.redis.host":           true,
		"storage.redis.port":           true,
		"storage.redis.password":       true,
		"storage.redis.db":             true,
		"storage.redis.pool_size":      true,
		"storage.redis.min_idle_conns": true,
		"storage.redis.dial_timeout":   true,
		"storage.redis.read_timeout":   true,
		"storage.redis.write_timeout":  true,

		// Logging
		"logging.level":  true,
		"logging.format": true,

		// Session
		"session.default_focus_minutes": true,
		"session.default_break_minutes": true,

		// Sensors
		"sensors.gesture.enabled":          true,
		"sensors.gesture.interval":         true,
		"sensors.gesture.cooldown":         true,
		"sensors.gesture.command":          true,
		"sensors.wake_word.enabled":        true,
		"sensors.wake_word.phrase":         true,
		"sensors.wake_word.command_window": true,
		"sensors.wake_word.command":        true,
		"sensors.wifi.enabled":             true,
		"sensors.wifi.interval":            true,
		"sensors.wifi.keywords":            true,

		// Watcher
		"watcher.dwell_time":     true,
		"watcher.block_patterns": true,
		"watcher.safe_url":       true,

		// Analysis
		"analysis.endpoint":   true,
		"analysis.timeout":    true,
		"analysis.cache_size": true,
		"analysis.cache_ttl":  true,

		// Policy
		"policy.source":     true,
		"policy.policy_dir": true,

		// Speech
		"speech.enabled":    true,
		"speech.queue_size": true,

		// Retention
		"retention.url_log_days": true,
		"retention.stats_days":   true,
	}

	return keys
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config) {
	// Setup colors (only if terminal supports it)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	// Server
	_, _ = cyan.Println("\n[server]")
	dumpField("  api_port", cfg.Server.APIPort, defaultCfg.Server.APIPort, yellow, green)
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  allowed_origins", cfg.Server.AllowedOrigins, defaultCfg.Server.AllowedOrigins, yellow, green)

	// Storage
	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)

	// Logging
	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	// Session
	_, _ = cyan.Println("\n[session]")
	dumpField("  default_focus_minutes", cfg.Session.DefaultFocusMinutes, defaultCfg.Session.DefaultFocusMinutes, yellow, green)
	dumpField("  default_break_minutes", cfg.Session.DefaultBreakMinutes, defaultCfg.Session.DefaultBreakMinutes, yellow, green)

	// Sensors
	_, _ = cyan.Println("\n[sensors]")
	_, _ = cyan.Println("  [sensors.gesture]")
	dumpField("    enabled", cfg.Sensors.Gesture.Enabled, defaultCfg.Sensors.Gesture.Enabled, yellow, green)
	dumpField("    interval", cfg.Sensors.Gesture.Interval, defaultCfg.Sensors.Gesture.Interval, yellow, green)
	dumpField("    cooldown", cfg.Sensors.Gesture.Cooldown, defaultCfg.Sensors.Gesture.Cooldown, yellow, green)
	dumpField("    command", cfg.Sensors.Gesture.Command, defaultCfg.Sensors.Gesture.Command, yellow, green)
	_, _ = cyan.Println("  [sensors.wake_word]")
	dumpField("    enabled", cfg.Sensors.WakeWord.Enabled, defaultCfg.Sensors.WakeWord.Enabled, yellow, green)
	dumpField("    phrase", cfg.Sensors.WakeWord.Phrase, defaultCfg.Sensors.WakeWord.Phrase, yellow, green)
	dumpField("    command_window", cfg.Sensors.WakeWord.CommandWindow, defaultCfg.Sensors.WakeWord.CommandWindow, yellow, green)
	dumpField("    command", cfg.Sensors.WakeWord.Command, defaultCfg.Sensors.WakeWord.Command, yellow, green)
	_, _ = cyan.Println("  [sensors.wifi]")
	dumpField("    enabled", cfg.Sensors.Wifi.Enabled, defaultCfg.Sensors.Wifi.Enabled, yellow, green)
	dumpField("    interval", cfg.Sensors.Wifi.Interval, defaultCfg.Sensors.Wifi.Interval, yellow, green)
	dumpField("    keywords", cfg.Sensors.Wifi.Keywords, defaultCfg.Sensors.Wifi.Keywords, yellow, green)

	// Watcher
	_, _ = cyan.Println("\n[watcher]")
	dumpField("  dwell_time", cfg.Watcher.DwellTime, defaultCfg.Watcher.DwellTime, yellow, green)
	dumpField("  block_patterns", cfg.Watcher.BlockPatterns, defaultCfg.Watcher.BlockPatterns, yellow, green)
	dumpField("  safe_url", cfg.Watcher.SafeURL, defaultCfg.Watcher.SafeURL, yellow, green)

	// Analysis
	_, _ = cyan.Println("\n[analysis]")
	dumpField("  endpoint", cfg.Analysis.Endpoint, defaultCfg.Analysis.Endpoint, yellow, green)
	dumpField("  timeout", cfg.Analysis.Timeout, defaultCfg.Analysis.Timeout, yellow, green)
	dumpField("  cache_size", cfg.Analysis.CacheSize, defaultCfg.Analysis.CacheSize, yellow, green)
	dumpField("  cache_ttl", cfg.Analysis.CacheTTL, defaultCfg.Analysis.CacheTTL, yellow, green)

	// Policy
	_, _ = cyan.Println("\n[policy]")
	dumpField("  source", cfg.Policy.Source, defaultCfg.Policy.Source, yellow, green)
	dumpField("  policy_dir", cfg.Policy.PolicyDir, defaultCfg.Policy.PolicyDir, yellow, green)

	// Speech
	_, _ = cyan.Println("\n[speech]")
	dumpField("  enabled", cfg.Speech.Enabled, defaultCfg.Speech.Enabled, yellow, green)
	dumpField("  queue_size", cfg.Speech.QueueSize, defaultCfg.Speech.QueueSize, yellow, green)

	// Retention
	_, _ = cyan.Println("\n[retention]")
	dumpField("  url_log_days", cfg.Retention.URLLogDays, defaultCfg.Retention.URLLogDays, yellow, green)
	dumpField("  stats_days", cfg.Retention.StatsDays, defaultCfg.Retention.StatsDays, yellow, green)

	fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	// Deep equal comparison
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
