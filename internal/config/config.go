package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Duration parses a duration string, falling back when empty or
// malformed. Validation rejects malformed values up front, so the
// fallback only covers zero-value structs in tests.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Session   SessionConfig   `mapstructure:"session"`
	Sensors   SensorsConfig   `mapstructure:"sensors"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	APIPort        int      `mapstructure:"api_port"`
	MetricsPort    int      `mapstructure:"metrics_port"`
	BindAddress    string   `mapstructure:"bind_address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the Redis connection
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig defines session state machine defaults
type SessionConfig struct {
	DefaultFocusMinutes int `mapstructure:"default_focus_minutes"`
	DefaultBreakMinutes int `mapstructure:"default_break_minutes"`
}

// SensorsConfig groups the sensor worker settings
type SensorsConfig struct {
	Gesture  GestureConfig  `mapstructure:"gesture"`
	WakeWord WakeWordConfig `mapstructure:"wake_word"`
	Wifi     WifiConfig     `mapstructure:"wifi"`
}

// GestureConfig defines the gesture worker settings
type GestureConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
	Cooldown string `mapstructure:"cooldown"`
	// Command is the external recognizer invoked per frame. It must
	// print a gesture label (optionally followed by a confidence) on
	// stdout and exit.
	Command string `mapstructure:"command"`
}

// WakeWordConfig defines the wake-word worker settings
type WakeWordConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Phrase        string `mapstructure:"phrase"`
	CommandWindow string `mapstructure:"command_window"`
	// Command is the external speech-to-text helper. Each invocation
	// blocks until an utterance is heard and prints the transcript on
	// stdout.
	Command string `mapstructure:"command"`
}

// WifiConfig defines the wifi scan worker settings
type WifiConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Interval string   `mapstructure:"interval"`
	Keywords []string `mapstructure:"keywords"`
}

// WatcherConfig defines tab watcher behavior
type WatcherConfig struct {
	DwellTime     string   `mapstructure:"dwell_time"`
	BlockPatterns []string `mapstructure:"block_patterns"`
	SafeURL       string   `mapstructure:"safe_url"`
}

// AnalysisConfig defines the distraction analysis pipeline
type AnalysisConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Timeout   string `mapstructure:"timeout"`
	CacheSize int    `mapstructure:"cache_size"`
	CacheTTL  string `mapstructure:"cache_ttl"`
}

// PolicyConfig defines intervention policy engine settings
type PolicyConfig struct {
	Source    string `mapstructure:"source"` // "embedded" or "filesystem"
	PolicyDir string `mapstructure:"policy_dir"`
}

// SpeechConfig defines spoken feedback settings
type SpeechConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	QueueSize int  `mapstructure:"queue_size"`
}

// RetentionConfig defines how long logs and stats are kept
type RetentionConfig struct {
	URLLogDays int `mapstructure:"url_log_days"`
	StatsDays  int `mapstructure:"stats_days"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("FOCUSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
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

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "redis"
	}
	if cfg.Storage.Type != "redis" {
		return fmt.Errorf("unsupported storage type: %s (only 'redis' is supported)", cfg.Storage.Type)
	}
	if cfg.Storage.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if cfg.Session.DefaultFocusMinutes <= 0 {
		return fmt.Errorf("default focus duration must be positive: %d", cfg.Session.DefaultFocusMinutes)
	}
	if cfg.Session.DefaultBreakMinutes <= 0 {
		return fmt.Errorf("default break duration must be positive: %d", cfg.Session.DefaultBreakMinutes)
	}

	if len(cfg.Sensors.Wifi.Keywords) == 0 {
		return fmt.Errorf("at least one wifi transit keyword is required")
	}

	switch cfg.Policy.Source {
	case "embedded", "filesystem":
	default:
		return fmt.Errorf("invalid policy source: %s (must be 'embedded' or 'filesystem')", cfg.Policy.Source)
	}

	return nil
}
