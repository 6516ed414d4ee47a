package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/focusd/internal/analysis"
	"github.com/goodtune/focusd/internal/api"
	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/metrics"
	"github.com/goodtune/focusd/internal/policy/opa"
	"github.com/goodtune/focusd/internal/retention"
	"github.com/goodtune/focusd/internal/sensor"
	"github.com/goodtune/focusd/internal/session"
	"github.com/goodtune/focusd/internal/speech"
	"github.com/goodtune/focusd/internal/storage"
	"github.com/goodtune/focusd/internal/storage/redis"
	"github.com/goodtune/focusd/internal/systemd"
	"github.com/goodtune/focusd/internal/tracker"
	"github.com/goodtune/focusd/internal/watch"
	"github.com/goodtune/focusd/internal/wifi"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start focusd daemon",
	Long:  `Start the focusd daemon with the control API, sensor workers, tab watcher, and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting focusd")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("redis_host", cfg.Storage.Redis.Host).
		Int("redis_port", cfg.Storage.Redis.Port).
		Msg("Storage initialized")

	// Initialize Policy Engine
	policyEngine, err := opa.NewEngine(cfg.Policy, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Policy Engine: %w", err)
	}

	logger.Info().Str("source", cfg.Policy.Source).Msg("Policy Engine initialized")

	// Initialize Session Manager
	sessions := session.NewManager(cfg.Session, store.Stats(), nil, logger)
	defer sessions.Stop()

	logger.Info().
		Int("default_focus_minutes", cfg.Session.DefaultFocusMinutes).
		Int("default_break_minutes", cfg.Session.DefaultBreakMinutes).
		Msg("Session Manager initialized")

	// Initialize Speech Queue
	var synth speech.Synthesizer = speech.NopSynthesizer{}
	if cfg.Speech.Enabled {
		synth = speech.CommandSynthesizer{}
	}
	speechQueue := speech.NewQueue(synth, cfg.Speech.QueueSize, logger)
	speechQueue.Start()
	defer speechQueue.Stop()

	// Announce session transitions
	sessions.OnTransition(func(from, to session.State) {
		switch to {
		case session.StateFocus:
			speechQueue.Say("Focus session started. You've got this.")
		case session.StateBreak:
			speechQueue.Say("Time for a break. Step away from the screen.")
		case session.StateIdle:
			if from == session.StateBreak {
				speechQueue.Say("Break's over.")
			}
		}
	})

	// Analysis gate, toggled by hand gestures
	gate := sensor.NewGate(true)

	// Initialize Analysis Pipeline
	var classifier analysis.Classifier = analysis.KeywordClassifier{}
	if cfg.Analysis.Endpoint != "" {
		classifier = analysis.NewRemoteClassifier(cfg.Analysis, logger)
		logger.Info().Str("endpoint", cfg.Analysis.Endpoint).Msg("Using remote classifier")
	} else {
		logger.Info().Msg("No classifier endpoint configured, using built-in keyword classifier")
	}

	pipeline := analysis.NewPipeline(cfg.Analysis, classifier, policyEngine, sessions, gate, logger)

	// Repeated-distraction tracker, spoken interventions via the queue
	distractions := tracker.New(speechQueue, logger)
	pipeline.OnVerdict(func(v analysis.Verdict) {
		if v.Decision == analysis.DecisionRedirect {
			distractions.Record(v.URL, v.Title)
		}
	})

	// Initialize Tab Watcher
	watcher := watch.NewWatcher(cfg.Watcher, pipeline, &redirectLogger{logger: logger}, nil, logger)
	defer watcher.Stop()

	logger.Info().
		Str("dwell", cfg.Watcher.DwellTime).
		Strs("block_patterns", cfg.Watcher.BlockPatterns).
		Msg("Tab Watcher initialized")

	// Start sensor workers
	handler := sensorHandler(gate, sessions, store.Stats(), speechQueue, logger)
	runners := startSensors(cfg, handler, logger)
	defer func() {
		for _, r := range runners {
			r.Stop()
		}
	}()

	// Initialize control API server
	apiServer := api.NewServer(cfg.Server, sessions, watcher, store.Stats(), store.Logs(), logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start control API server: %w", err)
	}

	logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)).
		Msg("Control API server started")

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().
		Str("addr", metricsAddr).
		Msg("Metrics Server started")

	// Initialize Retention Scheduler
	retentionScheduler := retention.NewScheduler(store, cfg.Retention, logger)
	retentionScheduler.Start()

	logger.Info().
		Int("url_log_days", cfg.Retention.URLLogDays).
		Int("stats_days", cfg.Retention.StatsDays).
		Msg("Retention Scheduler initialized")

	// Log startup complete
	logger.Info().Msg("focusd startup complete")
	logger.Info().Msgf("Control API: http://%s:%d/health", cfg.Server.BindAddress, cfg.Server.APIPort)
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Signal handling loop
	for {
		sig := <-sigChan

		switch sig {
		case syscall.SIGHUP:
			logger.Info().Msg("SIGHUP received, reloading policies...")
			if err := policyEngine.Reload(); err != nil {
				logger.Error().Err(err).Msg("Failed to reload policies")
			} else {
				logger.Info().Msg("Policies reloaded successfully")
			}
			// Continue running
			continue

		case os.Interrupt, syscall.SIGTERM:
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			// Break out of loop to shutdown
		}

		// Only reached on shutdown signals
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	retentionScheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping control API server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("focusd stopped")

	return nil
}

// sensorHandler routes sensor events to the components that react to
// them: gestures toggle the analysis gate, wake-word commands drive the
// session manager, wifi hits produce a spoken commute suggestion.
func sensorHandler(gate *sensor.Gate, sessions *session.Manager, stats storage.StatsStore, speechQueue *speech.Queue, logger zerolog.Logger) sensor.Handler {
	return func(ev sensor.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch ev.Source {
		case "gesture":
			switch sensor.Gesture(ev.Label) {
			case sensor.GestureOpenPalm:
				gate.Enable()
				speechQueue.Say("Distraction analysis on.")
			case sensor.GestureClosedFist:
				gate.Disable()
				speechQueue.Say("Distraction analysis off.")
			}

		case "wake_word":
			switch ev.Label {
			case sensor.LabelWake:
				speechQueue.Say("Yes?")
			case sensor.LabelCommandFocus:
				sessions.StartFocus(ctx, 0)
			case sensor.LabelCommandBreak:
				sessions.StartBreak(ctx, 0)
			case sensor.LabelCommandEnd:
				sessions.End(ctx)
				speechQueue.Say("Session ended.")
			case sensor.LabelCommandStatus:
				speechQueue.Say(statusReport(ctx, sessions, stats))
			case sensor.LabelCommandUnknown:
				speechQueue.Say("Sorry, I didn't catch that.")
			}

		case "wifi":
			if ev.Label == sensor.LabelTransit {
				logger.Info().Str("ssid", ev.Detail).Msg("Transit network detected")
				speechQueue.Say("Looks like you're commuting. Good time for a podcast or some reading.")
			}
		}
	}
}

// statusReport builds the spoken answer to "how am I doing".
func statusReport(ctx context.Context, sessions *session.Manager, stats storage.StatsStore) string {
	status := sessions.Status()

	var head string
	switch status.State {
	case session.StateFocus:
		head = fmt.Sprintf("You're %d minutes into a focus session, %d to go.",
			status.ElapsedSeconds/60, status.RemainingSeconds/60)
	case session.StateBreak:
		head = fmt.Sprintf("You're on a break, %d minutes left.", status.RemainingSeconds/60)
	default:
		head = "No session running."
	}

	day, err := stats.GetDailyStats(ctx, time.Now().Format("2006-01-02"))
	if err != nil {
		return head
	}

	return fmt.Sprintf("%s Today: %d minutes of focus across %d completed sessions, %d distractions blocked.",
		head, day.FocusSeconds/60, day.SessionsCompleted, day.DistractionsBlocked)
}

// startSensors builds and starts one runner per enabled sensor worker.
func startSensors(cfg *config.Config, handler sensor.Handler, logger zerolog.Logger) []*sensor.Runner {
	var runners []*sensor.Runner

	if cfg.Sensors.Gesture.Enabled {
		if cfg.Sensors.Gesture.Command == "" {
			logger.Warn().Msg("Gesture sensor enabled but no recognizer command configured, skipping")
		} else {
			src := sensor.NewGestureSensor(cfg.Sensors.Gesture, sensor.CommandClassifier{Command: cfg.Sensors.Gesture.Command})
			runners = append(runners, sensor.NewRunner(src, handler, logger))
		}
	}

	if cfg.Sensors.WakeWord.Enabled {
		if cfg.Sensors.WakeWord.Command == "" {
			logger.Warn().Msg("Wake-word sensor enabled but no listener command configured, skipping")
		} else {
			src := sensor.NewWakeWordSensor(cfg.Sensors.WakeWord, sensor.CommandListener{Command: cfg.Sensors.WakeWord.Command})
			runners = append(runners, sensor.NewRunner(src, handler, logger))
		}
	}

	if cfg.Sensors.Wifi.Enabled {
		src := sensor.NewWifiSensor(cfg.Sensors.Wifi, wifi.CommandScanner{})
		runners = append(runners, sensor.NewRunner(src, handler, logger))
	}

	for _, r := range runners {
		r.Start()
	}

	return runners
}

// redirectLogger records redirect decisions for the extension to act
// on. The browser applies redirects itself from the analyze response;
// the daemon side only logs what it decided.
type redirectLogger struct {
	logger zerolog.Logger
}

func (a *redirectLogger) Redirect(ctx context.Context, tabID, targetURL string) error {
	a.logger.Info().
		Str("tab_id", tabID).
		Str("target", targetURL).
		Msg("Redirect issued")
	return nil
}

func (a *redirectLogger) Remove(ctx context.Context, tabID string) error {
	a.logger.Info().
		Str("tab_id", tabID).
		Msg("Tab removal issued")
	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "redis"
	}

	switch storageType {
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (only 'redis' is supported)", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
