package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Sensor metrics
	SensorEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_sensor_events_total",
			Help: "Total sensor events emitted",
		},
		[]string{"source", "label"},
	)

	WorkerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_worker_errors_total",
			Help: "Total sensor worker poll errors",
		},
		[]string{"worker"},
	)

	WorkerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_worker_restarts_total",
			Help: "Total sensor worker restarts after a panic",
		},
		[]string{"worker"},
	)

	// Session metrics
	SessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_session_transitions_total",
			Help: "Total session state transitions",
		},
		[]string{"from", "to"},
	)

	SessionExpiriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_session_expiries_total",
			Help: "Total session timer expiries",
		},
		[]string{"state"},
	)

	// Analysis metrics
	AnalysisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_analysis_requests_total",
			Help: "Total content analysis requests",
		},
		[]string{"decision"},
	)

	AnalysisFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusd_analysis_failures_total",
			Help: "Total content analysis failures (treated as allow)",
		},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focusd_analysis_duration_seconds",
			Help:    "Content analysis duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	VerdictCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusd_verdict_cache_hits_total",
			Help: "Verdict cache hits",
		},
	)

	VerdictCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusd_verdict_cache_misses_total",
			Help: "Verdict cache misses",
		},
	)

	// Tab watcher metrics
	TabsWatched = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusd_tabs_watched",
			Help: "Number of tabs currently being watched",
		},
	)

	StaleTimerFiresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusd_stale_timer_fires_total",
			Help: "Dwell timers that fired for a superseded tab state",
		},
	)

	TabRedirectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_tab_redirects_total",
			Help: "Total tab redirects performed",
		},
		[]string{"reason"},
	)

	TabRemovalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusd_tab_removals_total",
			Help: "Tabs closed for matching a block pattern",
		},
	)

	// Speech metrics
	SpeechUtterancesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusd_speech_utterances_total",
			Help: "Total spoken utterances",
		},
	)

	SpeechDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusd_speech_dropped_total",
			Help: "Utterances dropped because the speech queue was full",
		},
	)

	// Intervention metrics
	InterventionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_interventions_total",
			Help: "Total distraction interventions triggered",
		},
		[]string{"kind"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SensorEventsTotal,
		WorkerErrorsTotal,
		WorkerRestartsTotal,
		SessionTransitionsTotal,
		SessionExpiriesTotal,
		AnalysisRequestsTotal,
		AnalysisFailuresTotal,
		AnalysisDuration,
		VerdictCacheHits,
		VerdictCacheMisses,
		TabsWatched,
		StaleTimerFiresTotal,
		TabRedirectsTotal,
		TabRemovalsTotal,
		SpeechUtterancesTotal,
		SpeechDroppedTotal,
		InterventionsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
