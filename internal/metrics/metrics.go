package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// HTTP metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldflow_http_requests_total",
			Help: "Total number of dashboard HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eldflow_http_request_duration_seconds",
			Help:    "Dashboard request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eldflow_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Ledger metrics
	SegmentSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldflow_segment_submissions_total",
			Help: "Duty-status segment submissions by outcome",
		},
		[]string{"outcome"},
	)

	SegmentHours = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldflow_segment_hours_total",
			Help: "Hours recorded by persisted segments, by duty status",
		},
		[]string{"status"},
	)

	DroppedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eldflow_ledger_dropped_records_total",
			Help: "Stored log records skipped on load because their status was not recognized",
		},
	)

	// Panel cache metrics
	PanelCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eldflow_panel_cache_hits_total",
			Help: "Panel registry cache hits",
		},
	)

	PanelCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eldflow_panel_cache_misses_total",
			Help: "Panel registry cache misses",
		},
	)

	PanelTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldflow_panel_transitions_total",
			Help: "Panel submission state transitions, by target state",
		},
		[]string{"state"},
	)

	// Upstream API metrics
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldflow_upstream_requests_total",
			Help: "Calls to external APIs by service and result",
		},
		[]string{"service", "result"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eldflow_upstream_request_duration_seconds",
			Help:    "External API call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service"},
	)

	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eldflow_active_sessions",
			Help: "Number of live dashboard sessions",
		},
	)

	RetentionDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldflow_retention_deleted_total",
			Help: "Records removed by the retention job",
		},
		[]string{"kind"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RateLimited,
		SegmentSubmissions,
		SegmentHours,
		DroppedRecords,
		PanelCacheHits,
		PanelCacheMisses,
		PanelTransitions,
		UpstreamRequests,
		UpstreamDuration,
		ActiveSessions,
		RetentionDeleted,
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
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
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

// Handler returns the metrics server's handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
