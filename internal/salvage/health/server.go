package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/salvage/internal/control"
	"github.com/vietddude/salvage/internal/salvage/stats"
)

// Server provides HTTP endpoints for health monitoring and operator queries.
type Server struct {
	monitor *Monitor
	engine  *control.Engine
	server  *http.Server
}

// NewServer creates a new operator server. The gatherer backs /metrics; when
// nil the default prometheus registry is used.
func NewServer(monitor *Monitor, engine *control.Engine, gatherer prometheus.Gatherer, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		engine:  engine,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/review", s.handleReview)
	mux.HandleFunc("/escalations", s.handleEscalations)
	mux.HandleFunc("/stats", s.handleStats)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.ListManualReview(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (s *Server) handleEscalations(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.ListEscalations(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tr := stats.TimeRange(r.URL.Query().Get("range"))
	if tr == "" {
		tr = stats.RangeDay
	}

	report, err := s.engine.GetStatistics(tr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
