package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/db"
	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
	"github.com/banshee-data/drowsiness.monitor/internal/report"
	"github.com/banshee-data/drowsiness.monitor/internal/serialmux"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const (
	defaultSessionsLimit    = 20
	defaultTransitionsLimit = 100
)

// Monitor is the live session the API reports on.
type Monitor interface {
	Snapshot() drowsiness.Snapshot
	RequestCalibration()
}

// DeliveryReporter exposes actuator delivery counters.
type DeliveryReporter interface {
	Stats() serialmux.DeliveryStats
}

type Server struct {
	monitor   Monitor
	db        *db.DB
	sessionID string
	delivery  DeliveryReporter
}

// NewServer creates the API server. database may be nil when storage is
// disabled; the history endpoints then answer 503.
func NewServer(monitor Monitor, database *db.DB, sessionID string) *Server {
	return &Server{
		monitor:   monitor,
		db:        database,
		sessionID: sessionID,
	}
}

// SetDeliveryReporter adds actuator counters to /api/status.
func (s *Server) SetDeliveryReporter(d DeliveryReporter) {
	s.delivery = d
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/calibrate", s.calibrate)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/transitions", s.listTransitions)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/charts/timeline", s.showTimelineChart)
	mux.HandleFunc("/api/charts/plot.png", s.showPlot)
	return mux
}

type statusResponse struct {
	drowsiness.Snapshot
	Label     string                   `json:"label"`
	SessionID string                   `json:"session_id,omitempty"`
	Transport *serialmux.DeliveryStats `json:"transport,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap := s.monitor.Snapshot()
	resp := statusResponse{
		Snapshot:  snap,
		Label:     snap.Level.Label(),
		SessionID: s.sessionID,
	}
	if s.delivery != nil {
		stats := s.delivery.Stats()
		resp.Transport = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// calibrate queues a calibration; it is applied at the next frame.
func (s *Server) calibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.monitor.RequestCalibration()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// requireDB answers 503 when storage is disabled.
func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "storage disabled")
		return false
	}
	return true
}

// sessionParam returns the session_id query parameter, defaulting to the
// live session.
func (s *Server) sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		id = s.sessionID
	}
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "missing 'session_id' parameter")
		return "", false
	}
	return id, true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	limit, ok := intParam(r, "limit", defaultSessionsLimit)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}
	sessions, err := s.db.Sessions(limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) listTransitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}
	limit, ok := intParam(r, "limit", defaultTransitionsLimit)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}
	transitions, err := s.db.Transitions(id, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list transitions: %v", err))
		return
	}
	if transitions == nil {
		transitions = []db.Transition{}
	}
	writeJSON(w, http.StatusOK, transitions)
}

// history loads all stored samples and transitions of a session.
func (s *Server) history(id string) ([]db.Sample, []db.Transition, error) {
	if _, err := s.db.Session(id); err != nil {
		return nil, nil, err
	}
	samples, err := s.db.Samples(id, 0)
	if err != nil {
		return nil, nil, err
	}
	transitions, err := s.db.Transitions(id, 0)
	if err != nil {
		return nil, nil, err
	}
	return samples, transitions, nil
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}
	samples, transitions, err := s.history(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load session: %v", err))
		return
	}
	summary, err := report.Summarise(samples, transitions)
	if errors.Is(err, report.ErrNoData) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
