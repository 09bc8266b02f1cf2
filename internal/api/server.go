package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/airquality.report/internal/db"
	"github.com/banshee-data/airquality.report/internal/eventlog"
	"github.com/banshee-data/airquality.report/internal/monitoring"
	"github.com/banshee-data/airquality.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db      *db.DB
	log     *eventlog.Log
	stats   *monitoring.PipelineStats
	session string
	started time.Time
}

func NewServer(database *db.DB, log *eventlog.Log, stats *monitoring.PipelineStats, sessionID string) *Server {
	return &Server{
		db:      database,
		log:     log,
		stats:   stats,
		session: sessionID,
		started: time.Now(),
	}
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
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
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
	mux.HandleFunc("/api/health", s.health)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/segments", s.listSegments)
	mux.HandleFunc("/api/segments/", s.listSegmentRecords)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// statsResponse wraps the pipeline counters with daemon-level context so a
// single request answers "is it alive and keeping up".
type statsResponse struct {
	monitoring.StatsSnapshot
	UptimeSeconds      float64 `json:"uptime_seconds"`
	SessionID          string  `json:"session_id"`
	CurrentSegment     uint32  `json:"current_segment"`
	SegmentFillBytes   int     `json:"segment_fill_bytes"`
	SegmentFillRecords int     `json:"segment_fill_records"`
	Version            string  `json:"version"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	fillBytes, fillRecords := s.log.CurrentFill()
	resp := statsResponse{
		StatsSnapshot:      s.stats.Snapshot(),
		UptimeSeconds:      time.Since(s.started).Seconds(),
		SessionID:          s.session,
		CurrentSegment:     s.log.CurrentIndex(),
		SegmentFillBytes:   fillBytes,
		SegmentFillRecords: fillRecords,
		Version:            version.Version,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, ok := s.parseLimit(w, r)
	if !ok {
		return
	}

	sessions, err := s.db.Sessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.CaptureSession{}
	}

	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sessions")
		return
	}
}

func (s *Server) listSegments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, ok := s.parseLimit(w, r)
	if !ok {
		return
	}

	segments, err := s.db.Segments(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve segments: %v", err))
		return
	}
	if segments == nil {
		segments = []db.ArchivedSegment{}
	}

	if err := json.NewEncoder(w).Encode(segments); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write segments")
		return
	}
}

// parseLimit reads the optional 'limit' query parameter. Zero means the
// store's default.
func (s *Server) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

// recordView controls the wire shape of archived records. Raw payloads can
// be large, so they are only included when the client asks for hex.
type recordView struct {
	Seq        int    `json:"seq"`
	EventCode  uint8  `json:"event_code"`
	PayloadLen int    `json:"payload_len"`
	Payload    string `json:"payload,omitempty"`
}

func (s *Server) listSegmentRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/segments/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "records" {
		s.writeJSONError(w, http.StatusNotFound, "Not found")
		return
	}
	index, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid segment index")
		return
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		session, err = s.db.LatestSessionID()
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to resolve latest session: %v", err))
			return
		}
		if session == "" {
			s.writeJSONError(w, http.StatusNotFound, "No capture sessions recorded")
			return
		}
	}

	records, err := s.db.SegmentRecords(session, uint32(index))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve records: %v", err))
		return
	}

	withPayload := r.URL.Query().Get("payload") == "hex"
	views := make([]recordView, len(records))
	for i, rec := range records {
		views[i] = recordView{
			Seq:        rec.Seq,
			EventCode:  rec.EventCode,
			PayloadLen: len(rec.Payload),
		}
		if withPayload {
			views[i].Payload = hex.EncodeToString(rec.Payload)
		}
	}

	if err := json.NewEncoder(w).Encode(views); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write records")
		return
	}
}
