package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/focusd/internal/analysis"
	"github.com/goodtune/focusd/internal/session"
	"github.com/goodtune/focusd/internal/storage"
	"github.com/goodtune/focusd/internal/watch"
)

// ErrorResponse is the structured error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SessionRequest is the body for session start/break commands.
type SessionRequest struct {
	Duration int `json:"duration"` // minutes; 0 selects the default
}

// SessionResponse wraps a session command result.
type SessionResponse struct {
	Success bool           `json:"success"`
	Session session.Status `json:"session"`
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSessionRequest(w, r)
	if !ok {
		return
	}
	st := s.sessions.StartFocus(r.Context(), time.Duration(req.Duration)*time.Minute)
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, Session: st})
}

func (s *Server) handleSessionBreak(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSessionRequest(w, r)
	if !ok {
		return
	}
	st := s.sessions.StartBreak(r.Context(), time.Duration(req.Duration)*time.Minute)
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, Session: st})
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.End(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, Session: st})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Status())
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	stats, err := s.stats.GetDailyStats(r.Context(), date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, &storage.DailyStats{Date: date})
			return
		}
		s.logger.Error().Err(err).Str("date", date).Msg("Failed to load daily stats")
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AnalyzeRequest is the body for an on-demand distraction analysis.
type AnalyzeRequest struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds; 0 means now
	TabID     string `json:"tab_id"`
}

// AnalyzeResponse mirrors the verdict back to the extension.
type AnalyzeResponse struct {
	Decision      analysis.Class `json:"decision"`
	IsDistraction bool           `json:"is_distraction"`
	Action        string         `json:"action"`
	Reason        string         `json:"reason,omitempty"`
	Confidence    float64        `json:"confidence"`
	URL           string         `json:"url"`
	Title         string         `json:"title"`
	Timestamp     int64          `json:"timestamp"`
}

func (s *Server) handleAnalyzeDistraction(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	ts := time.UnixMilli(req.Timestamp)
	if req.Timestamp == 0 {
		ts = time.Now()
	}
	tabID := req.TabID
	if tabID == "" {
		tabID = req.URL
	}

	verdict := s.tabs.AnalyzeNow(r.Context(), tabID, analysis.Page{
		URL:       req.URL,
		Title:     req.Title,
		Timestamp: ts,
	})

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Decision:      verdict.Class,
		IsDistraction: verdict.IsDistraction(),
		Action:        strings.ToLower(string(verdict.Decision)),
		Reason:        verdict.Reason,
		Confidence:    verdict.Confidence,
		URL:           req.URL,
		Title:         req.Title,
		Timestamp:     ts.UnixMilli(),
	})
}

func (s *Server) handleTabEvent(w http.ResponseWriter, r *http.Request) {
	var ev watch.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if ev.TabID == "" {
		writeError(w, http.StatusBadRequest, "tab_id is required")
		return
	}
	switch ev.Kind {
	case watch.EventActivated, watch.EventUpdated, watch.EventRemoved:
	default:
		writeError(w, http.StatusBadRequest, "kind must be activated, updated, or removed")
		return
	}

	s.tabs.Handle(r.Context(), ev)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// LogURLRequest is the body for recording one visited URL.
type LogURLRequest struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds; 0 means now
}

func (s *Server) handleLogURL(w http.ResponseWriter, r *http.Request) {
	var req LogURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	ts := time.UnixMilli(req.Timestamp)
	if req.Timestamp == 0 {
		ts = time.Now()
	}

	entry := storage.URLLog{URL: req.URL, Title: req.Title, Timestamp: ts}
	if err := s.logs.AddURLLog(r.Context(), entry); err != nil {
		s.logger.Error().Err(err).Str("url", req.URL).Msg("Failed to store URL log")
		writeError(w, http.StatusInternalServerError, "Failed to store log entry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleQueryURLs(w http.ResponseWriter, r *http.Request) {
	var filter storage.URLLogFilter
	q := r.URL.Query()

	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start time, expected RFC3339")
			return
		}
		filter.StartTime = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end time, expected RFC3339")
			return
		}
		filter.EndTime = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		filter.Offset = n
	}

	logs, err := s.logs.QueryURLLogs(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query URL logs")
		writeError(w, http.StatusInternalServerError, "Failed to query logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// decodeSessionRequest tolerates an empty body for commands with all
// defaults.
func decodeSessionRequest(w http.ResponseWriter, r *http.Request) (SessionRequest, bool) {
	var req SessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return req, false
		}
	}
	if req.Duration < 0 {
		writeError(w, http.StatusBadRequest, "duration must not be negative")
		return req, false
	}
	return req, true
}
