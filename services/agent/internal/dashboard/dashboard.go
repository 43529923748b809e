// Package dashboard serves the agent's local status view: the transmission
// log with search, and a way to wipe it. It binds on the phone itself, so
// there is no auth; anyone with shell access to the device already owns the
// log file.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"qride/services/agent/internal/statuslog"
)

// Server exposes the status log over HTTP.
type Server struct {
	log *statuslog.Log
	mux *http.ServeMux
}

// New constructs the dashboard with routes configured.
func New(log *statuslog.Log) *Server {
	s := &Server{log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/status-log", s.handleStatusLog)
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatusLog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleStatusLogGet(w, r)
	case http.MethodDelete:
		s.handleStatusLogDelete(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStatusLogGet lists logged attempts newest first. q filters on
// phone, message text or outcome.
func (s *Server) handleStatusLogGet(w http.ResponseWriter, r *http.Request) {
	entries, err := s.log.Read()
	if err != nil {
		slog.Error("read status log failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to read status log")
		return
	}

	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	matched := make([]statuslog.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if query == "" || entryMatches(entries[i], query) {
			matched = append(matched, entries[i])
		}
	}
	writeJSON(w, http.StatusOK, statusLogResponse{Entries: matched, Count: len(matched)})
}

func (s *Server) handleStatusLogDelete(w http.ResponseWriter) {
	if err := s.log.Clear(); err != nil {
		slog.Error("clear status log failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear status log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func entryMatches(e statuslog.Entry, query string) bool {
	return strings.Contains(strings.ToLower(e.Phone), query) ||
		strings.Contains(strings.ToLower(e.Message), query) ||
		strings.Contains(strings.ToLower(e.Status), query)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusLogResponse struct {
	Entries []statuslog.Entry `json:"entries"`
	Count   int               `json:"count"`
}
