package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"qride/internal/util"
	"qride/pkg/domain"
	"qride/services/relay/internal/app"
	"qride/services/relay/internal/security"
)

// RateLimiter gates requests per key.
type RateLimiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	RelaySecret    string
	SendLimiter    RateLimiter
	Alerter        *security.AuditAlerter
	TrustedProxies *util.TrustedProxies
}

// Server exposes HTTP endpoints for the relay service.
type Server struct {
	app            *app.App
	relaySecret    string
	sendLimiter    RateLimiter
	alerter        *security.AuditAlerter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		relaySecret:    cfg.RelaySecret,
		sendLimiter:    cfg.SendLimiter,
		alerter:        cfg.Alerter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("relay", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// relay
	s.mux.HandleFunc("/api/send-message", s.handleSendMessage)
	s.mux.HandleFunc("/api/fetch-messages", s.handleFetchMessages)
	s.mux.HandleFunc("/api/delivery-status", s.handleDeliveryStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		// Scan pages embed this URL; a helpful 405 beats a bare one when
		// someone opens it in a browser.
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"error":   "Method not allowed",
			"message": "Use POST with a JSON body to send a message",
			"expected_body": map[string]string{
				"code":    "the scanned QR code",
				"message": "the message to relay",
			},
		})
		return
	}

	ip := util.ClientIP(r, s.trustedProxies)
	if s.sendLimiter != nil && !s.sendLimiter.Allow(ip) {
		s.observe("relay.send", "rate_limited", ip)
		writeError(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	rec, err := s.app.SendMessage(r.Context(), req.Code, req.Message)
	if err != nil {
		s.observe("relay.send", "fail", ip)
		switch {
		case errors.Is(err, app.ErrMissingFields):
			writeError(w, http.StatusBadRequest, app.ErrMissingFields.Error())
		case errors.Is(err, app.ErrCodeNotFound):
			writeError(w, http.StatusNotFound, app.ErrCodeNotFound.Error())
		default:
			slog.Error("send message failed", "err", err, "request_id", util.RequestIDFromRequest(r))
			writeError(w, http.StatusInternalServerError, app.ErrQueueUnavailable.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{Success: true, ID: rec.ID})
}

func (s *Server) handleFetchMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.authorize(r, "relay.fetch.authorize") {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	msgs, err := s.app.FetchMessages(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		slog.Error("fetch messages failed", "err", err, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []domain.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, fetchMessagesResponse{Messages: msgs})
}

func (s *Server) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleDeliveryStatusGet(w, r)
	case http.MethodPost:
		s.handleDeliveryStatusPost(w, r)
	default:
		methodNotAllowed(w)
	}
}

// handleDeliveryStatusGet serves the scan page's confirmation poll. It is
// unauthenticated on purpose: knowing the exact (code, message) pair is the
// capability, and the response leaks nothing beyond sent/failed.
func (s *Server) handleDeliveryStatusGet(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	message := r.URL.Query().Get("message")
	if code == "" || message == "" {
		writeError(w, http.StatusBadRequest, app.ErrMissingFields.Error())
		return
	}
	sts, err := s.app.DeliveryStatuses(code, message)
	if err != nil {
		slog.Error("list delivery statuses failed", "err", err, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusInternalServerError, "Failed to fetch delivery status")
		return
	}
	if sts == nil {
		sts = []domain.DeliveryStatus{}
	}
	writeJSON(w, http.StatusOK, deliveryStatusResponse{Statuses: sts})
}

func (s *Server) handleDeliveryStatusPost(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r, "relay.report.authorize") {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req reportDeliveryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	st, err := s.app.RecordDelivery(r.Context(), req.MessageID, req.Code, req.Message, domain.DeliveryOutcome(req.Status))
	if err != nil {
		if errors.Is(err, app.ErrMissingFields) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("record delivery failed", "err", err, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusBadRequest, "Failed to record delivery status")
		return
	}
	writeJSON(w, http.StatusOK, reportDeliveryResponse{Success: true, ID: st.ID})
}

// authorize compares the secret query parameter in constant time so the
// check leaks no timing signal about prefix matches.
func (s *Server) authorize(r *http.Request, event string) bool {
	supplied := r.URL.Query().Get("secret")
	ok := subtle.ConstantTimeCompare([]byte(supplied), []byte(s.relaySecret)) == 1
	if !ok {
		ip := util.ClientIP(r, s.trustedProxies)
		s.observe(event, "fail", ip)
	}
	return ok
}

func (s *Server) observe(event, outcome, ip string) {
	result, err := s.alerter.Observe(event, outcome, ip)
	if err != nil {
		slog.Warn("security observe failed", "err", err, "event", event)
		return
	}
	if result.Triggered {
		slog.Warn("security alert threshold reached",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
		)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type sendMessageRequest struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

type fetchMessagesResponse struct {
	Messages []domain.MessageRecord `json:"messages"`
}

type deliveryStatusResponse struct {
	Statuses []domain.DeliveryStatus `json:"statuses"`
}

type reportDeliveryRequest struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    string `json:"status"`
}

type reportDeliveryResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}
