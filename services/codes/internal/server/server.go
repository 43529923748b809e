package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"qride/internal/util"
	"qride/pkg/auth"
	"qride/pkg/domain"
	"qride/pkg/sms"
	"qride/services/codes/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
}

// Server exposes HTTP endpoints for the codes service.
type Server struct {
	app *app.App
	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app: cfg.App,
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("codes", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// codes
	s.mux.HandleFunc("/api/qr-codes", s.handleCodes)
	s.mux.HandleFunc("/api/qr-codes/", s.handleCodeByPath)

	// admin
	s.mux.HandleFunc("/api/admin/login", s.handleAdminLogin)
	s.mux.HandleFunc("/api/admin/qr-codes", s.adminOnly(s.handleAdminCodes))
	s.mux.HandleFunc("/api/admin/qr-codes/", s.adminOnly(s.handleAdminCodeByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createCodeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	qr, err := s.app.CreateCode(app.CreateParams{
		Name:           req.Name,
		PhoneNumber:    req.PhoneNumber,
		DefaultMessage: req.DefaultMessage,
		Password:       req.Password,
		Package:        domain.Package(req.Package),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, qr)
}

// handleCodeByPath dispatches /api/qr-codes/ subroutes:
//
//	GET    scan/{unique_code}
//	PATCH  {id}
//	POST   {unique_code}/activate
//	POST   {id}/cancel
//	POST   {id}/verify-phone
//	POST   {id}/verify-phone/confirm
func (s *Server) handleCodeByPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/qr-codes/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	if rest, ok := strings.CutPrefix(path, "scan/"); ok {
		s.handleScan(w, r, rest)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		s.handleUpdate(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "activate":
		s.handleActivate(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "cancel":
		s.handleCancel(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "verify-phone":
		s.handleVerifyPhone(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "verify-phone" && parts[2] == "confirm":
		s.handleVerifyPhoneConfirm(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request, uniqueCode string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	view, err := s.app.Scan(uniqueCode)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req updateCodeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	qr, err := s.app.UpdateCode(id, req.Password, app.UpdateParams{
		Name:           req.Name,
		PhoneNumber:    req.PhoneNumber,
		DefaultMessage: req.DefaultMessage,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request, uniqueCode string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req activateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	qr, err := s.app.ActivateCode(uniqueCode, domain.Package(req.Package))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req passwordRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	qr, err := s.app.RequestCancellation(id, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

func (s *Server) handleVerifyPhone(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req verifyPhoneRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.StartPhoneVerification(r.Context(), id, req.Password, req.PhoneNumber); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (s *Server) handleVerifyPhoneConfirm(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req verifyPhoneConfirmRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	qr, err := s.app.ConfirmPhoneVerification(r.Context(), id, req.Password, req.PhoneNumber, req.Code)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

// admin handlers
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req passwordRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	tok, err := s.app.AdminLogin(req.Password)
	if err != nil {
		if errors.Is(err, app.ErrInvalidPassword) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		slog.Error("admin login failed", "err", err, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, adminLoginResponse{Token: tok})
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok || !s.app.AdminAuthorize(tok) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdminCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	codes, err := s.app.AdminListCodes()
	if err != nil {
		slog.Error("list codes failed", "err", err, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": codes,
		"count": len(codes),
	})
}

func (s *Server) handleAdminCodeByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/qr-codes/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.AdminDeleteCode(id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrNameAndPhoneRequired),
		errors.Is(err, app.ErrPhoneRequired),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, sms.ErrVerifyCodeMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrVerifyResendLocked),
		errors.Is(err, app.ErrVerifyAttemptsExceeded):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		slog.Error("request failed", "err", err, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
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

type createCodeRequest struct {
	Name           string `json:"name"`
	PhoneNumber    string `json:"phone_number"`
	DefaultMessage string `json:"default_message"`
	Password       string `json:"password"`
	Package        string `json:"package"`
}

type updateCodeRequest struct {
	Password       string  `json:"password"`
	Name           *string `json:"name"`
	PhoneNumber    *string `json:"phone_number"`
	DefaultMessage *string `json:"default_message"`
}

type activateRequest struct {
	Package string `json:"package"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type verifyPhoneRequest struct {
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
}

type verifyPhoneConfirmRequest struct {
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

type adminLoginResponse struct {
	Token string `json:"token"`
}
