package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prudhvinik1/chatweet/internal/models"
	"github.com/prudhvinik1/chatweet/internal/services"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

const (
	ActionCreateSession     = "create_session"
	ActionValidateSession   = "validate_session"
	ActionLogout            = "logout"
	ActionGetActiveSessions = "get_active_sessions"
	ActionCleanupExpired    = "cleanup_expired"
	ActionGetLoginHistory   = "get_login_history"
)

// SessionAuthority is the behaviour the handler needs from the session service.
type SessionAuthority interface {
	CreateSession(ctx context.Context, req services.CreateSessionRequest) (*services.CreateSessionResponse, error)
	ValidateSession(ctx context.Context, token, deviceID string) *services.ValidationResult
	Logout(ctx context.Context, req services.LogoutRequest) error
	GetActiveSessions(ctx context.Context, userID string) ([]*models.Session, error)
	CleanupExpired(ctx context.Context) (int64, error)
	LoginHistory(ctx context.Context, userID string, limit int) ([]*models.LoginHistoryEntry, error)
}

// actionRequest is the union of every action's fields.
type actionRequest struct {
	Action       string `json:"action"`
	UserID       string `json:"userId"`
	DeviceID     string `json:"deviceId"`
	UserAgent    string `json:"userAgent"`
	IPAddress    string `json:"ipAddress"`
	SessionToken string `json:"sessionToken"`
	Limit        int    `json:"limit"`
}

type createSessionRequest struct {
	UserID    string `json:"userId" validate:"required,max=255"`
	DeviceID  string `json:"deviceId" validate:"required,max=255"`
	UserAgent string `json:"userAgent" validate:"max=1024"`
	IPAddress string `json:"ipAddress" validate:"max=64"`
}

type validateSessionRequest struct {
	SessionToken string `json:"sessionToken" validate:"required,max=255"`
	DeviceID     string `json:"deviceId" validate:"required,max=255"`
}

type logoutRequest struct {
	UserID       string `json:"userId" validate:"required,max=255"`
	SessionToken string `json:"sessionToken" validate:"required,max=255"`
	DeviceID     string `json:"deviceId" validate:"required,max=255"`
	IPAddress    string `json:"ipAddress" validate:"max=64"`
}

type userRequest struct {
	UserID string `json:"userId" validate:"required,max=255"`
	Limit  int    `json:"limit" validate:"min=0"`
}

type createSessionResponse struct {
	Success      bool      `json:"success"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Message      string    `json:"message"`
}

type validateSessionResponse struct {
	Valid   bool            `json:"valid"`
	Session *models.Session `json:"session,omitempty"`
	Message string          `json:"message,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Swept   *int64 `json:"swept,omitempty"`
}

type sessionsResponse struct {
	Sessions []*models.Session `json:"sessions"`
}

type historyResponse struct {
	History []*models.LoginHistoryEntry `json:"history"`
}

type SessionHandler struct {
	authority SessionAuthority
	log       *zap.Logger
}

func NewSessionHandler(authority SessionAuthority, log *zap.Logger) *SessionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionHandler{authority: authority, log: log}
}

// Handle dispatches one session-manager call on its "action" field.
func (h *SessionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	h.log.Info("session manager action",
		zap.String("action", req.Action),
		zap.String("user_id", req.UserID),
	)

	switch req.Action {
	case ActionCreateSession:
		h.createSession(w, r, req)
	case ActionValidateSession:
		h.validateSession(w, r, req)
	case ActionLogout:
		h.logout(w, r, req)
	case ActionGetActiveSessions:
		h.getActiveSessions(w, r, req)
	case ActionCleanupExpired:
		h.cleanupExpired(w, r)
	case ActionGetLoginHistory:
		h.getLoginHistory(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, "", "Unknown action")
	}
}

func (h *SessionHandler) createSession(w http.ResponseWriter, r *http.Request, req actionRequest) {
	body := createSessionRequest{
		UserID:    req.UserID,
		DeviceID:  req.DeviceID,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	}
	if !h.valid(w, body) {
		return
	}
	if body.UserAgent == "" {
		body.UserAgent = r.UserAgent()
	}

	resp, err := h.authority.CreateSession(r.Context(), services.CreateSessionRequest{
		UserID:    body.UserID,
		DeviceID:  body.DeviceID,
		UserAgent: body.UserAgent,
		IPAddress: clientIP(r, body.IPAddress),
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createSessionResponse{
		Success:      true,
		SessionToken: resp.SessionToken,
		ExpiresAt:    resp.ExpiresAt.UTC(),
		Message:      "Session created, other devices logged out",
	})
}

func (h *SessionHandler) validateSession(w http.ResponseWriter, r *http.Request, req actionRequest) {
	body := validateSessionRequest{SessionToken: req.SessionToken, DeviceID: req.DeviceID}
	if !h.valid(w, body) {
		return
	}

	result := h.authority.ValidateSession(r.Context(), body.SessionToken, body.DeviceID)
	if !result.Valid {
		writeJSON(w, http.StatusOK, validateSessionResponse{
			Valid:   false,
			Message: "Session invalid or expired",
			Reason:  string(result.Reason),
		})
		return
	}

	writeJSON(w, http.StatusOK, validateSessionResponse{Valid: true, Session: result.Session})
}

func (h *SessionHandler) logout(w http.ResponseWriter, r *http.Request, req actionRequest) {
	body := logoutRequest{
		UserID:       req.UserID,
		SessionToken: req.SessionToken,
		DeviceID:     req.DeviceID,
		IPAddress:    req.IPAddress,
	}
	if !h.valid(w, body) {
		return
	}

	err := h.authority.Logout(r.Context(), services.LogoutRequest{
		UserID:       body.UserID,
		DeviceID:     body.DeviceID,
		SessionToken: body.SessionToken,
		IPAddress:    clientIP(r, body.IPAddress),
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Logged out successfully"})
}

func (h *SessionHandler) getActiveSessions(w http.ResponseWriter, r *http.Request, req actionRequest) {
	body := userRequest{UserID: req.UserID}
	if !h.valid(w, body) {
		return
	}

	sessions, err := h.authority.GetActiveSessions(r.Context(), body.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

func (h *SessionHandler) cleanupExpired(w http.ResponseWriter, r *http.Request) {
	if role, ok := RoleFromContext(r.Context()); ok && role != RoleServiceRole {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "cleanup_expired requires the service role")
		return
	}

	swept, err := h.authority.CleanupExpired(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "Expired sessions cleaned up",
		Swept:   &swept,
	})
}

func (h *SessionHandler) getLoginHistory(w http.ResponseWriter, r *http.Request, req actionRequest) {
	body := userRequest{UserID: req.UserID, Limit: req.Limit}
	if !h.valid(w, body) {
		return
	}

	entries, err := h.authority.LoginHistory(r.Context(), body.UserID, body.Limit)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{History: entries})
}

func (h *SessionHandler) valid(w http.ResponseWriter, body any) bool {
	if err := validateRequest(body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	h.log.Error("session manager action failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "", "Internal server error")
}

// clientIP prefers the address the client reported, then the one chi's
// RealIP middleware resolved into RemoteAddr.
func clientIP(r *http.Request, reported string) string {
	if reported != "" {
		return reported
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
