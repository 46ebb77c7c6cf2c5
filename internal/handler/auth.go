package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/handler/dto"
	"github.com/fxgate/fxgate/internal/service"
)

// AuthHandler handles signup, login and account endpoints.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.PlanID == nil {
		writeServiceError(w, r, h.logger, &service.ValidationError{Field: "plan_id", Message: "plan_id is required"})
		return
	}

	user, err := h.svc.Register(r.Context(), req.Email, req.Password, *req.PlanID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	token, err := h.svc.IssueToken(user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToTokenResponse(user, token))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	token, err := h.svc.IssueToken(user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTokenResponse(user, token))
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.MustCallerFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// MyRequests handles GET /auth/me/requests.
func (h *AuthHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	user := auth.MustCallerFromContext(r.Context())

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeServiceError(w, r, h.logger, &service.ValidationError{Field: "limit", Message: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	logs, err := h.svc.RecentRequests(r.Context(), user.ID, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRequestLogList(logs))
}
