package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/handler/dto"
	"github.com/gatehouse/gatehouse/internal/service"
)

// AuthHandler handles the account lifecycle and session endpoints.
type AuthHandler struct {
	service *service.AccountService
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  logger,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "EMAIL_TAKEN", "Email already registered")
	case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, service.ErrEmailDelivery):
		// The account and its activation token were created and kept.
		writeError(w, http.StatusInternalServerError, "EMAIL_DELIVERY_FAILED",
			"Failed to send activation email. Please try again later.")
	default:
		h.logger.Error("registration failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register")
	}
}

// Activate handles POST /auth/activate.
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req dto.ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	err := h.service.Activate(r.Context(), req.Token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Account activated successfully"})
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusBadRequest, "INVALID_OR_EXPIRED_TOKEN", "Invalid or expired activation token")
	default:
		h.logger.Error("activation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to activate account")
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.TokenResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			TokenType:    pair.TokenType,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect email or password")
	case errors.Is(err, service.ErrNotActivated):
		writeError(w, http.StatusBadRequest, "ACCOUNT_NOT_ACTIVATED",
			"Account not activated. Please check your email for the activation link.")
	default:
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log in")
	}
}

// Logout handles POST /auth/logout.
// It always responds 204: revoking an unknown or already-revoked token is a
// silent no-op so the endpoint leaks nothing about token validity.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	// Best-effort decode; a malformed body is treated as an empty token.
	_ = json.NewDecoder(r.Body).Decode(&req)

	_ = h.service.Logout(r.Context(), req.RefreshToken)

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me. Requires the bearer-token middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	user, err := h.service.Me(r.Context(), userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	default:
		h.logger.Error("profile lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profile")
	}
}
