package handler

import (
	"net/http"

	"github.com/Rrens/crm/internal/api/response"
	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	identity    domain.AuthenticationProvider
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, identity domain.AuthenticationProvider) *AuthHandler {
	return &AuthHandler{authService: authService, identity: identity}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input domain.UserCreate
	if !decode(w, r, &input) {
		return
	}

	user, err := h.authService.Register(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, map[string]any{
		"id":    user.ID,
		"email": user.Email,
	})
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.UserLogin
	if !decode(w, r, &input) {
		return
	}

	tokens, err := h.authService.Login(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, tokens)
}

// Refresh handles token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if !decode(w, r, &input) {
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, tokens)
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := h.identity.CurrentUser(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), current.ID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, map[string]any{
		"id":         user.ID,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}
