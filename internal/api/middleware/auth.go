package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Rrens/crm/internal/api/response"
	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserKey        contextKey = "user"
	WorkspaceIDKey contextKey = "workspaceID"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *security.JWTManager
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *security.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// Authenticate validates the bearer token and stores the caller's identity
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			response.Unauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		ctx := WithUser(r.Context(), &domain.AuthenticatedUser{ID: claims.UserID, Email: claims.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUser attaches an authenticated identity to ctx.
func WithUser(ctx context.Context, user *domain.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// ContextIdentity implements domain.AuthenticationProvider over the request context.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUser(ctx context.Context) (*domain.AuthenticatedUser, bool) {
	user, ok := ctx.Value(UserKey).(*domain.AuthenticatedUser)
	return user, ok && user != nil
}

// GetUserID gets the user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	user, ok := ContextIdentity{}.CurrentUser(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return user.ID, true
}

// GetWorkspaceID gets the workspace ID from context
func GetWorkspaceID(ctx context.Context) (uuid.UUID, bool) {
	workspaceID, ok := ctx.Value(WorkspaceIDKey).(uuid.UUID)
	return workspaceID, ok
}

// WorkspaceContext extracts workspace ID from URL and adds to context
func WorkspaceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceIDStr := chi.URLParam(r, "workspaceID")
		if workspaceIDStr == "" {
			response.BadRequest(w, "missing workspace ID")
			return
		}

		workspaceID, err := uuid.Parse(workspaceIDStr)
		if err != nil {
			response.BadRequest(w, "invalid workspace ID")
			return
		}

		ctx := context.WithValue(r.Context(), WorkspaceIDKey, workspaceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
