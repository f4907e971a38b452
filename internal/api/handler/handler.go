package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/crm/internal/api/middleware"
	"github.com/Rrens/crm/internal/api/response"
	"github.com/Rrens/crm/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// decode reads a JSON body into v and runs struct validation. It writes the
// error response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(v); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			response.BadRequest(w, fieldErrors(validationErrors))
			return false
		}
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}

func fieldErrors(validationErrors validator.ValidationErrors) map[string]string {
	errs := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		tag := e.Tag()
		switch tag {
		case "required":
			errs[field] = "field is required"
		case "email":
			errs[field] = "invalid email format"
		case "min":
			errs[field] = "must be at least " + e.Param() + " characters"
		case "max":
			errs[field] = "must be at most " + e.Param() + " characters"
		case "oneof":
			errs[field] = "must be one of: " + e.Param()
		default:
			errs[field] = "validation failed on " + tag
		}
	}
	return errs
}

// caller resolves the authenticated user and the workspace of the route.
func caller(w http.ResponseWriter, r *http.Request, identity domain.AuthenticationProvider) (userID, workspaceID uuid.UUID, ok bool) {
	user, ok := identity.CurrentUser(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	workspaceID, ok = middleware.GetWorkspaceID(r.Context())
	if !ok {
		response.BadRequest(w, "missing workspace ID")
		return uuid.Nil, uuid.Nil, false
	}
	return user.ID, workspaceID, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
