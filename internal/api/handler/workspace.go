package handler

import (
	"net/http"
	"strconv"

	"github.com/Rrens/crm/internal/api/response"
	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/service"
	"github.com/go-chi/chi/v5"
)

// WorkspaceHandler handles workspace endpoints
type WorkspaceHandler struct {
	workspaceService *service.WorkspaceService
	activityService  *service.ActivityService
	identity         domain.AuthenticationProvider
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(
	workspaceService *service.WorkspaceService,
	activityService *service.ActivityService,
	identity domain.AuthenticationProvider,
) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService: workspaceService,
		activityService:  activityService,
		identity:         identity,
	}
}

// Create handles workspace creation
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.identity.CurrentUser(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.WorkspaceCreate
	if !decode(w, r, &input) {
		return
	}

	workspace, err := h.workspaceService.Create(r.Context(), user.ID, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, workspace)
}

// List handles listing user's workspaces
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.identity.CurrentUser(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	workspaces, err := h.workspaceService.ListByUser(r.Context(), user.ID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, workspaces)
}

// GetBySlug resolves a workspace by its slug
func (h *WorkspaceHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	user, ok := h.identity.CurrentUser(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	workspace, err := h.workspaceService.GetBySlug(r.Context(), user.ID, chi.URLParam(r, "slug"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, workspace)
}

// Get handles getting a workspace by ID
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	workspace, err := h.workspaceService.GetByID(r.Context(), userID, workspaceID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, workspace)
}

// Update handles updating a workspace
func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	var input domain.WorkspaceUpdate
	if !decode(w, r, &input) {
		return
	}

	workspace, err := h.workspaceService.Update(r.Context(), userID, workspaceID, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, workspace)
}

// Delete soft-deletes a workspace
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	if err := h.workspaceService.SoftDelete(r.Context(), userID, workspaceID); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// Restore undoes a soft delete
func (h *WorkspaceHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	workspace, err := h.workspaceService.Restore(r.Context(), userID, workspaceID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, workspace)
}

// HardDelete permanently removes a workspace and everything in it
func (h *WorkspaceHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	if err := h.workspaceService.HardDelete(r.Context(), userID, workspaceID); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// ListMembers lists the memberships of a workspace
func (h *WorkspaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	members, err := h.workspaceService.ListMembers(r.Context(), userID, workspaceID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, members)
}

// InviteMember invites an existing user into the workspace
func (h *WorkspaceHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	var input domain.MemberInvite
	if !decode(w, r, &input) {
		return
	}

	member, err := h.workspaceService.InviteMember(r.Context(), userID, workspaceID, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, member)
}

// AcceptInvite activates the caller's pending membership
func (h *WorkspaceHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	member, err := h.workspaceService.AcceptInvite(r.Context(), userID, workspaceID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, member)
}

// UpdateMember changes the role or status of a member
func (h *WorkspaceHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}
	memberID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}

	var input domain.MemberRoleUpdate
	if !decode(w, r, &input) {
		return
	}

	member, err := h.workspaceService.ChangeMemberRole(r.Context(), userID, workspaceID, memberID, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, member)
}

// RemoveMember removes a member from the workspace
func (h *WorkspaceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}
	memberID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}

	if err := h.workspaceService.RemoveMember(r.Context(), userID, workspaceID, memberID); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// Activity returns the recent change feed of the workspace
func (h *WorkspaceHandler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.activityService.Recent(r.Context(), userID, workspaceID, limit)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, events)
}
