package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Rrens/crm/internal/api/response"
	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/service"
)

// ClientHandler handles client endpoints of a workspace
type ClientHandler struct {
	clientService *service.ClientService
	identity      domain.AuthenticationProvider
}

// NewClientHandler creates a new client handler
func NewClientHandler(clientService *service.ClientService, identity domain.AuthenticationProvider) *ClientHandler {
	return &ClientHandler{clientService: clientService, identity: identity}
}

// List handles paged client listing. Query: limit, offset, search, deleted.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	q := r.URL.Query()
	var query service.ListQuery
	var err error
	if raw := q.Get("limit"); raw != "" {
		if query.Limit, err = strconv.Atoi(raw); err != nil {
			response.BadRequest(w, "invalid limit")
			return
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if query.Offset, err = strconv.Atoi(raw); err != nil {
			response.BadRequest(w, "invalid offset")
			return
		}
	}
	if raw := q.Get("deleted"); raw != "" {
		if query.OnlyDeleted, err = strconv.ParseBool(raw); err != nil {
			response.BadRequest(w, "invalid deleted flag")
			return
		}
	}
	query.Search = q.Get("search")

	list, err := h.clientService.GetList(r.Context(), userID, workspaceID, query)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, list)
}

// Create handles client creation
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}

	var input domain.ClientCreate
	if !decode(w, r, &input) {
		return
	}

	client, err := h.clientService.Create(r.Context(), userID, workspaceID, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, client)
}

// Get returns a client with its profile
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}
	clientID, ok := uuidParam(w, r, "clientID")
	if !ok {
		return
	}

	client, err := h.clientService.GetDetails(r.Context(), userID, workspaceID, clientID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, client)
}

// Update applies a partial update. Absent keys are kept, nulls clear.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}
	clientID, ok := uuidParam(w, r, "clientID")
	if !ok {
		return
	}

	var input domain.ClientUpdate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	client, err := h.clientService.Update(r.Context(), userID, workspaceID, clientID, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, client)
}

// Delete soft-deletes a client
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}
	clientID, ok := uuidParam(w, r, "clientID")
	if !ok {
		return
	}

	if err := h.clientService.Delete(r.Context(), userID, workspaceID, clientID); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// Restore undoes a soft delete
func (h *ClientHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}
	clientID, ok := uuidParam(w, r, "clientID")
	if !ok {
		return
	}

	client, err := h.clientService.Restore(r.Context(), userID, workspaceID, clientID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, client)
}

// HardDelete permanently removes a client
func (h *ClientHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := caller(w, r, h.identity)
	if !ok {
		return
	}
	clientID, ok := uuidParam(w, r, "clientID")
	if !ok {
		return
	}

	if err := h.clientService.HardDelete(r.Context(), userID, workspaceID, clientID); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}
