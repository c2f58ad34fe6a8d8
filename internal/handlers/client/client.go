// internal/handlers/client/client.go
package client

import (
	"errors"
	"net/http"
	"strconv"

	domain "salonfunnel-service/internal/domain/client"
	xerrors "salonfunnel-service/internal/pkg/errors"
	"salonfunnel-service/internal/pkg/response"
	service "salonfunnel-service/internal/service/client"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	clientService *service.Service
}

func NewClientHandler(clientService *service.Service) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
	}
}

// SaveClientRequest is the manual upsert payload. The patch carries only the
// fields the operator actually changed.
type SaveClientRequest struct {
	Patch    domain.ClientPatch     `json:"patch"`
	Reason   string                 `json:"reason"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	// TouchActivity defaults to true; admin corrections pass false so the
	// record does not jump in the activity-sorted list.
	TouchActivity *bool `json:"touch_activity,omitempty"`
}

// CreateClient creates a new record from a patch.
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req SaveClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.clientService.Save(c.Request.Context(), "", &req.Patch, reasonOrDefault(req.Reason, "manual-create"), req.Metadata, saveOptions(&req))
	if err != nil {
		response.Error(c, statusFor(err), "failed to create client", err)
		return
	}

	response.Success(c, http.StatusCreated, "client created successfully", result)
}

// UpdateClient applies a patch to an existing record.
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	clientID := c.Param("id")
	if clientID == "" {
		response.Error(c, http.StatusBadRequest, "client ID is required", nil)
		return
	}

	var req SaveClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.clientService.Save(c.Request.Context(), clientID, &req.Patch, reasonOrDefault(req.Reason, "manual-update"), req.Metadata, saveOptions(&req))
	if err != nil {
		response.Error(c, statusFor(err), "failed to update client", err)
		return
	}

	response.Success(c, http.StatusOK, "client updated successfully", result)
}

// GetClient retrieves a record by ID.
func (h *ClientHandler) GetClient(c *gin.Context) {
	clientID := c.Param("id")
	if clientID == "" {
		response.Error(c, http.StatusBadRequest, "client ID is required", nil)
		return
	}

	result, err := h.clientService.Get(c.Request.Context(), clientID)
	if err != nil {
		response.Error(c, statusFor(err), "client not found", err)
		return
	}

	response.Success(c, http.StatusOK, "client retrieved", result)
}

// ListClients retrieves records, most recently active first when
// sort=activity is passed.
func (h *ClientHandler) ListClients(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid limit", err)
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		response.Error(c, http.StatusBadRequest, "invalid offset", err)
		return
	}
	sortByActivity := c.DefaultQuery("sort", "activity") == "activity"

	result, err := h.clientService.List(c.Request.Context(), sortByActivity, limit, offset)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list clients", err)
		return
	}

	response.Success(c, http.StatusOK, "clients retrieved", result)
}

// GetStateHistory returns the lifecycle ledger for one client, newest first.
func (h *ClientHandler) GetStateHistory(c *gin.Context) {
	clientID := c.Param("id")
	if clientID == "" {
		response.Error(c, http.StatusBadRequest, "client ID is required", nil)
		return
	}

	result, err := h.clientService.GetStateHistory(c.Request.Context(), clientID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to retrieve state history", err)
		return
	}

	response.Success(c, http.StatusOK, "state history retrieved", result)
}

func saveOptions(req *SaveClientRequest) domain.SaveOptions {
	opts := domain.DefaultSaveOptions()
	if req.TouchActivity != nil {
		opts.TouchActivity = *req.TouchActivity
	}
	return opts
}

func reasonOrDefault(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
