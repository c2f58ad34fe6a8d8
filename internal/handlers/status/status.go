// internal/handlers/status/status.go
package status

import (
	"errors"
	"net/http"
	"strconv"

	domain "salonfunnel-service/internal/domain/status"
	xerrors "salonfunnel-service/internal/pkg/errors"
	"salonfunnel-service/internal/pkg/response"
	service "salonfunnel-service/internal/service/status"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	statusService *service.Service
}

func NewStatusHandler(statusService *service.Service) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
	}
}

// CreateStatus creates a work-queue label.
func (h *StatusHandler) CreateStatus(c *gin.Context) {
	var req domain.CreateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.statusService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, statusFor(err), "failed to create status", err)
		return
	}

	response.Success(c, http.StatusCreated, "status created successfully", result)
}

// ListStatuses returns all labels in display order.
func (h *StatusHandler) ListStatuses(c *gin.Context) {
	result, err := h.statusService.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list statuses", err)
		return
	}

	response.Success(c, http.StatusOK, "statuses retrieved", result)
}

// UpdateStatus applies label changes.
func (h *StatusHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid status ID", err)
		return
	}

	var req domain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.statusService.Update(c.Request.Context(), id, &req)
	if err != nil {
		response.Error(c, statusFor(err), "failed to update status", err)
		return
	}

	response.Success(c, http.StatusOK, "status updated successfully", result)
}

// DeleteStatus removes a label.
func (h *StatusHandler) DeleteStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid status ID", err)
		return
	}

	if err := h.statusService.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, statusFor(err), "failed to delete status", err)
		return
	}

	response.Success(c, http.StatusOK, "status deleted successfully", nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
