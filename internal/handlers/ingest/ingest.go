// internal/handlers/ingest/ingest.go
package ingest

import (
	"net/http"
	"time"

	"salonfunnel-service/internal/pkg/response"
	service "salonfunnel-service/internal/service/ingest"

	"github.com/gin-gonic/gin"
)

type IngestHandler struct {
	ingestor *service.Ingestor
}

func NewIngestHandler(ingestor *service.Ingestor) *IngestHandler {
	return &IngestHandler{
		ingestor: ingestor,
	}
}

// ProcessWindowRequest bounds one replay run. Bounds are inclusive RFC3339
// timestamps; an omitted "to" means now.
type ProcessWindowRequest struct {
	From time.Time `json:"from" binding:"required"`
	To   time.Time `json:"to"`
}

// ProcessWindow replays the raw event logs of one time window through the
// identity pipeline and reports per-event outcomes.
func (h *IngestHandler) ProcessWindow(c *gin.Context) {
	var req ProcessWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if req.To.IsZero() {
		req.To = time.Now()
	}
	if !req.From.Before(req.To) {
		response.Error(c, http.StatusBadRequest, "from must be before to", nil)
		return
	}

	result, err := h.ingestor.Process(c.Request.Context(), req.From, req.To)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to process window", err)
		return
	}

	response.Success(c, http.StatusOK, "window processed", result)
}
