// internal/app/router.go
package app

import (
	clientHandler "salonfunnel-service/internal/handlers/client"
	ingestHandler "salonfunnel-service/internal/handlers/ingest"
	statusHandler "salonfunnel-service/internal/handlers/status"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	ClientHandler *clientHandler.ClientHandler
	StatusHandler *statusHandler.StatusHandler
	IngestHandler *ingestHandler.IngestHandler
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Clients ====================
	clients := api.Group("/clients")
	{
		clients.GET("", h.ClientHandler.ListClients)
		clients.GET("/:id", h.ClientHandler.GetClient)
		clients.GET("/:id/history", h.ClientHandler.GetStateHistory)
		clients.POST("", h.ClientHandler.CreateClient)
		clients.PUT("/:id", h.ClientHandler.UpdateClient)
	}

	// ==================== Statuses ====================
	statuses := api.Group("/statuses")
	{
		statuses.GET("", h.StatusHandler.ListStatuses)
		statuses.POST("", h.StatusHandler.CreateStatus)
		statuses.PUT("/:id", h.StatusHandler.UpdateStatus)
		statuses.DELETE("/:id", h.StatusHandler.DeleteStatus)
	}

	// ==================== Ingest ====================
	ingest := api.Group("/ingest")
	{
		ingest.POST("/process", h.IngestHandler.ProcessWindow)
	}
}
