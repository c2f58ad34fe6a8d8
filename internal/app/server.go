// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"salonfunnel-service/internal/booking"
	"salonfunnel-service/internal/config"
	"salonfunnel-service/internal/db"
	clientHandler "salonfunnel-service/internal/handlers/client"
	ingestHandler "salonfunnel-service/internal/handlers/ingest"
	statusHandler "salonfunnel-service/internal/handlers/status"
	"salonfunnel-service/internal/middleware"
	"salonfunnel-service/internal/pkg/cache"
	"salonfunnel-service/internal/repository/postgres"
	clientsvc "salonfunnel-service/internal/service/client"
	"salonfunnel-service/internal/service/identity"
	ingestsvc "salonfunnel-service/internal/service/ingest"
	statussvc "salonfunnel-service/internal/service/status"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB()
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- Repositories -----
	clientRepo := postgres.NewClientRepository(pool)
	historyRepo := postgres.NewStateHistoryRepository(pool)
	eventLogRepo := postgres.NewEventLogRepository(pool)
	statusRepo := postgres.NewStatusRepository(pool)

	// ----- Redis-backed cache (leases + avatars) -----
	cacheStore := cache.NewCache(redisClient)

	// ----- Booking system client -----
	bookingClient := booking.NewClient(s.cfg.BookingAPIBaseURL, s.cfg.BookingAPIToken, logger)

	// ----- Services -----
	resolver := identity.NewResolver(clientRepo, logger)
	mergeEngine := identity.NewMergeEngine(clientRepo, historyRepo, cacheStore, logger)
	clientService := clientsvc.NewService(clientRepo, historyRepo, mergeEngine, bookingClient, cacheStore, logger)
	statusService := statussvc.NewService(statusRepo, logger)
	ingestor := ingestsvc.NewIngestor(eventLogRepo, resolver, mergeEngine, clientService, historyRepo, bookingClient, logger)

	// ----- Handlers -----
	clientHandlerInst := clientHandler.NewClientHandler(clientService)
	statusHandlerInst := statusHandler.NewStatusHandler(statusService)
	ingestHandlerInst := ingestHandler.NewIngestHandler(ingestor)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		ClientHandler: clientHandlerInst,
		StatusHandler: statusHandlerInst,
		IngestHandler: ingestHandlerInst,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("Server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
