package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"ticketera/internal/config"
	"ticketera/internal/database"
	"ticketera/internal/external"
	"ticketera/internal/handlers"
	"ticketera/internal/messaging"
	"ticketera/internal/metrics"
	"ticketera/internal/middleware"
	"ticketera/internal/service"
	"ticketera/internal/storage"

	"github.com/gin-gonic/gin"
)

// Server представляет локальный HTTP API валидатора
type Server struct {
	router    *gin.Engine
	config    *config.Config
	db        *database.DB
	store     storage.Store
	session   *storage.Service
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	services  *service.Services
}

// Dependencies - внешние зависимости сервера
type Dependencies struct {
	Backend   service.Backend
	Store     storage.Store
	Sealer    *storage.Sealer
	Publisher messaging.Publisher
	DB        *database.DB
	Metrics   *metrics.Metrics
}

// NewServer подключает хранилище, NATS и базу данных согласно конфигурации
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	deps := Dependencies{
		Backend: external.NewBackendClient(cfg.Backend),
		Metrics: metrics.New(),
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	deps.Store = store

	if cfg.Storage.SealKey != "" {
		sealer, err := storage.NewSealer(cfg.Storage.SealKey, cfg.Storage.Valkey.DeviceID)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create token sealer: %w", err)
		}
		deps.Sealer = sealer
	}

	publisher, err := messaging.NewPublisher(cfg.NATS)
	if err != nil {
		store.Close()
		return nil, err
	}
	deps.Publisher = publisher

	if cfg.DatabaseEnabled {
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			publisher.Close()
			store.Close()
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			publisher.Close()
			store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		deps.DB = db
	}

	return New(cfg, deps), nil
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "valkey":
		return storage.NewValkeyStore(cfg.Valkey)
	default:
		return storage.NewMemoryStore(), nil
	}
}

// New собирает сервер из готовых зависимостей
func New(cfg *config.Config, deps Dependencies) *Server {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	if deps.Publisher == nil {
		deps.Publisher = messaging.NoopPublisher{}
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemoryStore()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	session := storage.NewService(deps.Store, deps.Sealer)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		router:    router,
		config:    cfg,
		db:        deps.DB,
		store:     deps.Store,
		session:   session,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		services:  service.NewServices(deps.Backend, session, deps.Publisher, deps.Metrics),
	}

	server.setupRoutes()

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	api := s.router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", h.Login)
			auth.POST("/logout", h.Logout)
			auth.GET("/me", middleware.RequireSession(s.session), h.Me)
		}

		// Остальные роуты требуют сохраненной сессии валидатора
		events := api.Group("/events", middleware.RequireSession(s.session))
		{
			events.GET("", h.ListEvents)
			events.GET("/selected", h.SelectedEvent)
			events.PUT("/selected", h.SelectEvent)
		}

		validation := api.Group("/validation")
		{
			// Полный QR-код читается и без входа
			validation.POST("/scan", h.Scan)
			validation.GET("", h.CurrentSale)
			validation.DELETE("", h.ClearSale)

			protected := validation.Group("", middleware.RequireSession(s.session))
			protected.POST("/refresh", h.RefreshSale)
			protected.POST("/checkin", h.CheckIn)
			protected.POST("/products/redeem", h.RedeemProducts)
			protected.POST("/activities/redeem", h.RedeemActivities)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	response := gin.H{
		"status":        "ok",
		"service":       "ticketera-api",
		"version":       "1.0.0",
		"loggedIn":      s.session.IsLoggedIn(ctx),
		"activeSession": s.services.Flow.Active(),
	}

	if pinger, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			slog.Error("Storage health check failed", "error", err)
			response["storage"] = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			response["storage"] = "healthy"
		}
	}

	if s.db != nil {
		health := s.db.HealthCheck(ctx)
		response["database"] = health
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
	}

	if status != http.StatusOK {
		response["status"] = "degraded"
	}
	c.JSON(status, response)
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// Services возвращает сервисы валидации
func (s *Server) Services() *service.Services {
	return s.services
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("Error closing session store", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
