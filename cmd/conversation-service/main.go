package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"supportdesk-backend/internal/database"
	agentHandler "supportdesk-backend/internal/handler/http/agent"
	conversationHandler "supportdesk-backend/internal/handler/http/conversation"
	wsHandler "supportdesk-backend/internal/handler/ws"
	"supportdesk-backend/internal/middleware"
	postgresRepo "supportdesk-backend/internal/repository/postgres"
	redisRepo "supportdesk-backend/internal/repository/redis"
	"supportdesk-backend/internal/scheduler"
	assignmentService "supportdesk-backend/internal/service/assignment"
	conversationService "supportdesk-backend/internal/service/conversation"
	"supportdesk-backend/pkg/constants"
	"supportdesk-backend/pkg/env"
	"supportdesk-backend/pkg/jwt"
	"supportdesk-backend/pkg/logger"
	"supportdesk-backend/pkg/metrics"
)

func main() {
	// 1. Setup structured logging
	logger.InitDefault()
	defer logger.Sync()

	// 2. Setup JWT Manager
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}

	jwtManager := jwt.NewJWTManager(jwtSecret, constants.AccessTokenExpiry, constants.RefreshTokenExpiry)

	// Initialize Redis metrics before connecting to Redis
	database.InitRedisMetrics()

	// 3. Connect to Redis with degraded mode support
	redisConfig := &database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	}

	redisDB, err := database.NewRedisDB(redisConfig)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisDB.Close()

	log.Println("✅ Connected to Redis")

	// Start background Redis health check
	redisDB.StartHealthCheck(context.Background(), 10*time.Second)
	log.Println("✅ Redis health check started (10s interval)")

	// 4. Connect to Postgres (archive store)
	postgresConfig := &database.PostgresConfig{
		Host:     env.GetString("POSTGRES_HOST", "localhost"),
		Port:     env.GetInt("POSTGRES_PORT", 5432),
		User:     env.GetString("POSTGRES_USER", "supportdesk"),
		Password: env.GetStringFromFile("POSTGRES_PASSWORD", ""),
		Database: env.GetString("POSTGRES_DATABASE", "supportdesk_db"),
		SSLMode:  env.GetString("POSTGRES_SSLMODE", "disable"),
	}

	postgresDB, err := database.NewPostgresDB(context.Background(), postgresConfig)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgresDB.Close()

	log.Println("✅ Connected to Postgres")

	// 5. Initialize Repositories
	liveRepo := redisRepo.NewLiveConversationRepository(redisDB)
	presenceRepo := redisRepo.NewAgentPresenceRepository(redisDB)
	archiveRepo := postgresRepo.NewConversationArchiveRepository(postgresDB.Pool)

	// 6. Initialize Services
	assignmentSvc := assignmentService.NewService(presenceRepo, logger.Log)
	conversationSvc := conversationService.NewService(liveRepo, archiveRepo, logger.Log)

	// 7. Initialize Metrics
	appMetrics := metrics.NewMetrics("conversation-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// Seed the live-conversation gauge; the flush passes keep it current
	if count, err := liveRepo.Count(context.Background()); err == nil {
		appMetrics.SetLiveConversations(count)
	}

	// 8. Initialize Handlers
	conversationHdlr := conversationHandler.NewHandler(conversationSvc, assignmentSvc, appMetrics)
	agentHdlr := agentHandler.NewHandler(presenceRepo, assignmentSvc, appMetrics)

	// 9. Initialize WebSocket Hub
	chatHub := wsHandler.NewChatHub(conversationSvc, appMetrics, logger.Log)

	// 10. Optionally host the idle-flush scheduler in-process. Deployments
	// that run the flush-job binary on a cron leave this disabled.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()

	if env.GetBool("FLUSH_SCHEDULER_ENABLED", false) {
		flushScheduler := scheduler.NewScheduler(
			liveRepo,
			archiveRepo,
			env.GetDuration("FLUSH_IDLE_THRESHOLD", constants.CacheIdleThreshold),
			env.GetDuration("FLUSH_INTERVAL", constants.FlushInterval),
			appMetrics,
			logger.Log,
		)
		flushScheduler.Start(schedulerCtx)
	}

	// 11. Setup Gin Router
	router := gin.New()

	trustedProxies := []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
	}
	router.SetTrustedProxies(trustedProxies)

	// Apply global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())
	router.Use(middleware.NewTimeoutMiddleware(nil).Middleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":         "healthy",
			"service":        "conversation-service",
			"redis_degraded": redisDB.IsDegraded(),
			"time":           time.Now().UTC(),
		})
	})

	// Metrics endpoint (for Prometheus scraping)
	router.GET("/metrics", middleware.MetricsHandler())

	// Routes (all require authentication)
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtManager))
	{
		// Conversation endpoints
		v1.POST("/conversations", conversationHdlr.CreateConversation)
		v1.GET("/conversations/:id", conversationHdlr.GetConversation)
		v1.POST("/conversations/:id/messages", conversationHdlr.AppendMessage)
		v1.PATCH("/conversations/:id/status", conversationHdlr.ChangeStatus)
		v1.POST("/conversations/:id/feedback", conversationHdlr.SubmitFeedback)

		// Hand-off and flush require staff roles
		v1.POST("/conversations/:id/handoff",
			middleware.RequireRole(constants.RoleAgent, constants.RoleAdmin),
			conversationHdlr.HandOff)
		v1.POST("/conversations/:id/flush",
			middleware.RequireRole(constants.RoleAdmin),
			conversationHdlr.Flush)

		// Agent presence endpoints
		agents := v1.Group("/agents")
		agents.GET("/online", agentHdlr.ListOnline)
		agents.Use(middleware.RequireRole(constants.RoleAgent, constants.RoleAdmin))
		{
			agents.POST("/online", agentHdlr.GoOnline)
			agents.POST("/offline", agentHdlr.GoOffline)
			agents.POST("/heartbeat", agentHdlr.Heartbeat)
		}

		// WebSocket endpoint (real-time chat)
		v1.GET("/ws/chat", chatHub.ServeWS)
	}

	// 12. Start server
	port := env.GetString("PORT", "8083")
	addr := fmt.Sprintf(":%s", port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Conversation Service starting on port %s\n", port)
		log.Println("📡 WebSocket endpoint: /v1/ws/chat")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 13. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
