package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/abroadly/abroadly-backend/internal/config"
	"github.com/abroadly/abroadly-backend/internal/domain"
	"github.com/abroadly/abroadly-backend/internal/handler"
	"github.com/abroadly/abroadly-backend/internal/middleware"
	"github.com/abroadly/abroadly-backend/internal/repository"
	"github.com/abroadly/abroadly-backend/internal/service"
	"github.com/abroadly/abroadly-backend/internal/ws"
	pkgjwt "github.com/abroadly/abroadly-backend/pkg/jwt"
	pkglogger "github.com/abroadly/abroadly-backend/pkg/logger"
	pkgredis "github.com/abroadly/abroadly-backend/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.GetLogger().Info().
		Str("env", env).
		Strs("dotenv", dotenvFiles).
		Msg("starting")

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// MySQL
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.GetLogger().Info().Msg("connected to MySQL")

	if err := db.AutoMigrate(&domain.User{}, &domain.Conversation{}, &domain.ChatMessage{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis (optional; the hub degrades to single-instance fan-out)
	redisClient := initRedis(cfg)

	// WebSocket hub
	hub := ws.NewHub(redisClient)
	go hub.Run()
	defer hub.Stop()

	// JWT manager
	jwtManager := pkgjwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiresIn))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	// Services
	chatService := service.NewChatService(convRepo, msgRepo, userRepo, hub)

	// Handlers
	chatHandler := handler.NewChatHandler(chatService)
	gateway := ws.NewGateway(hub, convRepo)
	wsHandler := handler.NewWSHandler(hub, gateway, jwtManager, userRepo, cfg.WS.AllowedOrigins)

	// Router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	allowOrigins := cfg.CORS.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     splitAndTrim(allowOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "abroadly-backend",
			"time":    time.Now().Unix(),
		})
	})

	// WebSocket (token checked at upgrade time, not by JWTAuth, so
	// browser clients can pass it via query parameter)
	router.GET("/ws/chat", wsHandler.Connect)

	// Chat API
	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtManager))
	{
		chat := api.Group("/chat")
		{
			chat.POST("/messages", chatHandler.SendMessage)
			chat.GET("/conversations", chatHandler.GetConversations)
			chat.GET("/conversations/:id/messages", chatHandler.GetMessages)
			chat.GET("/admin/conversations", middleware.RequireAdmin(), chatHandler.GetAdminConversations)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	pkglogger.GetLogger().Info().Str("addr", addr).Msg("listening")
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initDB opens the MySQL connection with a quiet GORM logger
func initDB(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// initRedis connects to Redis when enabled; a failure is a warning,
// not a fatal (single-instance deployments run without it)
func initRedis(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Msg("redis unavailable, continuing without it")
		return nil
	}
	pkglogger.GetLogger().Info().Msg("connected to Redis")
	return client
}

// splitAndTrim splits a comma-separated string and trims whitespace
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
