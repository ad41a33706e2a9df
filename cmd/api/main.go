package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/config"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/handler"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/middleware"
	pgRepo "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/repository/postgres"
	redisRepo "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/repository/redis"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/service"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/websocket"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/pkg/auth"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/pkg/database"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Путь к файлу конфигурации")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Подключение к PostgreSQL и применение миграций
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	if err := database.MigrateDB(db); err != nil {
		log.Fatalf("Ошибка применения миграций: %v", err)
	}

	// Подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Ошибка подключения к Redis: %v", err)
	}
	defer redisClient.Close()

	// Репозитории
	sessionRepo := pgRepo.NewSessionRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	playerRepo := pgRepo.NewPlayerRepo(db)
	answerRepo := pgRepo.NewAnswerRepo(db)
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Fatalf("Ошибка инициализации CacheRepo: %v", err)
	}

	// Гостевые токены
	tokenService, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Fatalf("Ошибка инициализации TokenService: %v", err)
	}

	// WebSocket-слой
	hub := websocket.NewHub()
	go hub.Run()
	wsManager := websocket.NewManager(hub)

	// Письма с итогами сессий
	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.Enabled {
		resendService, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Fatalf("Ошибка инициализации EmailService: %v", err)
		}
		emailService = resendService
	}

	// Сервисы
	sessionService := service.NewSessionService(sessionRepo, questionRepo, playerRepo, answerRepo, cacheRepo, tokenService, wsManager)
	sessionManager := service.NewSessionManager(sessionRepo, questionRepo, playerRepo, answerRepo, cacheRepo, wsManager, emailService)

	// Обработчики и middleware
	sessionHandler := handler.NewSessionHandler(sessionService, sessionManager, tokenService)
	wsHandler := handler.NewWSHandler(hub, wsManager, tokenService, cfg.CORS.AllowedOrigins)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	if gin.Mode() == gin.ReleaseMode {
		// Production: не доверять прокси-заголовкам
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	allowedOrigins := cfg.CORS.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Маршруты API
	api := router.Group("/api")
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.POST("/join", authMiddleware.OptionalAuth(), sessionHandler.JoinSession)

			byID := sessions.Group("/:id")
			byID.Use(middleware.ExtractUintParam("id", "sessionID"))
			{
				byID.GET("", authMiddleware.OptionalAuth(), sessionHandler.GetSession)
				byID.GET("/snapshot", authMiddleware.OptionalAuth(), sessionHandler.GetSnapshot)
				byID.GET("/leaderboard", sessionHandler.GetLeaderboard)
				byID.GET("/leaderboard/export", sessionHandler.ExportLeaderboard)

				authed := byID.Group("")
				authed.Use(authMiddleware.RequireAuth())
				{
					authed.POST("/questions", sessionHandler.AddQuestions)
					authed.POST("/questions/import", sessionHandler.ImportQuestions)
					authed.POST("/start", sessionHandler.StartSession)
					authed.POST("/answers", sessionHandler.SubmitAnswer)
					authed.POST("/advance", sessionHandler.AdvanceSession)
					authed.POST("/advance-fallback", sessionHandler.AdvanceFallback)
					authed.POST("/end", sessionHandler.EndSession)
				}
			}
		}

		api.POST("/ws-ticket", authMiddleware.RequireAuth(), sessionHandler.WSTicket)
	}

	router.GET("/ws", wsHandler.HandleConnection)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	sessionManager.Shutdown()
	hub.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
