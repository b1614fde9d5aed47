package main

// @title           Chat App API
// @version         1.0
// @description     Direct-messaging chat service with real-time delivery
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"chat-app/internal/config"
	"chat-app/internal/database"
	"chat-app/internal/events"
	"chat-app/internal/repository"
	"chat-app/internal/server"
	"chat-app/internal/server/handlers"
	"chat-app/internal/service"
	"chat-app/internal/ws"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting chat server")

	db, err := database.NewPostgresConnection(cfg.Database.URI)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	mongoDB, err := database.NewMongoConnection(cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		slog.Error("failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	defer mongoDB.Close(context.Background())

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = database.NewRedisConnection(cfg.Redis.URL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	var uploader service.ImageUploader
	if cfg.Minio.Enabled {
		minioClient, err := database.NewMinIOClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket)
		if err != nil {
			slog.Error("failed to connect to minio", "error", err)
			os.Exit(1)
		}
		uploader = minioClient
	}

	var publisher service.MessagePublisher
	if cfg.Kafka.Enabled {
		producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer
	}

	hub := ws.NewHub(redisClient)
	go hub.Run()

	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(mongoDB.DB)

	authService := service.NewAuthService(userRepo, redisClient, uploader, cfg.JWT.Secret, cfg.JWT.Expire)
	messageService := service.NewMessageService(messageRepo, userRepo, uploader, publisher, hub)

	router := gin.Default()
	server.SetupRoutes(
		router,
		cfg.JWT.Secret,
		handlers.NewAuthHandler(authService, hub),
		handlers.NewMessageHandler(messageService),
		handlers.NewWSHandler(hub),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}
