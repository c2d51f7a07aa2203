package main

import (
	"bookstack/internal/app"
	"bookstack/pkg/cache"
	"bookstack/pkg/config"
	"bookstack/pkg/database"
	"bookstack/pkg/logger"
	"bookstack/pkg/queue"
	"bookstack/pkg/s3"
)

// @title           BookStack API
// @version         1.0
// @description     Book catalog service with a review workflow, tag search and permission-based access control

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if cfg.JWTAccessSecret == "access-secret-change-in-production" ||
		cfg.JWTRefreshSecret == "refresh-secret-change-in-production" {
		panic("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set in environment variables")
	}

	log := logger.New()

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	// Migrations are handled by goose - see cmd/migrate/main.go

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to redis: %v", err)
		panic(err)
	}

	s3Client, err := s3.NewClient(cfg)
	if err != nil {
		log.Error("Failed to create S3 client: %v", err)
		panic(err)
	}

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Error("Failed to connect to RabbitMQ: %v", err)
		queueClient = nil
	}

	app.Run(cfg, log, db, s3Client, queueClient, redisClient)
}
