package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bookHTTP "bookstack/internal/controller/http"
	"bookstack/internal/repo/cache"
	"bookstack/internal/repo/persistent"
	"bookstack/internal/usecase"
	"bookstack/pkg/config"
	"bookstack/pkg/jwt"
	"bookstack/pkg/logger"
	"bookstack/pkg/middleware"
	"bookstack/pkg/queue"
	"bookstack/pkg/s3"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "bookstack/docs" // Swagger docs
)

func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, s3Client *s3.Client, queueClient *queue.Client, redisClient *redis.Client) {
	jwtService := jwt.NewService(
		cfg.JWTAccessSecret,
		cfg.JWTRefreshSecret,
		cfg.JWTAccessExpiration,
		cfg.JWTRefreshExpiration,
	)

	// Initialize repositories
	bookRepo := persistent.NewBookRepository(db)
	userRepo := persistent.NewUserRepository(db)
	tokenRepo := persistent.NewTokenRepository(db)

	// Initialize use cases
	authUseCase := usecase.NewAuthUseCase(userRepo, tokenRepo, jwtService, usecase.AuthConfig{
		BcryptCost:             cfg.BcryptCost,
		PasswordRequireSpecial: cfg.PasswordRequireSpecial,
		BootstrapAdmin:         cfg.BootstrapAdmin,
	}, log)
	userUseCase := usecase.NewUserUseCase(userRepo)

	// A missing broker degrades to no review events, not a dead service.
	var events usecase.EventPublisher
	if queueClient != nil {
		events = queueClient
	}
	listCache := cache.NewBookListCache(redisClient, 5*time.Minute)
	bookUseCase := usecase.NewBookUseCase(bookRepo, s3Client, events, listCache, log)

	// Expired refresh tokens are dead weight in the valid-token table.
	go func() {
		for {
			if err := authUseCase.SweepExpiredTokens(); err != nil {
				log.Error("Failed to sweep expired tokens: %v", err)
			}
			time.Sleep(time.Hour)
		}
	}()

	// Initialize HTTP handlers
	authHandler := bookHTTP.NewAuthHandler(authUseCase, log)
	userHandler := bookHTTP.NewUserHandler(userUseCase, log)
	bookHandler := bookHTTP.NewBookHandler(bookUseCase, log)

	// Setup router
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000", "*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")

	// Public auth endpoints
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Public catalog endpoints. Tokens are optional here: the access rules
	// already know what anonymous readers may see.
	public := api.Group("")
	public.Use(middleware.OptionalAuthMiddleware(jwtService))
	public.Use(bookHTTP.IdentityMiddleware(authUseCase))
	{
		public.GET("/books", bookHandler.ListBooks)
		public.GET("/books/:id", bookHandler.GetBook)
		public.GET("/books/:id/cover", bookHandler.GetCover)
		public.GET("/books/:id/file", bookHandler.GetFile)
	}

	// Authenticated endpoints
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(redisClient, 100, time.Minute))
	protected.Use(bookHTTP.IdentityMiddleware(authUseCase))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/books", bookHandler.CreateBook)
		protected.GET("/books/drafts", bookHandler.ListDrafts)
		protected.GET("/books/pending", bookHandler.ListPending)
		protected.GET("/books/archived", bookHandler.ListArchived)
		protected.PUT("/books/:id", bookHandler.UpdateBook)
		protected.DELETE("/books/:id", bookHandler.DeleteBook)
		protected.POST("/books/:id/submit", bookHandler.SubmitBook)
		protected.POST("/books/:id/approve", bookHandler.ApproveBook)
		protected.POST("/books/:id/reject", bookHandler.RejectBook)
		protected.POST("/books/:id/archive", bookHandler.ArchiveBook)
		protected.POST("/books/:id/unarchive", bookHandler.UnarchiveBook)
		protected.POST("/books/:id/cover", bookHandler.UploadCover)
		protected.POST("/books/:id/file", bookHandler.UploadFile)

		// User administration
		admin := protected.Group("/users")
		admin.Use(bookHTTP.AdminMiddleware())
		{
			admin.GET("", userHandler.ListUsers)
			admin.GET("/:id", userHandler.GetUser)
			admin.PUT("/:id/permissions", userHandler.SetPermissions)
			admin.POST("/:id/reset-tokens", userHandler.ResetTokens)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Book service starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down book service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Close database connection
	sqlDB, err := db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("Error closing database: %v", err)
		}
	}

	// Close Redis connection
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis: %v", err)
		}
	}

	// Close RabbitMQ connection
	if queueClient != nil {
		queueClient.Close()
	}

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
		panic(err)
	}

	log.Info("Book service exited")
}
