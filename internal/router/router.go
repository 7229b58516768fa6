package router

import (
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
	"github.com/sajib-dev/fixmate/backend/internal/handlers"
	"github.com/sajib-dev/fixmate/backend/internal/middleware"
	"github.com/sajib-dev/fixmate/backend/internal/models"
	"github.com/sajib-dev/fixmate/backend/internal/repositories"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies.
// The returned coordinator is already constructed but not started; the
// caller owns its lifecycle.
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgdb *mongo.Database, firebaseAuthClient *auth.Client, blobs engine.BlobStore) (*engine.SyncCoordinator, error) {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.BidNotification{},
		&models.JobNotification{},
	)
	if err != nil {
		return nil, err
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize repositories and the sync engine ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	archive := repositories.NewPostgresNotificationArchive(pgdb)
	store := repositories.NewMongoDocumentStore(mgdb)
	coordinator := engine.NewSyncCoordinator(store, archive)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, firebaseAuthClient)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterProfileRoutes(api)
	log.Println("User profile routes configured.")

	// Job routes
	jobHandler := handlers.NewJobHandler(coordinator, blobs)
	jobHandler.RegisterJobRoutes(api)
	log.Println("Job routes configured.")

	// Bid routes
	bidHandler := handlers.NewBidHandler(coordinator)
	bidHandler.RegisterBidRoutes(api)
	log.Println("Bid routes configured.")

	// Chat routes
	chatHandler := handlers.NewChatHandler(coordinator, userRepo)
	chatHandler.RegisterChatRoutes(api)
	log.Println("Chat routes configured.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(coordinator)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	// Mobile clients send Firebase ID tokens directly instead of exchanging
	// them for a local JWT.
	if firebaseAuthClient != nil {
		mobile := e.Group("/api/v1/mobile")
		mobile.Use(middleware.FirebaseAuthMiddleware(firebaseAuthClient))
		userHandler.RegisterProfileRoutes(mobile)
		jobHandler.RegisterJobRoutes(mobile)
		bidHandler.RegisterBidRoutes(mobile)
		chatHandler.RegisterChatRoutes(mobile)
		notificationHandler.RegisterNotificationRoutes(mobile)
		log.Println("Firebase-authenticated mobile routes configured.")
	}

	log.Println("All routes configured.")
	return coordinator, nil
}
