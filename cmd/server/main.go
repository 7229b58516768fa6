package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
	"github.com/sajib-dev/fixmate/backend/internal/repositories"
	"github.com/sajib-dev/fixmate/backend/internal/router"
	"github.com/sajib-dev/fixmate/backend/pkg/config"
	"github.com/sajib-dev/fixmate/backend/pkg/firebase"
	"github.com/sajib-dev/fixmate/backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Initialize Firebase. Identity falls back to local JWT auth when no
	// credentials file is present.
	ctx := context.Background()
	var firebaseAuth *auth.Client
	var blobs engine.BlobStore
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket)
	if err != nil {
		log.Printf("Firebase unavailable, continuing with local auth only: %v", err)
	} else {
		firebaseAuth = firebaseApp.AuthClient
		if firebaseApp.Bucket != nil {
			blobs = repositories.NewFirebaseBlobStore(firebaseApp.Bucket, cfg.FirebaseStorageBucket)
		}
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	coordinator, err := router.SetupRoutes(e, db.Postgres, db.Mongo.Database(cfg.MongoDatabase), firebaseAuth, blobs)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// Validator
	e.Validator = validators.NewValidator()

	// Start the sync engine before accepting traffic
	if err := coordinator.Start(ctx); err != nil {
		log.Fatalf("Failed to start sync coordinator: %v", err)
	}

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt, then drain: stop the HTTP server first so no new
	// writes arrive, then stop the coordinator's watch loops.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	coordinator.Stop()
	log.Println("Shutdown complete.")
}
