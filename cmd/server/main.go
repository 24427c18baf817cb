package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mtahub/backend/internal/catalog"
	"github.com/mtahub/backend/internal/config"
	"github.com/mtahub/backend/internal/database"
	"github.com/mtahub/backend/internal/favorites"
	"github.com/mtahub/backend/internal/handlers"
	"github.com/mtahub/backend/internal/middleware"
	"github.com/mtahub/backend/internal/services"
	"github.com/mtahub/backend/internal/storage"
	"github.com/mtahub/backend/pkg/logger"
	"github.com/mtahub/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	ledger, err := favorites.Open(cfg.Favorites.Path)
	if err != nil {
		log.Fatalf("favorites ledger failed to open: %v", err)
	}
	defer ledger.Close()

	cache := catalog.NewCache(db)
	if err := cache.Load(context.Background()); err != nil {
		log.Fatalf("failed loading catalog: %v", err)
	}
	logger.Info("catalog_loaded", map[string]interface{}{"uploads": cache.Len()})

	googleAuth := services.NewGoogleAuthService(cfg.Google)
	assistant := services.NewAssistantService(cfg.Assistant)

	authHandler := handlers.NewAuthHandler(db, cfg, googleAuth)
	uploadsHandler := handlers.NewUploadsHandler(db, cache, ledger, storageClient)
	favoritesHandler := handlers.NewFavoritesHandler(cache, ledger)
	adminHandler := handlers.NewAdminHandler(db, cache)
	assistantHandler := handlers.NewAssistantHandler(assistant)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/google", authHandler.GoogleLogin)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)

	uploadRoutes := api.Group("/uploads")
	uploadRoutes.Get("/", authMiddleware.OptionalAuth, uploadsHandler.Browse)
	uploadRoutes.Get("/recent", uploadsHandler.Recent)
	uploadRoutes.Get("/stats", uploadsHandler.Stats)
	uploadRoutes.Get("/mine", authMiddleware.RequireAuth, uploadsHandler.Mine)
	uploadRoutes.Post("/", authMiddleware.RequireAuth, uploadsHandler.Create)
	uploadRoutes.Get("/:id", uploadsHandler.Get)
	uploadRoutes.Post("/:id/artifact", authMiddleware.RequireAuth, uploadsHandler.AttachArtifact)
	uploadRoutes.Post("/:id/download", authMiddleware.OptionalAuth, uploadsHandler.Download)
	uploadRoutes.Delete("/:id", authMiddleware.RequireAuth, uploadsHandler.Delete)

	favoriteRoutes := api.Group("/favorites", authMiddleware.RequireAuth)
	favoriteRoutes.Get("/", favoritesHandler.List)
	favoriteRoutes.Post("/:id/toggle", favoritesHandler.Toggle)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth)
	adminRoutes.Get("/users", middleware.OwnerOnly, adminHandler.ListUsers)
	adminRoutes.Put("/users/:id/role", middleware.OwnerOnly, adminHandler.UpdateUserRole)
	adminRoutes.Put("/users/role", middleware.OwnerOnly, adminHandler.UpdateRoleByEmail)
	adminRoutes.Get("/uploads", middleware.SuperadminOnly, adminHandler.ListUploads)

	api.Post("/assistant/generate", authMiddleware.RequireAuth, assistantHandler.Generate)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
