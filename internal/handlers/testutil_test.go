package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mtahub/backend/internal/catalog"
	"github.com/mtahub/backend/internal/config"
	"github.com/mtahub/backend/internal/database"
	"github.com/mtahub/backend/internal/favorites"
	"github.com/mtahub/backend/internal/middleware"
	"github.com/mtahub/backend/internal/models"
	"github.com/mtahub/backend/internal/services"
	"github.com/mtahub/backend/pkg/logger"
	"github.com/mtahub/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	cache  *catalog.Cache
	ledger *favorites.Ledger
	cfg    *config.Config
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithConfig(t, nil)
}

func setupTestEnvWithConfig(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	ledger, err := favorites.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed opening favorites ledger: %v", err)
	}
	t.Cleanup(func() {
		_ = ledger.Close()
	})

	cache := catalog.NewCache(db)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("failed loading catalog cache: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			FrontendURL: "http://localhost:3001",
		},
		Owner: config.OwnerConfig{
			Email: "owner@example.com",
		},
		Assistant: config.AssistantConfig{
			Model:         "test/model",
			FallbackModel: "test/fallback",
			MaxTokens:     256,
			Temperature:   0.7,
			Timeout:       5 * time.Second,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	googleAuth := services.NewGoogleAuthService(cfg.Google)
	assistant := services.NewAssistantService(cfg.Assistant)

	authHandler := NewAuthHandler(db, cfg, googleAuth)
	uploadsHandler := NewUploadsHandler(db, cache, ledger, nil)
	favoritesHandler := NewFavoritesHandler(cache, ledger)
	adminHandler := NewAdminHandler(db, cache)
	assistantHandler := NewAssistantHandler(assistant)

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

	return &testEnv{app: app, db: db, cache: cache, ledger: ledger, cfg: cfg}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		Username:     usernameFromEmail(email),
		DisplayName:  usernameFromEmail(email),
		PasswordHash: hash,
		Role:         role,
		Provider:     models.AuthProviderEmail,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestUpload(t *testing.T, env *testEnv, uploader *models.User, fileName string, category models.Category) *models.Upload {
	t.Helper()

	upload := &models.Upload{
		FileName:     fileName,
		FileURL:      "https://downloads.example.com/" + fileName,
		ImageURL:     "https://images.example.com/" + fileName + ".png",
		Category:     category,
		Description:  "test upload",
		Version:      "1.0",
		UploaderID:   uploader.ID,
		UploaderName: uploader.DisplayName,
	}
	if err := env.db.Create(upload).Error; err != nil {
		t.Fatalf("failed creating test upload: %v", err)
	}
	env.cache.Add(*upload)

	return upload
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
