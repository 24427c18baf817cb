package handlers

import (
	"net/http"
	"testing"

	"github.com/mtahub/backend/internal/models"
)

func TestRegisterEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("POST /api/auth/register creates account and returns token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "fresh@test.com",
			"password": "password123",
			"username": "freshuser",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := body["data"].(map[string]any)
		if data["token"] == "" {
			t.Fatalf("expected a token in the response")
		}
		user := data["user"].(map[string]any)
		if user["role"] != "user" {
			t.Fatalf("expected default role user, got %v", user["role"])
		}
		if user["provider"] != "email" {
			t.Fatalf("expected provider email, got %v", user["provider"])
		}
	})

	t.Run("POST /api/auth/register owner email gets owner role", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "owner@example.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		user := body["data"].(map[string]any)["user"].(map[string]any)
		if user["role"] != "owner" {
			t.Fatalf("expected owner role, got %v", user["role"])
		}
	})

	t.Run("POST /api/auth/register short password is rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "shortpw@test.com",
			"password": "12345",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "password must be at least 6 characters")
	})

	t.Run("POST /api/auth/register invalid email is rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "not-an-email",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid email")
	})

	t.Run("POST /api/auth/register duplicate email conflicts", func(t *testing.T) {
		createTestUser(t, env.db, "dupe@test.com", "password123", models.UserRoleUser)
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "dupe@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "email already registered")
	})
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "login@test.com", "password123", models.UserRoleUser)

	t.Run("POST /api/auth/login succeeds with correct credentials", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "login@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := body["data"].(map[string]any)
		if data["token"] == "" {
			t.Fatalf("expected a token in the response")
		}
	})

	t.Run("POST /api/auth/login wrong password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "login@test.com",
			"password": "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "incorrect password")
	})

	t.Run("POST /api/auth/login unknown email", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "missing@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "no account found for this email")
	})

	t.Run("POST /api/auth/login google account cannot use password", func(t *testing.T) {
		googleUser := &models.User{
			Email:       "gonly@test.com",
			Username:    "gonly",
			DisplayName: "gonly",
			Role:        models.UserRoleUser,
			Provider:    models.AuthProviderGoogle,
		}
		if err := env.db.Create(googleUser).Error; err != nil {
			t.Fatalf("failed creating google user: %v", err)
		}

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "gonly@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "this account uses google sign-in")
	})
}

func TestGoogleLoginDisabled(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/google", map[string]any{
		"code": "some-auth-code",
	}, nil)
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusBadRequest)
	assertEnvelopeError(t, body, "google sign-in is not enabled")
}

func TestMeEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "me@test.com", "password123", models.UserRoleUser)

	t.Run("GET /api/auth/me returns the current user", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := body["data"].(map[string]any)
		if data["email"] != user.Email {
			t.Fatalf("expected email %q, got %v", user.Email, data["email"])
		}
	})

	t.Run("GET /api/auth/me without token", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("PUT /api/auth/me updates display name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"displayName": "New Name",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := body["data"].(map[string]any)
		if data["displayName"] != "New Name" {
			t.Fatalf("expected updated display name, got %v", data["displayName"])
		}
	})

	t.Run("PUT /api/auth/me empty display name is rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"displayName": "  ",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "displayName cannot be empty")
	})
}
