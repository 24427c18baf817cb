package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mtahub/backend/internal/config"
	"github.com/mtahub/backend/internal/models"
)

func fakeChatCompletionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestAssistantGenerate(t *testing.T) {
	srv := fakeChatCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed decoding chat request: %v", err)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "addEventHandler(\"onResourceStart\", root, start)"}},
			},
		})
	})

	env := setupTestEnvWithConfig(t, func(cfg *config.Config) {
		cfg.Assistant.Endpoint = srv.URL
		cfg.Assistant.APIKey = "test-key"
	})
	_, token := createTestUser(t, env.db, "ai-user@test.com", "password123", models.UserRoleUser)

	t.Run("POST /api/assistant/generate returns the script", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/assistant/generate", map[string]any{
			"prompt": "a speedometer that follows the player",
			"game":   "mta",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := body["data"].(map[string]any)
		if data["script"] == "" {
			t.Fatalf("expected generated script in response")
		}
		if data["game"] != "mta" {
			t.Fatalf("expected game mta, got %v", data["game"])
		}
	})

	t.Run("POST /api/assistant/generate empty prompt", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/assistant/generate", map[string]any{
			"prompt": "  ",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "prompt is required")
	})

	t.Run("POST /api/assistant/generate unknown game", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/assistant/generate", map[string]any{
			"prompt": "anything",
			"game":   "gtao",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "game must be mta or samp")
	})

	t.Run("POST /api/assistant/generate requires authentication", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/assistant/generate", map[string]any{
			"prompt": "anything",
		}, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})
}

func TestAssistantGenerateNotConfigured(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "ai-nokey@test.com", "password123", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/assistant/generate", map[string]any{
		"prompt": "anything",
	}, authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusServiceUnavailable)
	assertEnvelopeError(t, body, "the assistant is not configured")
}

func TestAssistantGenerateRateLimited(t *testing.T) {
	srv := fakeChatCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	env := setupTestEnvWithConfig(t, func(cfg *config.Config) {
		cfg.Assistant.Endpoint = srv.URL
		cfg.Assistant.APIKey = "test-key"
	})
	_, token := createTestUser(t, env.db, "ai-limited@test.com", "password123", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/assistant/generate", map[string]any{
		"prompt": "anything",
	}, authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusTooManyRequests)
	assertEnvelopeError(t, body, "the assistant is rate limited, try again shortly")
}
