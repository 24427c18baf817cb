package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mtahub/backend/internal/config"
	"github.com/mtahub/backend/pkg/logger"
)

// Failure taxonomy for the hosted chat-completion endpoint. Handlers map
// these onto fixed user-facing messages.
var (
	ErrAssistantNotConfigured = errors.New("assistant api key not configured")
	ErrAssistantInvalidKey    = errors.New("assistant api key rejected")
	ErrAssistantRateLimited   = errors.New("assistant rate limited")
	ErrAssistantBadPrompt     = errors.New("assistant rejected the prompt")
	ErrAssistantUnavailable   = errors.New("assistant unavailable")
)

type Game string

const (
	GameMTA  Game = "mta"
	GameSAMP Game = "samp"
)

func (g Game) Valid() bool {
	return g == GameMTA || g == GameSAMP
}

// AssistantService wraps a hosted OpenAI-compatible chat-completion API that
// turns a plain-language request into a game script (MTA:SA Lua or SA-MP
// Pawn). It holds no conversation state; every call is a single
// request/response with the configured model and a one-shot fallback to an
// alternate model.
type AssistantService struct {
	cfg    config.AssistantConfig
	client *http.Client
}

func NewAssistantService(cfg config.AssistantConfig) *AssistantService {
	return &AssistantService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const (
	mtaSystemPrompt = `You are an expert MTA:SA Lua programmer. Generate complete, working MTA Lua scripts.
Provide the code in ` + "```lua" + ` code blocks.
Include proper error handling, admin checks, and comments.`

	sampSystemPrompt = `You are an expert SA-MP Pawn programmer. Generate complete, working Pawn scripts.
Provide the code in ` + "```pawn" + ` code blocks.
Include proper error handling, admin checks, and comments.`
)

func systemPromptFor(game Game) string {
	if game == GameSAMP {
		return sampSystemPrompt
	}
	return mtaSystemPrompt
}

// Generate produces a script for the given game. On failure with the primary
// model it retries exactly once on the configured fallback model before
// giving up.
func (s *AssistantService) Generate(ctx context.Context, game Game, prompt string) (string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", ErrAssistantNotConfigured
	}

	content, err := s.complete(ctx, s.cfg.Model, game, prompt)
	if err == nil {
		return content, nil
	}

	// Invalid key and malformed prompt will not get better on another
	// model; everything else gets the one-shot fallback.
	if errors.Is(err, ErrAssistantInvalidKey) || errors.Is(err, ErrAssistantBadPrompt) {
		return "", err
	}
	if s.cfg.FallbackModel == "" || s.cfg.FallbackModel == s.cfg.Model {
		return "", err
	}

	logger.Warn("assistant_fallback", map[string]interface{}{
		"primary_model":  s.cfg.Model,
		"fallback_model": s.cfg.FallbackModel,
		"error":          err.Error(),
	})

	return s.complete(ctx, s.cfg.FallbackModel, game, prompt)
}

func (s *AssistantService) complete(ctx context.Context, model string, game Game, prompt string) (string, error) {
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPromptFor(game)},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warn("assistant_request_failed", map[string]interface{}{
			"model":  model,
			"status": resp.StatusCode,
			"body":   string(raw),
		})
		return "", mapStatus(resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrAssistantUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrAssistantUnavailable)
	}

	return parsed.Choices[0].Message.Content, nil
}

func mapStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAssistantInvalidKey
	case status == http.StatusTooManyRequests:
		return ErrAssistantRateLimited
	case status == http.StatusBadRequest:
		return ErrAssistantBadPrompt
	default:
		return ErrAssistantUnavailable
	}
}
