package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mtahub/backend/internal/middleware"
	"github.com/mtahub/backend/internal/services"
	"github.com/mtahub/backend/pkg/logger"
	"github.com/mtahub/backend/pkg/utils"
)

const maxPromptLength = 4000

type AssistantHandler struct {
	Assistant *services.AssistantService
}

func NewAssistantHandler(assistant *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{Assistant: assistant}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Game   string `json:"game"`
}

func (h *AssistantHandler) Generate(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return utils.Error(c, fiber.StatusBadRequest, "prompt is required")
	}
	if len(prompt) > maxPromptLength {
		return utils.Error(c, fiber.StatusBadRequest, "prompt is too long")
	}

	game := services.Game(strings.ToLower(strings.TrimSpace(req.Game)))
	if game == "" {
		game = services.GameMTA
	}
	if !game.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "game must be mta or samp")
	}

	script, err := h.Assistant.Generate(c.Context(), game, prompt)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "assistant_generate_failed", err, map[string]interface{}{
			"game": string(game),
		})
		switch {
		case errors.Is(err, services.ErrAssistantNotConfigured):
			return utils.Error(c, fiber.StatusServiceUnavailable, "the assistant is not configured")
		case errors.Is(err, services.ErrAssistantInvalidKey):
			return utils.Error(c, fiber.StatusBadGateway, "the assistant rejected our credentials")
		case errors.Is(err, services.ErrAssistantRateLimited):
			return utils.Error(c, fiber.StatusTooManyRequests, "the assistant is rate limited, try again shortly")
		case errors.Is(err, services.ErrAssistantBadPrompt):
			return utils.Error(c, fiber.StatusBadRequest, "the assistant could not process this prompt")
		default:
			return utils.Error(c, fiber.StatusBadGateway, "the assistant is unavailable right now")
		}
	}

	logger.InfoWithUser(user.ID.String(), "assistant_generated", map[string]interface{}{
		"game":          string(game),
		"prompt_length": len(prompt),
		"script_length": len(script),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"script": script,
		"game":   game,
	})
}
