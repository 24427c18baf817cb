package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mtahub/backend/internal/catalog"
	"github.com/mtahub/backend/internal/favorites"
	"github.com/mtahub/backend/internal/middleware"
	"github.com/mtahub/backend/internal/models"
	"github.com/mtahub/backend/pkg/logger"
	"github.com/mtahub/backend/pkg/utils"
)

type FavoritesHandler struct {
	Cache  *catalog.Cache
	Ledger *favorites.Ledger
}

func NewFavoritesHandler(cache *catalog.Cache, ledger *favorites.Ledger) *FavoritesHandler {
	return &FavoritesHandler{Cache: cache, Ledger: ledger}
}

// List resolves the caller's favorite ids against the catalog. Ids whose
// upload no longer exists are pruned from the ledger on the way out, so a
// deletion that raced past the scrub heals itself on the next read.
func (h *FavoritesHandler) List(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if err := h.Cache.Load(c.Context()); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading catalog")
	}

	ids, err := h.Ledger.List(user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading favorites")
	}

	uploads := make([]models.Upload, 0, len(ids))
	live := ids[:0]
	for _, id := range ids {
		if upload, ok := h.Cache.Get(id); ok {
			uploads = append(uploads, upload)
			live = append(live, id)
		}
	}

	if len(live) != len(ids) {
		if err := h.Ledger.Replace(user.ID, live); err != nil {
			logger.WarnWithUser(user.ID.String(), "favorites_prune_failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return utils.Success(c, fiber.StatusOK, uploads)
}

func (h *FavoritesHandler) Toggle(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	uploadID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid upload id")
	}
	if err := h.Cache.Load(c.Context()); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading catalog")
	}
	if _, ok := h.Cache.Get(uploadID); !ok {
		return utils.Error(c, fiber.StatusNotFound, "upload not found")
	}

	favorited, err := h.Ledger.Toggle(user.ID, uploadID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating favorites")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"uploadId":  uploadID,
		"favorited": favorited,
	})
}
