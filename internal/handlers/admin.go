package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mtahub/backend/internal/catalog"
	"github.com/mtahub/backend/internal/middleware"
	"github.com/mtahub/backend/internal/models"
	"github.com/mtahub/backend/internal/permissions"
	"github.com/mtahub/backend/pkg/logger"
	"github.com/mtahub/backend/pkg/utils"
	"gorm.io/gorm"
)

type AdminHandler struct {
	DB    *gorm.DB
	Cache *catalog.Cache
}

func NewAdminHandler(db *gorm.DB, cache *catalog.Cache) *AdminHandler {
	return &AdminHandler{DB: db, Cache: cache}
}

type adminUserView struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	Role        string  `json:"role"`
	Provider    string  `json:"provider"`
	AvatarURL   *string `json:"avatarUrl"`
	CreatedAt   string  `json:"createdAt"`
	LastLoginAt *string `json:"lastLoginAt"`
}

func toAdminUserView(u models.User) adminUserView {
	view := adminUserView{
		ID:          u.ID.String(),
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		Provider:    string(u.Provider),
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if u.LastLoginAt != nil {
		s := u.LastLoginAt.Format("2006-01-02T15:04:05Z07:00")
		view.LastLoginAt = &s
	}
	return view
}

// ListUsers returns every account plus per-role counts for the panel header.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)

	var users []models.User
	queryDB := h.DB.Model(&models.User{}).Order("created_at DESC")

	if search := strings.TrimSpace(c.Query("q")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		queryDB = queryDB.Where(
			"LOWER(email) LIKE ? OR LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := queryDB.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}
	if err := utils.ApplyPagination(queryDB, pagination).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	views := make([]adminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, toAdminUserView(u))
	}

	// Role counts degrade to an empty map rather than failing the listing.
	roleCounts := map[string]int64{}
	rows := []struct {
		Role  string
		Count int64
	}{}
	if err := h.DB.Model(&models.User{}).Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error; err != nil {
		logger.Warn("role_count_failed", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		for _, r := range rows {
			roleCounts[r.Role] = r.Count
		}
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"users":      views,
		"total":      total,
		"page":       pagination.Page,
		"limit":      pagination.Limit,
		"roleCounts": roleCounts,
	})
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) updateRole(c *fiber.Ctx, target *models.User, newRole models.UserRole) error {
	actor := middleware.GetCurrentUser(c)
	if actor == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if !permissions.CanManageRoles(actor.Role) {
		return utils.Error(c, fiber.StatusForbidden, "only the owner can manage roles")
	}
	if !newRole.Valid() || !permissions.AssignableRole(newRole) {
		return utils.Error(c, fiber.StatusBadRequest, "role must be user, admin or superadmin")
	}
	if target.Role == models.UserRoleOwner {
		return utils.Error(c, fiber.StatusForbidden, "the owner role cannot be changed")
	}
	if target.ID == actor.ID {
		return utils.Error(c, fiber.StatusBadRequest, "you cannot change your own role")
	}

	previous := target.Role
	if err := h.DB.Model(target).Update("role", newRole).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating role")
	}
	target.Role = newRole

	logger.InfoWithUser(actor.ID.String(), "role_changed", map[string]interface{}{
		"target_id": target.ID.String(),
		"email":     target.Email,
		"from":      string(previous),
		"to":        string(newRole),
	})

	return utils.Success(c, fiber.StatusOK, toAdminUserView(*target))
}

func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var target models.User
	if err := h.DB.First(&target, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	return h.updateRole(c, &target, models.UserRole(strings.ToLower(strings.TrimSpace(req.Role))))
}

type updateRoleByEmailRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *AdminHandler) UpdateRoleByEmail(c *fiber.Ctx) error {
	var req updateRoleByEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email is required")
	}

	var target models.User
	if err := h.DB.First(&target, "LOWER(email) = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "no account found for this email")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	return h.updateRole(c, &target, models.UserRole(strings.ToLower(strings.TrimSpace(req.Role))))
}

// ListUploads serves the moderation table straight from the catalog cache.
func (h *AdminHandler) ListUploads(c *fiber.Ctx) error {
	if err := h.Cache.Load(c.Context()); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading catalog")
	}

	query := catalog.Query{
		Category: c.Query("category", "all"),
		Term:     c.Query("q"),
		Sort:     catalog.ParseSortKey(c.Query("sort")),
	}
	results := query.Apply(h.Cache.All())

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"uploads": results,
		"total":   h.Cache.Len(),
		"viewing": len(results),
	})
}
