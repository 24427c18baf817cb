package handlers

import (
	"fmt"
	"math/rand"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mtahub/backend/internal/config"
	"github.com/mtahub/backend/internal/middleware"
	"github.com/mtahub/backend/internal/models"
	"github.com/mtahub/backend/internal/services"
	"github.com/mtahub/backend/pkg/logger"
	"github.com/mtahub/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Google *services.GoogleAuthService
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, google *services.GoogleAuthService) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg, Google: google}
}

// roleForNewAccount assigns owner exactly once: to the account whose email
// matches the configured owner address at creation time.
func (h *AuthHandler) roleForNewAccount(email string) models.UserRole {
	owner := strings.ToLower(strings.TrimSpace(h.Cfg.Owner.Email))
	if owner != "" && owner == email {
		return models.UserRoleOwner
	}
	return models.UserRoleUser
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 6 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 6 characters")
	}
	if req.Username == "" {
		req.Username = usernameFromEmail(req.Email)
	}

	var existing models.User
	if err := h.DB.First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "email already registered")
	} else if err != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	username, err := h.uniqueUsername(req.Username)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking username")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	now := time.Now()
	user := models.User{
		Email:        req.Email,
		Username:     username,
		DisplayName:  username,
		PasswordHash: passwordHash,
		Role:         h.roleForNewAccount(req.Email),
		Provider:     models.AuthProviderEmail,
		LastLoginAt:  &now,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id":  user.ID.String(),
		"email":    user.Email,
		"role":     string(user.Role),
		"provider": string(user.Provider),
	})

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"token": token, "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "no account found for this email")
	}

	if user.Provider == models.AuthProviderGoogle && user.PasswordHash == "" {
		return utils.Error(c, fiber.StatusBadRequest, "this account uses google sign-in")
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		logger.Warn("login_failed_bad_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "incorrect password")
	}

	now := time.Now()
	if err := h.DB.Model(&user).Update("last_login_at", now).Error; err != nil {
		logger.Warn("last_login_update_failed", map[string]interface{}{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		})
	}
	user.LastLoginAt = &now

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_logged_in", map[string]interface{}{
		"provider": string(user.Provider),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

type googleLoginRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req googleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Code) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "authorization code is required")
	}

	profile, err := h.Google.Exchange(c.Context(), req.Code)
	if err != nil {
		if err == services.ErrGoogleDisabled {
			return utils.Error(c, fiber.StatusBadRequest, "google sign-in is not enabled")
		}
		return utils.Error(c, fiber.StatusUnauthorized, "google sign-in failed")
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	now := time.Now()

	var user models.User
	err = h.DB.First(&user, "email = ?", email).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		base := profile.Name
		if base == "" {
			base = usernameFromEmail(email)
		}
		username, err := h.uniqueUsername(base)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking username")
		}

		user = models.User{
			Email:       email,
			Username:    username,
			DisplayName: profile.Name,
			Role:        h.roleForNewAccount(email),
			Provider:    models.AuthProviderGoogle,
			LastLoginAt: &now,
		}
		if user.DisplayName == "" {
			user.DisplayName = username
		}
		if profile.AvatarURL != "" {
			user.AvatarURL = &profile.AvatarURL
		}

		if err := h.DB.Create(&user).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
		}

		logger.Info("user_registered", map[string]interface{}{
			"user_id":  user.ID.String(),
			"email":    user.Email,
			"role":     string(user.Role),
			"provider": "google",
		})

	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")

	default:
		// Existing account: refresh profile details but never the role.
		updates := map[string]interface{}{"last_login_at": now}
		if profile.AvatarURL != "" {
			updates["avatar_url"] = profile.AvatarURL
		}
		if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
			logger.Warn("google_profile_refresh_failed", map[string]interface{}{
				"user_id": user.ID.String(),
				"error":   err.Error(),
			})
		}
		user.LastLoginAt = &now
		if profile.AvatarURL != "" {
			user.AvatarURL = &profile.AvatarURL
		}
	}

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type updateMeRequest struct {
	DisplayName *string `json:"displayName"`
	AvatarURL   *string `json:"avatarURL"`
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		value := strings.TrimSpace(*req.DisplayName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "displayName cannot be empty")
		}
		updates["display_name"] = value
	}
	if req.AvatarURL != nil {
		trimmed := strings.TrimSpace(*req.AvatarURL)
		if trimmed == "" {
			updates["avatar_url"] = nil
		} else {
			updates["avatar_url"] = trimmed
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	var fresh models.User
	if err := h.DB.First(&fresh, "id = ?", user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated profile")
	}

	return utils.Success(c, fiber.StatusOK, fresh)
}

// uniqueUsername appends a random numeric suffix until the name is free.
func (h *AuthHandler) uniqueUsername(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "user"
	}

	candidate := base
	for attempt := 0; attempt < 5; attempt++ {
		var count int64
		if err := h.DB.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, rand.Intn(1000))
	}
	return fmt.Sprintf("%s_%d", base, time.Now().UnixNano()%100000), nil
}
