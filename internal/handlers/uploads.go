package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mtahub/backend/internal/catalog"
	"github.com/mtahub/backend/internal/favorites"
	"github.com/mtahub/backend/internal/middleware"
	"github.com/mtahub/backend/internal/models"
	"github.com/mtahub/backend/internal/permissions"
	"github.com/mtahub/backend/internal/storage"
	"github.com/mtahub/backend/pkg/logger"
	"github.com/mtahub/backend/pkg/utils"
	"gorm.io/gorm"
)

const presignedURLExpiry = 15 * time.Minute

type UploadsHandler struct {
	DB      *gorm.DB
	Cache   *catalog.Cache
	Ledger  *favorites.Ledger
	Storage *storage.MinIOClient
}

func NewUploadsHandler(db *gorm.DB, cache *catalog.Cache, ledger *favorites.Ledger, store *storage.MinIOClient) *UploadsHandler {
	return &UploadsHandler{DB: db, Cache: cache, Ledger: ledger, Storage: store}
}

func (h *UploadsHandler) ensureCache(c *fiber.Ctx) error {
	return h.Cache.Load(c.Context())
}

// Browse runs the filter/sort pipeline over the cached catalog.
func (h *UploadsHandler) Browse(c *fiber.Ctx) error {
	if err := h.ensureCache(c); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading catalog")
	}

	category := c.Query("category", "all")
	if category != "all" && category != "" && !models.Category(strings.ToLower(category)).Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "unknown category")
	}

	query := catalog.Query{
		Category: category,
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

func (h *UploadsHandler) Recent(c *fiber.Ctx) error {
	if err := h.ensureCache(c); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading catalog")
	}

	limit := c.QueryInt("limit", 6)
	if limit < 1 {
		limit = 6
	}
	if limit > 50 {
		limit = 50
	}

	results := catalog.Query{Sort: catalog.SortNewest}.Apply(h.Cache.All())
	if len(results) > limit {
		results = results[:limit]
	}

	return utils.Success(c, fiber.StatusOK, results)
}

func (h *UploadsHandler) Mine(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if err := h.ensureCache(c); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading catalog")
	}

	return utils.Success(c, fiber.StatusOK, h.Cache.ByUploader(user.ID))
}

func (h *UploadsHandler) Stats(c *fiber.Ctx) error {
	if err := h.ensureCache(c); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading catalog")
	}
	return utils.Success(c, fiber.StatusOK, h.Cache.Stats())
}

type createUploadRequest struct {
	FileName    string `json:"fileName"`
	FileURL     string `json:"fileURL"`
	ImageURL    string `json:"imageURL"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

func (h *UploadsHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.FileURL = strings.TrimSpace(req.FileURL)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.Version = strings.TrimSpace(req.Version)

	if req.FileName == "" || req.FileURL == "" || req.ImageURL == "" {
		return utils.Error(c, fiber.StatusBadRequest, "fileName, fileURL and imageURL are required")
	}

	category := models.Category(strings.ToLower(strings.TrimSpace(req.Category)))
	if !category.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "unknown category")
	}
	if !permissions.CanUploadToCategory(category, user.Role) {
		return utils.Error(c, fiber.StatusForbidden, fmt.Sprintf("your role cannot upload to %s", category))
	}

	if req.Version == "" {
		req.Version = "1.0"
	}

	avatar := ""
	if user.AvatarURL != nil {
		avatar = *user.AvatarURL
	}

	upload := models.Upload{
		FileName:       req.FileName,
		FileURL:        req.FileURL,
		ImageURL:       req.ImageURL,
		Category:       category,
		Description:    strings.TrimSpace(req.Description),
		Version:        req.Version,
		UploaderID:     user.ID,
		UploaderName:   user.DisplayName,
		UploaderAvatar: avatar,
		Downloads:      0,
	}

	if err := h.DB.Create(&upload).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating upload")
	}

	// Local patch after the successful write-through.
	h.Cache.Add(upload)

	logger.InfoWithUser(user.ID.String(), "upload_created", map[string]interface{}{
		"upload_id": upload.ID.String(),
		"category":  string(upload.Category),
		"file_name": upload.FileName,
	})

	return utils.Success(c, fiber.StatusCreated, upload)
}

func (h *UploadsHandler) Get(c *fiber.Ctx) error {
	uploadID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid upload id")
	}
	if err := h.ensureCache(c); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading catalog")
	}

	upload, ok := h.Cache.Get(uploadID)
	if !ok {
		return utils.Error(c, fiber.StatusNotFound, "upload not found")
	}
	return utils.Success(c, fiber.StatusOK, upload)
}

// AttachArtifact stores the actual file in the object store for uploads that
// do not just link elsewhere. Download resolution then prefers the hosted
// copy over the external URL.
func (h *UploadsHandler) AttachArtifact(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	uploadID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid upload id")
	}
	if h.Storage == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "artifact hosting is not configured")
	}

	var upload models.Upload
	if err := h.DB.First(&upload, "id = ?", uploadID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "upload not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching upload")
	}

	if !permissions.CanDelete(&upload, user.ID, user.Role) {
		return utils.Error(c, fiber.StatusForbidden, "you cannot modify this upload")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading file")
	}
	defer src.Close()

	objectName := fmt.Sprintf("uploads/%s/%s", upload.ID, filepath.Base(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.Storage.UploadArtifact(c.Context(), objectName, src, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing artifact")
	}

	if err := h.DB.Model(&upload).Update("storage_path", objectName).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating upload")
	}
	upload.StoragePath = &objectName
	h.Cache.Update(upload)

	logger.InfoWithUser(user.ID.String(), "artifact_attached", map[string]interface{}{
		"upload_id":   upload.ID.String(),
		"object_name": objectName,
		"size":        fileHeader.Size,
	})

	return utils.Success(c, fiber.StatusOK, upload)
}

// Download bumps the counter atomically in the store, patches the cache and
// hands back the link to fetch.
func (h *UploadsHandler) Download(c *fiber.Ctx) error {
	uploadID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid upload id")
	}

	var upload models.Upload
	if err := h.DB.First(&upload, "id = ?", uploadID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "upload not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching upload")
	}

	if err := h.DB.Model(&upload).UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting download")
	}

	downloads, ok := h.Cache.IncrementDownloads(uploadID)
	if !ok {
		downloads = upload.Downloads + 1
	}

	url := upload.FileURL
	if upload.StoragePath != nil && h.Storage != nil {
		presigned, err := h.Storage.PresignedDownloadURL(c.Context(), *upload.StoragePath, upload.FileName, presignedURLExpiry)
		if err == nil {
			url = presigned
		} else {
			logger.Warn("presign_failed", map[string]interface{}{
				"upload_id": upload.ID.String(),
				"error":     err.Error(),
			})
		}
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url":       url,
		"downloads": downloads,
	})
}

func (h *UploadsHandler) Delete(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	uploadID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid upload id")
	}

	var upload models.Upload
	if err := h.DB.First(&upload, "id = ?", uploadID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "upload not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching upload")
	}

	if !permissions.CanDelete(&upload, user.ID, user.Role) {
		return utils.Error(c, fiber.StatusForbidden, "you cannot delete this upload")
	}

	if err := h.DB.Delete(&models.Upload{}, "id = ?", uploadID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting upload")
	}

	// Store write succeeded; patch the cache and scrub the ledger. Hosted
	// artifacts are removed best effort.
	h.Cache.Remove(uploadID)
	if err := h.Ledger.RemoveUpload(uploadID); err != nil {
		logger.Warn("favorites_scrub_failed", map[string]interface{}{
			"upload_id": uploadID.String(),
			"error":     err.Error(),
		})
	}
	if upload.StoragePath != nil && h.Storage != nil {
		if err := h.Storage.DeleteArtifact(c.Context(), *upload.StoragePath); err != nil {
			logger.Warn("artifact_cleanup_failed", map[string]interface{}{
				"upload_id": uploadID.String(),
				"error":     err.Error(),
			})
		}
	}

	logger.InfoWithUser(user.ID.String(), "upload_deleted", map[string]interface{}{
		"upload_id": uploadID.String(),
		"file_name": upload.FileName,
		"role":      string(user.Role),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "upload deleted"})
}
