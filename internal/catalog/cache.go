// Package catalog keeps the session-scoped in-memory mirror of the uploads
// table and the pure filter/sort pipeline that browse queries run against.
// The cache is never authoritative: every write path patches it explicitly
// after the database write succeeds, or it silently diverges.
package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mtahub/backend/internal/models"
	"gorm.io/gorm"
)

type Cache struct {
	db *gorm.DB

	mu      sync.RWMutex
	uploads []models.Upload
	loaded  bool
}

func NewCache(db *gorm.DB) *Cache {
	return &Cache{db: db}
}

// Load populates the cache with a single full query ordered by creation time
// descending. Idempotent once loaded; server-side writes from other
// processes are not picked up until Reload.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}
	return c.reloadLocked(ctx)
}

// Reload discards the mirror and re-fetches everything.
func (c *Cache) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reloadLocked(ctx)
}

func (c *Cache) reloadLocked(ctx context.Context) error {
	var uploads []models.Upload
	if err := c.db.WithContext(ctx).Order("created_at DESC").Find(&uploads).Error; err != nil {
		return err
	}
	c.uploads = uploads
	c.loaded = true
	return nil
}

// All returns a copy of the mirror in its load order (newest first).
func (c *Cache) All() []models.Upload {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Upload, len(c.uploads))
	copy(out, c.uploads)
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.uploads)
}

func (c *Cache) Get(id uuid.UUID) (models.Upload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, u := range c.uploads {
		if u.ID == id {
			return u, true
		}
	}
	return models.Upload{}, false
}

// Add prepends a freshly persisted upload. Local-only patch: the caller must
// have written the record to the store already.
func (c *Cache) Add(upload models.Upload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.uploads = append([]models.Upload{upload}, c.uploads...)
	c.loaded = true
}

// Remove drops an upload from the mirror after a successful store delete.
func (c *Cache) Remove(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.uploads[:0]
	for _, u := range c.uploads {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	c.uploads = kept
}

// Update replaces a cached record in place, preserving order.
func (c *Cache) Update(upload models.Upload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.uploads {
		if c.uploads[i].ID == upload.ID {
			c.uploads[i] = upload
			return
		}
	}
}

// IncrementDownloads patches the cached counter after the store-side atomic
// increment and returns the new value.
func (c *Cache) IncrementDownloads(id uuid.UUID) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.uploads {
		if c.uploads[i].ID == id {
			c.uploads[i].Downloads++
			return c.uploads[i].Downloads, true
		}
	}
	return 0, false
}

// ByUploader filters the mirror to one uploader's records.
func (c *Cache) ByUploader(uploaderID uuid.UUID) []models.Upload {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Upload
	for _, u := range c.uploads {
		if u.UploaderID == uploaderID {
			out = append(out, u)
		}
	}
	return out
}

// Stats summarizes the mirror for the dashboard and the admin panel.
type Stats struct {
	TotalFiles     int                     `json:"totalFiles"`
	TotalDownloads int64                   `json:"totalDownloads"`
	ByCategory     map[models.Category]int `json:"byCategory"`
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{ByCategory: make(map[models.Category]int, len(models.Categories))}
	for _, cat := range models.Categories {
		stats.ByCategory[cat] = 0
	}
	for _, u := range c.uploads {
		stats.TotalFiles++
		stats.TotalDownloads += u.Downloads
		if u.Category.Valid() {
			stats.ByCategory[u.Category]++
		}
	}
	return stats
}
