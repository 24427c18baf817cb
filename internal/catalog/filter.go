package catalog

import (
	"sort"
	"strings"

	"github.com/mtahub/backend/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortKey string

const (
	SortNewest   SortKey = "newest"
	SortOldest   SortKey = "oldest"
	SortPopular  SortKey = "popular"
	SortNameAsc  SortKey = "name_asc"
	SortNameDesc SortKey = "name_desc"
)

// ParseSortKey maps a query value to a sort key, defaulting to newest.
func ParseSortKey(value string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(value))) {
	case SortOldest:
		return SortOldest
	case SortPopular:
		return SortPopular
	case SortNameAsc:
		return SortNameAsc
	case SortNameDesc:
		return SortNameDesc
	default:
		return SortNewest
	}
}

// Query narrows and orders a snapshot of the cache. Category "all" (or
// empty) matches everything; Term is matched case-insensitively as a
// substring across file name, description, uploader name and category, and
// a record matches if any field matches.
type Query struct {
	Category string
	Term     string
	Sort     SortKey
}

// Apply runs the full pipeline over the given records and returns a new
// slice; the input is never mutated. Always recomputed over the full
// snapshot, no incremental updates.
func (q Query) Apply(uploads []models.Upload) []models.Upload {
	filtered := make([]models.Upload, 0, len(uploads))

	category := strings.ToLower(strings.TrimSpace(q.Category))
	term := strings.ToLower(strings.TrimSpace(q.Term))

	for _, u := range uploads {
		if category != "" && category != "all" && string(u.Category) != category {
			continue
		}
		if term != "" && !matchesTerm(u, term) {
			continue
		}
		filtered = append(filtered, u)
	}

	sortUploads(filtered, q.Sort)
	return filtered
}

func matchesTerm(u models.Upload, term string) bool {
	return strings.Contains(strings.ToLower(u.FileName), term) ||
		strings.Contains(strings.ToLower(u.Description), term) ||
		strings.Contains(strings.ToLower(u.UploaderName), term) ||
		strings.Contains(strings.ToLower(string(u.Category)), term)
}

// sortUploads orders in place. Missing creation timestamps sort as epoch 0.
// Ties keep the incoming order (stable sort).
func sortUploads(uploads []models.Upload, key SortKey) {
	switch key {
	case SortNewest:
		sort.SliceStable(uploads, func(i, j int) bool {
			return uploads[i].CreatedAt.After(uploads[j].CreatedAt)
		})
	case SortOldest:
		sort.SliceStable(uploads, func(i, j int) bool {
			return uploads[i].CreatedAt.Before(uploads[j].CreatedAt)
		})
	case SortPopular:
		sort.SliceStable(uploads, func(i, j int) bool {
			return uploads[i].Downloads > uploads[j].Downloads
		})
	case SortNameAsc:
		// Collators buffer internally and are not safe to share across
		// requests, so each sort gets its own.
		col := collate.New(language.Und, collate.IgnoreCase)
		sort.SliceStable(uploads, func(i, j int) bool {
			return col.CompareString(uploads[i].FileName, uploads[j].FileName) < 0
		})
	case SortNameDesc:
		col := collate.New(language.Und, collate.IgnoreCase)
		sort.SliceStable(uploads, func(i, j int) bool {
			return col.CompareString(uploads[i].FileName, uploads[j].FileName) > 0
		})
	}
}
