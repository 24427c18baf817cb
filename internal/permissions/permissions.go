// Package permissions holds the pure predicates gating upload and delete
// actions. The HTTP layer enforces them on every request, but they encode
// the same trust model as the rest of the API: whoever can write to the
// database directly is not stopped by them.
package permissions

import (
	"github.com/google/uuid"
	"github.com/mtahub/backend/internal/models"
)

// CanUploadToCategory reports whether a role may publish into a category.
// The people category is open to everyone; the curated categories require
// admin or above.
func CanUploadToCategory(category models.Category, role models.UserRole) bool {
	if category == models.CategoryPeople {
		return true
	}
	return role.AtLeast(models.UserRoleAdmin)
}

// CanDelete reports whether the current identity may delete an upload.
// Superadmin and owner may delete anything; everyone else only their own.
func CanDelete(upload *models.Upload, userID uuid.UUID, role models.UserRole) bool {
	if role.AtLeast(models.UserRoleSuperadmin) {
		return true
	}
	return upload.UploaderID == userID
}

// CanManageRoles reports whether a role may use the user-management panel.
// Only the owner may change roles.
func CanManageRoles(role models.UserRole) bool {
	return role == models.UserRoleOwner
}

// AssignableRole reports whether the role-management panel may hand out the
// given role. Owner is never assignable.
func AssignableRole(role models.UserRole) bool {
	switch role {
	case models.UserRoleUser, models.UserRoleAdmin, models.UserRoleSuperadmin:
		return true
	default:
		return false
	}
}
