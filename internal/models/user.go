package models

import "time"

type UserRole string

const (
	UserRoleUser       UserRole = "user"
	UserRoleAdmin      UserRole = "admin"
	UserRoleSuperadmin UserRole = "superadmin"
	UserRoleOwner      UserRole = "owner"
)

// roleRank orders roles by privilege. Owner outranks everything and is
// assigned once, at account creation, by matching the configured owner email.
var roleRank = map[UserRole]int{
	UserRoleUser:       0,
	UserRoleAdmin:      1,
	UserRoleSuperadmin: 2,
	UserRoleOwner:      3,
}

func (r UserRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

func (r UserRole) AtLeast(other UserRole) bool {
	return roleRank[r] >= roleRank[other]
}

type AuthProvider string

const (
	AuthProviderEmail  AuthProvider = "email"
	AuthProviderGoogle AuthProvider = "google"
)

type User struct {
	BaseModel
	Email        string       `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Username     string       `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	DisplayName  string       `json:"displayName" gorm:"type:varchar(100);not null"`
	PasswordHash string       `json:"-" gorm:"type:text"`
	Role         UserRole     `json:"role" gorm:"type:varchar(20);not null;default:'user';index"`
	Provider     AuthProvider `json:"provider" gorm:"type:varchar(20);not null;default:'email'"`
	AvatarURL    *string      `json:"avatarURL,omitempty" gorm:"type:text"`
	LastLoginAt  *time.Time   `json:"lastLoginAt,omitempty"`
	Uploads      []Upload     `json:"-" gorm:"foreignKey:UploaderID"`
}
