package models

import "github.com/google/uuid"

type Category string

const (
	CategoryMods    Category = "mods"
	CategoryScripts Category = "scripts"
	CategoryHUD     Category = "hud"
	CategoryBackups Category = "backups"
	CategoryMaps    Category = "maps"
	CategoryPeople  Category = "people"
)

// Categories lists every valid upload category in display order.
var Categories = []Category{
	CategoryMods,
	CategoryScripts,
	CategoryHUD,
	CategoryBackups,
	CategoryMaps,
	CategoryPeople,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Upload describes one shareable resource in the catalog. Uploader name and
// avatar are denormalized at upload time and are not kept in sync with later
// profile edits.
type Upload struct {
	BaseModel
	FileName       string    `json:"fileName" gorm:"type:varchar(255);not null"`
	FileURL        string    `json:"fileURL" gorm:"type:text;not null"`
	ImageURL       string    `json:"imageURL" gorm:"type:text;not null"`
	Category       Category  `json:"category" gorm:"type:varchar(20);not null;index"`
	Description    string    `json:"description" gorm:"type:text"`
	Version        string    `json:"version" gorm:"type:varchar(50);not null;default:'1.0'"`
	UploaderID     uuid.UUID `json:"uploaderID" gorm:"type:uuid;not null;index"`
	UploaderName   string    `json:"uploaderName" gorm:"type:varchar(100);not null"`
	UploaderAvatar string    `json:"uploaderAvatar" gorm:"type:text"`
	Downloads      int64     `json:"downloads" gorm:"not null;default:0"`
	StoragePath    *string   `json:"storagePath,omitempty" gorm:"type:text"`

	Uploader User `json:"-" gorm:"foreignKey:UploaderID;references:ID"`
}
