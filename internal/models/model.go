package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Model is a catalogued 3D model. Its binaries live in the remote asset store
// under models/{ID}/.
type Model struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	TitleKey    string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	Description string     `gorm:"type:text" json:"description"`
	AuthorID    *uuid.UUID `gorm:"type:uuid;index" json:"authorId"`
	Author      *User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL" json:"author,omitempty"`
	Projects    []Project  `gorm:"many2many:model_projects;constraint:OnDelete:CASCADE" json:"projects,omitempty"`
	Spheres     []Sphere   `gorm:"many2many:model_spheres;constraint:OnDelete:CASCADE" json:"spheres,omitempty"`

	ArchivePath string                      `gorm:"type:text" json:"archivePath"`
	Screenshots datatypes.JSONSlice[string] `json:"screenshots"`

	// Deletion request fields
	MarkedForDeletion bool       `gorm:"not null;default:false;index" json:"markedForDeletion"`
	MarkedByID        *uuid.UUID `gorm:"type:uuid" json:"markedById"`
	MarkedBy          *User      `gorm:"foreignKey:MarkedByID;constraint:OnDelete:SET NULL" json:"markedBy,omitempty"`
	MarkedAt          *time.Time `json:"markedAt"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *Model) BeforeSave(tx *gorm.DB) error {
	if m.Title != "" {
		m.TitleKey = TitleKey(m.Title)
	}
	return nil
}

// State names the workflow state the row is in.
func (m *Model) State() string {
	if m.MarkedForDeletion {
		return "MARKED_FOR_DELETION"
	}
	return "ACTIVE"
}

// TitleKey is the case-insensitive uniqueness key of a title.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ModelFolder is the asset folder of a model.
func ModelFolder(id uuid.UUID) string {
	return "models/" + id.String()
}

// DeletedModel is the tombstone left after a model row is removed and before
// its remote assets are purged.
type DeletedModel struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	ModelID       uuid.UUID                   `gorm:"type:uuid;not null;index" json:"modelId"`
	Title         string                      `gorm:"type:varchar(255);not null" json:"title"`
	ArchivePath   string                      `gorm:"type:text" json:"archivePath"`
	Screenshots   datatypes.JSONSlice[string] `json:"screenshots"`
	RequestedByID *uuid.UUID                  `gorm:"type:uuid" json:"requestedById"`
	RequestedBy   *User                       `gorm:"foreignKey:RequestedByID;constraint:OnDelete:SET NULL" json:"requestedBy,omitempty"`
	DeletedByID   *uuid.UUID                  `gorm:"type:uuid" json:"deletedById"`
	CreatedAt     time.Time                   `json:"createdAt"`
}

func (d *DeletedModel) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
