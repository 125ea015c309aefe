package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Sphere struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Sphere) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Pseudo-categories shown by the catalogue UI; never stored as real spheres.
const (
	SphereAllModels = "Все модели"
	SphereNone      = "Без сферы"
)

// IsReservedSphereName compares case-insensitively.
func IsReservedSphereName(name string) bool {
	n := strings.TrimSpace(name)
	return strings.EqualFold(n, SphereAllModels) || strings.EqualFold(n, SphereNone)
}

// LogEntry is an append-only audit record.
type LogEntry struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Action    string     `gorm:"type:text;not null" json:"action"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	User      *User      `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	ModelID   *uuid.UUID `gorm:"type:uuid;index" json:"modelId"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
}

func (LogEntry) TableName() string {
	return "logs"
}
