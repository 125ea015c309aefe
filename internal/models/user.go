package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleAnalyst  Role = "ANALYST"
	RoleArtist   Role = "ARTIST"
	RoleEmployee Role = "EMPLOYEE"
)

var roles = map[Role]struct{}{
	RoleAdmin:    {},
	RoleAnalyst:  {},
	RoleArtist:   {},
	RoleEmployee: {},
}

// ParseRole accepts any letter case.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := roles[r]
	return r, ok
}

// SphereScoped reports whether users of this role may be bound to a sphere.
func (r Role) SphereScoped() bool {
	return r == RoleAnalyst || r == RoleArtist
}

type User struct {
	ID           uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string                          `gorm:"type:varchar(100);not null" json:"name"`
	Email        string                          `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string                          `gorm:"type:varchar(255);not null" json:"-"` // Never expose password hash in JSON
	Role         Role                            `gorm:"type:varchar(20);not null;default:'EMPLOYEE'" json:"role"`
	Permissions  datatypes.JSONSlice[Permission] `json:"permissions"`
	SphereID     *uuid.UUID                      `gorm:"type:uuid" json:"sphereId"`
	Sphere       *Sphere                         `gorm:"foreignKey:SphereID;constraint:OnDelete:SET NULL" json:"sphere,omitempty"`
	CreatedAt    time.Time                       `json:"createdAt"`
	UpdatedAt    time.Time                       `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// HasPermission reports exact membership; roles are not consulted here.
func (u *User) HasPermission(p Permission) bool {
	if u == nil {
		return false
	}
	for _, have := range u.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
