package testutil

import (
	"testing"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/utils"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every fixture user.
const DefaultPassword = "Test123456"

// CreateUser inserts a user with a hashed DefaultPassword.
func CreateUser(t *testing.T, db *gorm.DB, name, email string, role models.Role, perms ...models.Permission) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(DefaultPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if perms == nil {
		perms = []models.Permission{}
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Permissions:  perms,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateAdmin inserts the default admin user.
func CreateAdmin(t *testing.T, db *gorm.DB) *models.User {
	return CreateUser(t, db, "admin", "admin@example.com", models.RoleAdmin)
}

// CreateModel inserts an ACTIVE model with the given screenshots.
func CreateModel(t *testing.T, db *gorm.DB, title string, author *models.User, screenshots ...string) *models.Model {
	t.Helper()

	if screenshots == nil {
		screenshots = []string{}
	}
	m := &models.Model{
		Title:       title,
		Screenshots: screenshots,
	}
	if author != nil {
		m.AuthorID = &author.ID
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("create model: %v", err)
	}
	m.ArchivePath = models.ModelFolder(m.ID) + "/archive.zip"
	if err := db.Model(m).Update("archive_path", m.ArchivePath).Error; err != nil {
		t.Fatalf("set archive path: %v", err)
	}
	return m
}

// CountLogs counts audit entries with the given action.
func CountLogs(t *testing.T, db *gorm.DB, action string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.LogEntry{}).Where("action = ?", action).Count(&n).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	return n
}

// CountUsersByEmail counts users with the given email.
func CountUsersByEmail(t *testing.T, db *gorm.DB, email string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", models.NormalizeEmail(email)).Count(&n).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}
