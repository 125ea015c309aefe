package testutil

import (
	"fmt"
	"testing"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/database"
	"github.com/alicebob/miniredis/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TestRedis holds test Redis mock (miniredis)
type TestRedis struct {
	Server *miniredis.Miniredis
	URL    string
}

// SetupTestDatabase creates a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection so every query sees the same memory database.
func SetupTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	opts := database.Options()
	opts.Logger = gormlogger.Default.LogMode(gormlogger.Silent)

	db, err := gorm.Open(sqlite.Open(":memory:"), opts)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Logf("Warning: Failed to close database: %v", err)
		}
	})
	return db
}

// SetupTestRedis creates an in-memory Redis mock (miniredis), closed with the test.
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()
	server := miniredis.RunT(t)
	return &TestRedis{
		Server: server,
		URL:    fmt.Sprintf("redis://%s", server.Addr()),
	}
}
