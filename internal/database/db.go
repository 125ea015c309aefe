package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const uniqueViolationCode = "23505"

// Connect opens the pooled Postgres connection shared by every repository.
func Connect(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), Options())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Log.Info("Database connected successfully")
	return db, nil
}

// Options is the gorm configuration used in production and tests alike.
// TranslateError turns driver unique violations into gorm.ErrDuplicatedKey.
func Options() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Sphere{},
		&models.User{},
		&models.Project{},
		&models.Model{},
		&models.DeletedModel{},
		&models.LogEntry{},
	)
	if err != nil {
		logger.Log.Error("Migration failed", zap.Error(err))
		return fmt.Errorf("migrate: %w", err)
	}

	logger.Log.Info("Database migration completed")
	return nil
}

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
