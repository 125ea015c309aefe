package repository

import (
	"context"
	"errors"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Sphere").Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers returns users ordered by name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Preload("Sphere").Order("name ASC").Find(&users).Error
	return users, err
}

// EmailTaken reports whether another user already owns email.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", models.NormalizeEmail(email))
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit("Sphere").Save(user).Error
}

// DeleteUser removes the user and nulls every reference to it; audit entries are kept.
func (r *UserRepository) DeleteUser(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nullify := []struct{ table, column string }{
			{"logs", "user_id"},
			{"models", "author_id"},
			{"models", "marked_by_id"},
			{"deleted_models", "requested_by_id"},
			{"deleted_models", "deleted_by_id"},
		}
		for _, n := range nullify {
			if err := tx.Table(n.table).Where(n.column+" = ?", id).Update(n.column, nil).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected == 1
		return nil
	})
	return deleted, err
}
