package repository

import (
	"context"
	"errors"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeletedModelRepository struct {
	db *gorm.DB
}

func NewDeletedModelRepository(db *gorm.DB) *DeletedModelRepository {
	return &DeletedModelRepository{db: db}
}

func (r *DeletedModelRepository) GetDeletedModelByID(ctx context.Context, id uuid.UUID) (*models.DeletedModel, error) {
	var d models.DeletedModel
	err := r.db.WithContext(ctx).Preload("RequestedBy").Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// ListDeletedModels returns tombstones newest first.
func (r *DeletedModelRepository) ListDeletedModels(ctx context.Context) ([]models.DeletedModel, error) {
	var out []models.DeletedModel
	err := r.db.WithContext(ctx).Preload("RequestedBy").Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *DeletedModelRepository) DeleteDeletedModel(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.DeletedModel{}, "id = ?", id)
	return res.RowsAffected == 1, res.Error
}
