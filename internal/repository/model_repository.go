package repository

import (
	"context"
	"errors"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ModelFilter struct {
	ProjectID         *uuid.UUID
	SphereID          *uuid.UUID
	WithoutSphere     bool
	MarkedForDeletion *bool
	IncludeAuthor     bool
	IncludeProjects   bool
	IncludeMarkedBy   bool
}

type ModelRepository struct {
	db *gorm.DB
}

func NewModelRepository(db *gorm.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

func (r *ModelRepository) CreateModel(ctx context.Context, m *models.Model) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetModelByID loads a model with all of its relations.
func (r *ModelRepository) GetModelByID(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	var m models.Model
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Projects").
		Preload("Spheres").
		Preload("MarkedBy").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ModelRepository) ListModels(ctx context.Context, f ModelFilter) ([]models.Model, error) {
	q := r.db.WithContext(ctx).Model(&models.Model{}).Preload("Spheres")

	if f.IncludeAuthor {
		q = q.Preload("Author")
	}
	if f.IncludeProjects {
		q = q.Preload("Projects")
	}
	if f.IncludeMarkedBy {
		q = q.Preload("MarkedBy")
	}
	if f.ProjectID != nil {
		q = q.Where("id IN (?)", r.db.Table("model_projects").Select("model_id").Where("project_id = ?", *f.ProjectID))
	}
	if f.SphereID != nil {
		q = q.Where("id IN (?)", r.db.Table("model_spheres").Select("model_id").Where("sphere_id = ?", *f.SphereID))
	}
	if f.WithoutSphere {
		q = q.Where("id NOT IN (?)", r.db.Table("model_spheres").Select("model_id"))
	}
	if f.MarkedForDeletion != nil {
		q = q.Where("marked_for_deletion = ?", *f.MarkedForDeletion)
	}

	var out []models.Model
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

// TitleExists compares case-insensitively through the stored title key.
func (r *ModelRepository) TitleExists(ctx context.Context, title string, excludeID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Model{}).Where("title_key = ?", models.TitleKey(title))
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

// UpdateModel writes the editable columns and replaces the given associations,
// only while the model is still ACTIVE. Deletion workflow columns are never
// written here. false means the row is gone or was marked in the meantime.
func (r *ModelRepository) UpdateModel(ctx context.Context, m *models.Model, projects []models.Project, spheres []models.Sphere) (bool, error) {
	var updated bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Model{}).
			Where("id = ? AND marked_for_deletion = ?", m.ID, false).
			Updates(map[string]interface{}{
				"title":        m.Title,
				"title_key":    models.TitleKey(m.Title),
				"description":  m.Description,
				"author_id":    m.AuthorID,
				"archive_path": m.ArchivePath,
				"screenshots":  m.Screenshots,
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}

		if projects != nil {
			if err := tx.Model(m).Association("Projects").Replace(projects); err != nil {
				return err
			}
			m.Projects = projects
		}
		if spheres != nil {
			if err := tx.Model(m).Association("Spheres").Replace(spheres); err != nil {
				return err
			}
			m.Spheres = spheres
		}
		updated = true
		return nil
	})
	return updated, err
}

// MarkForDeletion flips an ACTIVE model to marked. false means the row was not ACTIVE.
func (r *ModelRepository) MarkForDeletion(ctx context.Context, id, by uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Model{}).
		Where("id = ? AND marked_for_deletion = ?", id, false).
		Updates(map[string]interface{}{
			"marked_for_deletion": true,
			"marked_by_id":        by,
			"marked_at":           at,
		})
	return res.RowsAffected == 1, res.Error
}

// Unmark clears a pending deletion request. false means the row was not marked.
func (r *ModelRepository) Unmark(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Model{}).
		Where("id = ? AND marked_for_deletion = ?", id, true).
		Updates(map[string]interface{}{
			"marked_for_deletion": false,
			"marked_by_id":        nil,
			"marked_at":           nil,
		})
	return res.RowsAffected == 1, res.Error
}

// MoveToTombstone deletes the model row only if it is still in the expected state,
// then writes the tombstone, all in one transaction. false means another caller
// changed the state first and nothing was written.
func (r *ModelRepository) MoveToTombstone(ctx context.Context, m *models.Model, expectMarked bool, tomb *models.DeletedModel) (bool, error) {
	var moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND marked_for_deletion = ?", m.ID, expectMarked).Delete(&models.Model{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}

		if err := tx.Exec("DELETE FROM model_projects WHERE model_id = ?", m.ID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM model_spheres WHERE model_id = ?", m.ID).Error; err != nil {
			return err
		}
		if err := tx.Table("logs").Where("model_id = ?", m.ID).Update("model_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Create(tomb).Error; err != nil {
			return err
		}
		moved = true
		return nil
	})
	return moved, err
}

// ModelsInSphere counts models tagged with the sphere.
func (r *ModelRepository) ModelsInSphere(ctx context.Context, sphereID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("model_spheres").Where("sphere_id = ?", sphereID).Count(&count).Error
	return count, err
}
