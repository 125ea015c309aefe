package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) CreateProject(ctx context.Context, p *models.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProjectRepository) GetProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// FindProjects returns the projects among ids that exist.
func (r *ProjectRepository) FindProjects(ctx context.Context, ids []uuid.UUID) ([]models.Project, error) {
	out := []models.Project{}
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *ProjectRepository) NameTaken(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Project{}).Where("name = ?", strings.TrimSpace(name))
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *ProjectRepository) UpdateProject(ctx context.Context, p *models.Project) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// DeleteProject detaches the project from its models before removing it.
func (r *ProjectRepository) DeleteProject(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM model_projects WHERE project_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Project{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected == 1
		return nil
	})
	return deleted, err
}

type SphereRepository struct {
	db *gorm.DB
}

func NewSphereRepository(db *gorm.DB) *SphereRepository {
	return &SphereRepository{db: db}
}

func (r *SphereRepository) CreateSphere(ctx context.Context, s *models.Sphere) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SphereRepository) GetSphereByID(ctx context.Context, id uuid.UUID) (*models.Sphere, error) {
	var s models.Sphere
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SphereRepository) ListSpheres(ctx context.Context) ([]models.Sphere, error) {
	var out []models.Sphere
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *SphereRepository) FindSpheres(ctx context.Context, ids []uuid.UUID) ([]models.Sphere, error) {
	out := []models.Sphere{}
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *SphereRepository) NameTaken(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Sphere{}).Where("name = ?", strings.TrimSpace(name))
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *SphereRepository) UpdateSphere(ctx context.Context, s *models.Sphere) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// DeleteSphere untags models and clears user scopes pointing at the sphere.
func (r *SphereRepository) DeleteSphere(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM model_spheres WHERE sphere_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("sphere_id = ?", id).Update("sphere_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Sphere{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected == 1
		return nil
	})
	return deleted, err
}
