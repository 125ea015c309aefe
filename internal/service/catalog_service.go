package service

import (
	"context"
	"strings"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/database"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProjectInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
}

type ProjectService struct {
	projectRepo *repository.ProjectRepository
	audit       *AuditService
}

func NewProjectService(projectRepo *repository.ProjectRepository, audit *AuditService) *ProjectService {
	return &ProjectService{projectRepo: projectRepo, audit: audit}
}

func (s *ProjectService) List(ctx context.Context, actor *models.User) ([]models.Project, error) {
	if err := rbac.Require(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	out, err := s.projectRepo.ListProjects(ctx)
	if err != nil {
		return nil, apperr.Internal("list projects", err)
	}
	if out == nil {
		out = []models.Project{}
	}
	return out, nil
}

func (s *ProjectService) Get(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Project, error) {
	if err := rbac.Require(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *ProjectService) Create(ctx context.Context, actor *models.User, in ProjectInput) (*models.Project, error) {
	if err := rbac.Require(actor, rbac.ActionCreateProjects); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, in.Name, nil); err != nil {
		return nil, err
	}

	p := &models.Project{Name: in.Name, Description: strings.TrimSpace(in.Description)}
	if err := s.projectRepo.CreateProject(ctx, p); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("a project with this name already exists")
		}
		logger.Log.Error("Failed to create project", zap.String("name", in.Name), zap.Error(err))
		return nil, apperr.Internal("create project", err)
	}

	s.audit.Record(ctx, subjectAction(ActionProjectCreated, p.Name), &actor.ID, nil)
	logger.Log.Info("Project created", zap.String("project_id", p.ID.String()))
	return p, nil
}

func (s *ProjectService) Update(ctx context.Context, actor *models.User, id uuid.UUID, in ProjectInput) (*models.Project, error) {
	if err := rbac.Require(actor, rbac.ActionEditProjects); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, in.Name, &id); err != nil {
		return nil, err
	}

	p.Name = in.Name
	p.Description = strings.TrimSpace(in.Description)
	if err := s.projectRepo.UpdateProject(ctx, p); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("a project with this name already exists")
		}
		return nil, apperr.Internal("update project", err)
	}

	s.audit.Record(ctx, subjectAction(ActionProjectUpdated, p.Name), &actor.ID, nil)
	return p, nil
}

// Delete detaches the project from its models; the models stay.
func (s *ProjectService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if err := rbac.Require(actor, rbac.ActionEditProjects); err != nil {
		return err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.projectRepo.DeleteProject(ctx, id)
	if err != nil {
		return apperr.Internal("delete project", err)
	}
	if !deleted {
		return apperr.NotFound("project not found")
	}

	s.audit.Record(ctx, subjectAction(ActionProjectDeleted, p.Name), &actor.ID, nil)
	return nil
}

func (s *ProjectService) load(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := s.projectRepo.GetProjectByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load project", err)
	}
	if p == nil {
		return nil, apperr.NotFound("project not found")
	}
	return p, nil
}

func (s *ProjectService) ensureNameFree(ctx context.Context, name string, excludeID *uuid.UUID) error {
	taken, err := s.projectRepo.NameTaken(ctx, name, excludeID)
	if err != nil {
		return apperr.Internal("check project name", err)
	}
	if taken {
		return apperr.Conflict("a project with this name already exists")
	}
	return nil
}

type SphereService struct {
	sphereRepo *repository.SphereRepository
	audit      *AuditService
}

func NewSphereService(sphereRepo *repository.SphereRepository, audit *AuditService) *SphereService {
	return &SphereService{sphereRepo: sphereRepo, audit: audit}
}

func (s *SphereService) List(ctx context.Context, actor *models.User) ([]models.Sphere, error) {
	if err := rbac.Require(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	out, err := s.sphereRepo.ListSpheres(ctx)
	if err != nil {
		return nil, apperr.Internal("list spheres", err)
	}
	if out == nil {
		out = []models.Sphere{}
	}
	return out, nil
}

// Create rejects the reserved pseudo-category names in any letter case.
func (s *SphereService) Create(ctx context.Context, actor *models.User, name string) (*models.Sphere, error) {
	if err := rbac.Require(actor, rbac.ActionAddSphere); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, apperr.ValidationFields("invalid sphere", map[string]string{"name": "required"})
	case len([]rune(name)) > 100:
		return nil, apperr.ValidationFields("invalid sphere", map[string]string{"name": "must be at most 100 characters"})
	case models.IsReservedSphereName(name):
		return nil, apperr.ValidationFields("invalid sphere", map[string]string{"name": "this name is reserved"})
	}

	taken, err := s.sphereRepo.NameTaken(ctx, name, nil)
	if err != nil {
		return nil, apperr.Internal("check sphere name", err)
	}
	if taken {
		return nil, apperr.Conflict("a sphere with this name already exists")
	}

	sphere := &models.Sphere{Name: name}
	if err := s.sphereRepo.CreateSphere(ctx, sphere); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("a sphere with this name already exists")
		}
		return nil, apperr.Internal("create sphere", err)
	}

	s.audit.Record(ctx, subjectAction(ActionSphereCreated, sphere.Name), &actor.ID, nil)
	return sphere, nil
}

func (s *SphereService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if err := rbac.Require(actor, rbac.ActionDeleteSphere); err != nil {
		return err
	}

	sphere, err := s.sphereRepo.GetSphereByID(ctx, id)
	if err != nil {
		return apperr.Internal("load sphere", err)
	}
	if sphere == nil {
		return apperr.NotFound("sphere not found")
	}

	deleted, err := s.sphereRepo.DeleteSphere(ctx, id)
	if err != nil {
		return apperr.Internal("delete sphere", err)
	}
	if !deleted {
		return apperr.NotFound("sphere not found")
	}

	s.audit.Record(ctx, subjectAction(ActionSphereDeleted, sphere.Name), &actor.ID, nil)
	return nil
}
