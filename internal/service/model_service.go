package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/database"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/storage"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateModelInput struct {
	Title       string
	Description string
	AuthorID    *uuid.UUID
	ProjectIDs  []uuid.UUID
	SphereIDs   []uuid.UUID
	Archive     *Upload
	Screenshots []Upload
}

// UpdateModelInput is a partial update: nil fields keep their current value.
// When ScreenshotsSet is true the new list is KeepScreenshots (existing paths,
// in the given order) followed by the uploaded Screenshots.
type UpdateModelInput struct {
	Title           *string
	Description     *string
	AuthorID        *uuid.UUID
	ProjectIDs      *[]uuid.UUID
	SphereIDs       *[]uuid.UUID
	Archive         *Upload
	ScreenshotsSet  bool
	KeepScreenshots []string
	Screenshots     []Upload
}

func (in UpdateModelInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.AuthorID == nil &&
		in.ProjectIDs == nil && in.SphereIDs == nil && in.Archive == nil && !in.ScreenshotsSet
}

// ModelListFilter mirrors the catalogue query string. Sphere may be a sphere id
// or "none" for models without any sphere.
type ModelListFilter struct {
	ProjectID         *uuid.UUID
	Sphere            string
	MarkedForDeletion *bool
	IncludeAuthor     bool
	IncludeProjects   bool
	IncludeMarkedBy   bool
}

type ModelService struct {
	modelRepo   *repository.ModelRepository
	projectRepo *repository.ProjectRepository
	sphereRepo  *repository.SphereRepository
	userRepo    *repository.UserRepository
	assets      *AssetService
	audit       *AuditService
}

func NewModelService(
	modelRepo *repository.ModelRepository,
	projectRepo *repository.ProjectRepository,
	sphereRepo *repository.SphereRepository,
	userRepo *repository.UserRepository,
	assets *AssetService,
	audit *AuditService,
) *ModelService {
	return &ModelService{
		modelRepo:   modelRepo,
		projectRepo: projectRepo,
		sphereRepo:  sphereRepo,
		userRepo:    userRepo,
		assets:      assets,
		audit:       audit,
	}
}

func (s *ModelService) List(ctx context.Context, actor *models.User, f ModelListFilter) ([]models.Model, error) {
	if err := rbac.Require(actor, rbac.ActionRead); err != nil {
		return nil, err
	}

	rf := repository.ModelFilter{
		ProjectID:         f.ProjectID,
		MarkedForDeletion: f.MarkedForDeletion,
		IncludeAuthor:     f.IncludeAuthor,
		IncludeProjects:   f.IncludeProjects,
		IncludeMarkedBy:   f.IncludeMarkedBy,
	}
	switch sphere := strings.TrimSpace(f.Sphere); {
	case sphere == "" || strings.EqualFold(sphere, "all"):
	case strings.EqualFold(sphere, "none"):
		rf.WithoutSphere = true
	default:
		id, err := uuid.Parse(sphere)
		if err != nil {
			return nil, apperr.ValidationFields("invalid sphere", map[string]string{"sphereId": "must be a UUID or none"})
		}
		rf.SphereID = &id
	}

	out, err := s.modelRepo.ListModels(ctx, rf)
	if err != nil {
		logger.Log.Error("Failed to list models", zap.Error(err))
		return nil, apperr.Internal("list models", err)
	}
	if out == nil {
		out = []models.Model{}
	}
	return out, nil
}

func (s *ModelService) Get(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Model, error) {
	if err := rbac.Require(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// TitleExists is the case-insensitive uniqueness pre-check used by the upload form.
func (s *ModelService) TitleExists(ctx context.Context, actor *models.User, title string, excludeID *uuid.UUID) (bool, error) {
	if err := rbac.Require(actor, rbac.ActionRead); err != nil {
		return false, err
	}
	if strings.TrimSpace(title) == "" {
		return false, apperr.ValidationFields("title is required", map[string]string{"title": "required"})
	}
	exists, err := s.modelRepo.TitleExists(ctx, title, excludeID)
	if err != nil {
		return false, apperr.Internal("check title", err)
	}
	return exists, nil
}

// Create uploads the archive and screenshots, then inserts the row. Upload
// failures abort the request.
func (s *ModelService) Create(ctx context.Context, actor *models.User, in CreateModelInput) (*models.Model, error) {
	if err := rbac.Require(actor, rbac.ActionUploadModels); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	fields := map[string]string{}
	if title == "" {
		fields["title"] = "required"
	}
	if in.Archive == nil {
		fields["zipFile"] = "required"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("invalid model", fields)
	}

	if err := s.ensureTitleFree(ctx, title, nil); err != nil {
		return nil, err
	}
	projects, err := s.resolveProjects(ctx, in.ProjectIDs)
	if err != nil {
		return nil, err
	}
	spheres, err := s.resolveSpheres(ctx, in.SphereIDs)
	if err != nil {
		return nil, err
	}
	authorID, err := s.resolveAuthor(ctx, actor, in.AuthorID)
	if err != nil {
		return nil, err
	}

	m := &models.Model{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		AuthorID:    authorID,
		Projects:    projects,
		Spheres:     spheres,
	}
	folder := models.ModelFolder(m.ID)

	archivePath, err := storage.Join(folder, in.Archive.Name)
	if err != nil {
		return nil, apperr.ValidationFields("invalid archive", map[string]string{"zipFile": err.Error()})
	}
	m.ArchivePath = archivePath
	if err := s.assets.put(ctx, m.ArchivePath, in.Archive.Reader); err != nil {
		s.assets.discardFolder(ctx, folder)
		return nil, err
	}
	shots, err := s.uploadScreenshots(ctx, folder, in.Screenshots)
	if err != nil {
		s.assets.discardFolder(ctx, folder)
		return nil, err
	}
	m.Screenshots = shots

	if err := s.modelRepo.CreateModel(ctx, m); err != nil {
		s.assets.discardFolder(ctx, folder)
		if database.IsUniqueViolation(err) {
			return nil, titleConflict(title)
		}
		logger.Log.Error("Failed to create model", zap.String("title", title), zap.Error(err))
		return nil, apperr.Internal("create model", err)
	}

	s.audit.Record(ctx, subjectAction(ActionModelUploaded, m.Title), &actor.ID, &m.ID)

	logger.Log.Info("Model created",
		zap.String("model_id", m.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Int("screenshots", len(m.Screenshots)),
	)
	return s.load(ctx, m.ID)
}

// Update applies a partial edit. Each present field is authorised on its own
// before anything is uploaded or written.
func (s *ModelService) Update(ctx context.Context, actor *models.User, id uuid.UUID, in UpdateModelInput) (*models.Model, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	if err := authorizeModelUpdate(actor, in); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, apperr.Validation("nothing to update")
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.MarkedForDeletion {
		return nil, apperr.InvalidState("model is marked for deletion")
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.ValidationFields("invalid model", map[string]string{"title": "required"})
		}
		if err := s.ensureTitleFree(ctx, title, &m.ID); err != nil {
			return nil, err
		}
		m.Title = title
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.AuthorID != nil {
		authorID, err := s.resolveAuthor(ctx, actor, in.AuthorID)
		if err != nil {
			return nil, err
		}
		m.AuthorID = authorID
	}

	var projects []models.Project
	if in.ProjectIDs != nil {
		if projects, err = s.resolveProjects(ctx, *in.ProjectIDs); err != nil {
			return nil, err
		}
	}
	var spheres []models.Sphere
	if in.SphereIDs != nil {
		if spheres, err = s.resolveSpheres(ctx, *in.SphereIDs); err != nil {
			return nil, err
		}
	}

	var kept, dropped []string
	if in.ScreenshotsSet {
		kept, dropped, err = splitScreenshots(m.Screenshots, in.KeepScreenshots)
		if err != nil {
			return nil, err
		}
	}

	folder := models.ModelFolder(m.ID)
	var obsolete, fresh []string

	if in.Archive != nil {
		newPath, err := storage.Join(folder, in.Archive.Name)
		if err != nil {
			return nil, apperr.ValidationFields("invalid archive", map[string]string{"zipFile": err.Error()})
		}
		if err := s.assets.put(ctx, newPath, in.Archive.Reader); err != nil {
			return nil, err
		}
		if m.ArchivePath != newPath {
			fresh = append(fresh, newPath)
			if m.ArchivePath != "" {
				obsolete = append(obsolete, m.ArchivePath)
			}
		}
		m.ArchivePath = newPath
	}
	if in.ScreenshotsSet {
		uploaded, err := s.uploadScreenshots(ctx, folder, in.Screenshots)
		if err != nil {
			s.discardAll(ctx, fresh)
			return nil, err
		}
		m.Screenshots = append(kept, uploaded...)
		obsolete = append(obsolete, dropped...)
		fresh = append(fresh, uploaded...)
	}

	updated, err := s.modelRepo.UpdateModel(ctx, m, projects, spheres)
	if err != nil {
		s.discardAll(ctx, fresh)
		if database.IsUniqueViolation(err) {
			return nil, titleConflict(m.Title)
		}
		logger.Log.Error("Failed to update model", zap.String("model_id", id.String()), zap.Error(err))
		return nil, apperr.Internal("update model", err)
	}
	if !updated {
		s.discardAll(ctx, fresh)
		logger.Log.Warn("Model changed state during update",
			zap.String("model_id", id.String()),
			zap.String("actor_id", actor.ID.String()),
		)
		return nil, apperr.InvalidState("model is marked for deletion or was removed")
	}

	for _, p := range obsolete {
		s.assets.discard(ctx, p)
	}

	s.audit.Record(ctx, subjectAction(ActionModelUpdated, m.Title), &actor.ID, &m.ID)

	logger.Log.Info("Model updated",
		zap.String("model_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return s.load(ctx, id)
}

// authorizeModelUpdate checks every present field against its permission.
func authorizeModelUpdate(actor *models.User, in UpdateModelInput) error {
	if in.Title != nil || in.ProjectIDs != nil || in.AuthorID != nil || in.Archive != nil {
		if err := rbac.Require(actor, rbac.ActionEditModels); err != nil {
			return err
		}
	}
	if in.Description != nil {
		if err := rbac.RequireAny(actor, rbac.ActionEditModelDescription, rbac.ActionEditModels); err != nil {
			return err
		}
	}
	if in.SphereIDs != nil {
		if err := rbac.RequireAny(actor, rbac.ActionEditModelSphere, rbac.ActionEditModels); err != nil {
			return err
		}
	}
	if in.ScreenshotsSet {
		if err := rbac.RequireAny(actor, rbac.ActionEditModelScreenshots, rbac.ActionEditModels); err != nil {
			return err
		}
	}
	return nil
}

// OpenArchive streams the model archive and records the download.
func (s *ModelService) OpenArchive(ctx context.Context, actor *models.User, id uuid.UUID) (io.ReadCloser, string, error) {
	if err := rbac.Require(actor, rbac.ActionDownloadModels); err != nil {
		return nil, "", err
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if m.ArchivePath == "" {
		return nil, "", apperr.NotFound("model has no archive")
	}

	rc, err := s.assets.open(ctx, m.ArchivePath)
	if err != nil {
		return nil, "", err
	}

	s.audit.Record(ctx, subjectAction(ActionModelDownloaded, m.Title), &actor.ID, &m.ID)
	return rc, path.Base(m.ArchivePath), nil
}

func (s *ModelService) load(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	m, err := s.modelRepo.GetModelByID(ctx, id)
	if err != nil {
		logger.Log.Error("Failed to load model", zap.String("model_id", id.String()), zap.Error(err))
		return nil, apperr.Internal("load model", err)
	}
	if m == nil {
		return nil, apperr.NotFound("model not found")
	}
	return m, nil
}

func (s *ModelService) ensureTitleFree(ctx context.Context, title string, excludeID *uuid.UUID) error {
	exists, err := s.modelRepo.TitleExists(ctx, title, excludeID)
	if err != nil {
		return apperr.Internal("check title", err)
	}
	if exists {
		return titleConflict(title)
	}
	return nil
}

func (s *ModelService) resolveProjects(ctx context.Context, ids []uuid.UUID) ([]models.Project, error) {
	ids = uniqueIDs(ids)
	found, err := s.projectRepo.FindProjects(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load projects", err)
	}
	if len(found) != len(ids) {
		return nil, apperr.ValidationFields("unknown project", map[string]string{"projectId": "does not exist"})
	}
	return found, nil
}

func (s *ModelService) resolveSpheres(ctx context.Context, ids []uuid.UUID) ([]models.Sphere, error) {
	ids = uniqueIDs(ids)
	found, err := s.sphereRepo.FindSpheres(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load spheres", err)
	}
	if len(found) != len(ids) {
		return nil, apperr.ValidationFields("unknown sphere", map[string]string{"sphere": "does not exist"})
	}
	return found, nil
}

// resolveAuthor defaults to the actor when no author is given.
func (s *ModelService) resolveAuthor(ctx context.Context, actor *models.User, authorID *uuid.UUID) (*uuid.UUID, error) {
	if authorID == nil || *authorID == actor.ID {
		return &actor.ID, nil
	}
	author, err := s.userRepo.GetUserByID(ctx, *authorID)
	if err != nil {
		return nil, apperr.Internal("load author", err)
	}
	if author == nil {
		return nil, apperr.ValidationFields("unknown author", map[string]string{"authorId": "does not exist"})
	}
	return &author.ID, nil
}

// discardAll removes assets written by a request that then failed.
func (s *ModelService) discardAll(ctx context.Context, paths []string) {
	for _, p := range paths {
		s.assets.discard(ctx, p)
	}
}

func (s *ModelService) uploadScreenshots(ctx context.Context, folder string, ups []Upload) ([]string, error) {
	out := make([]string, 0, len(ups))
	for _, up := range ups {
		base, err := storage.BaseName(up.Name)
		if err != nil {
			s.discardAll(ctx, out)
			return nil, apperr.ValidationFields("invalid screenshot", map[string]string{"screenshots": err.Error()})
		}
		p := folder + "/screenshots/" + fmt.Sprintf("%s_%s", uuid.NewString()[:8], base)
		if err := s.assets.put(ctx, p, up.Reader); err != nil {
			s.discardAll(ctx, out)
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// splitScreenshots orders the kept paths as requested and returns the rest as dropped.
// Paths that do not belong to the model are rejected.
func splitScreenshots(current []string, keep []string) (kept, dropped []string, err error) {
	owned := make(map[string]bool, len(current))
	for _, p := range current {
		owned[p] = true
	}

	kept = make([]string, 0, len(keep))
	seen := make(map[string]bool, len(keep))
	for _, p := range keep {
		if !owned[p] {
			return nil, nil, apperr.ValidationFields("unknown screenshot", map[string]string{"screenshots": p + " does not belong to the model"})
		}
		if !seen[p] {
			seen[p] = true
			kept = append(kept, p)
		}
	}
	for _, p := range current {
		if !seen[p] {
			dropped = append(dropped, p)
		}
	}
	return kept, dropped, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func titleConflict(title string) error {
	return &apperr.Error{
		Kind:    apperr.KindConflict,
		Message: "a model with this title already exists",
		Fields:  map[string]string{"title": title},
	}
}
