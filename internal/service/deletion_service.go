package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/storage"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Deletion outcome states.
const (
	StateMarked  = "MARKED_FOR_DELETION"
	StateDeleted = "DELETED"
	StateActive  = "ACTIVE"
	StatePurged  = "PURGED"
)

var (
	workflowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_deletion_transitions_total",
			Help: "Deletion workflow transitions, by transition name.",
		},
		[]string{"transition"},
	)
	assetDeleteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_asset_delete_failures_total",
		Help: "Remote asset deletions that failed during a purge.",
	})
)

// DeletionOutcome reports where a model ended up after a transition.
type DeletionOutcome struct {
	State          string     `json:"state"`
	ModelID        uuid.UUID  `json:"modelId"`
	DeletedModelID *uuid.UUID `json:"deletedModelId,omitempty"`
}

// DeletionService drives a model through
// ACTIVE -> MARKED_FOR_DELETION -> (ACTIVE | tombstone -> purged).
// Remote assets are only ever removed by FinalizePurge.
type DeletionService struct {
	modelRepo   *repository.ModelRepository
	deletedRepo *repository.DeletedModelRepository
	store       storage.AssetStore
	audit       *AuditService
	now         func() time.Time
}

func NewDeletionService(
	modelRepo *repository.ModelRepository,
	deletedRepo *repository.DeletedModelRepository,
	store storage.AssetStore,
	audit *AuditService,
) *DeletionService {
	return &DeletionService{
		modelRepo:   modelRepo,
		deletedRepo: deletedRepo,
		store:       store,
		audit:       audit,
		now:         time.Now,
	}
}

// RequestDeletion marks an ACTIVE model for deletion. An admin skips the
// approval step: the row goes straight to a tombstone awaiting FinalizePurge.
func (s *DeletionService) RequestDeletion(ctx context.Context, actor *models.User, modelID uuid.UUID) (*DeletionOutcome, error) {
	if err := rbac.Require(actor, rbac.ActionDeleteModels); err != nil {
		return nil, err
	}

	m, err := s.loadModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if m.MarkedForDeletion {
		return nil, apperr.InvalidState("model is already marked for deletion")
	}

	if actor.IsAdmin() {
		tomb := newTombstone(m, &actor.ID, &actor.ID)
		moved, err := s.modelRepo.MoveToTombstone(ctx, m, false, tomb)
		if err != nil {
			return nil, s.internal("delete model", modelID, err)
		}
		if !moved {
			return nil, apperr.InvalidState("model is no longer active")
		}

		workflowTransitionsTotal.WithLabelValues("delete").Inc()
		s.audit.Record(ctx, subjectAction(ActionModelDeleted, m.Title), &actor.ID, nil)

		logger.Log.Info("Model deleted by admin",
			zap.String("model_id", modelID.String()),
			zap.String("deleted_model_id", tomb.ID.String()),
			zap.String("actor_id", actor.ID.String()),
		)
		return &DeletionOutcome{State: StateDeleted, ModelID: modelID, DeletedModelID: &tomb.ID}, nil
	}

	marked, err := s.modelRepo.MarkForDeletion(ctx, modelID, actor.ID, s.now())
	if err != nil {
		return nil, s.internal("mark model", modelID, err)
	}
	if !marked {
		return nil, apperr.InvalidState("model is already marked for deletion")
	}

	workflowTransitionsTotal.WithLabelValues("request").Inc()
	s.audit.Record(ctx, subjectAction(ActionDeletionRequested, m.Title), &actor.ID, &modelID)

	logger.Log.Info("Model marked for deletion",
		zap.String("model_id", modelID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return &DeletionOutcome{State: StateMarked, ModelID: modelID}, nil
}

// Restore clears a pending deletion request.
func (s *DeletionService) Restore(ctx context.Context, actor *models.User, modelID uuid.UUID) (*DeletionOutcome, error) {
	if err := rbac.Require(actor, rbac.ActionRestoreModel); err != nil {
		return nil, err
	}

	m, err := s.loadModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !m.MarkedForDeletion {
		return nil, apperr.InvalidState("model is not marked for deletion")
	}

	restored, err := s.modelRepo.Unmark(ctx, modelID)
	if err != nil {
		return nil, s.internal("restore model", modelID, err)
	}
	if !restored {
		return nil, apperr.InvalidState("model is not marked for deletion")
	}

	workflowTransitionsTotal.WithLabelValues("restore").Inc()
	s.audit.Record(ctx, subjectAction(ActionModelRestored, m.Title), &actor.ID, &modelID)

	logger.Log.Info("Model restored",
		zap.String("model_id", modelID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return &DeletionOutcome{State: StateActive, ModelID: modelID}, nil
}

// ConfirmPurge approves a pending request: the row becomes a tombstone and
// its assets stay in place until FinalizePurge.
func (s *DeletionService) ConfirmPurge(ctx context.Context, actor *models.User, modelID uuid.UUID) (*DeletionOutcome, error) {
	if err := rbac.Require(actor, rbac.ActionConfirmDeletion); err != nil {
		return nil, err
	}

	m, err := s.loadModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !m.MarkedForDeletion {
		return nil, apperr.InvalidState("model is not marked for deletion")
	}

	tomb := newTombstone(m, m.MarkedByID, &actor.ID)
	moved, err := s.modelRepo.MoveToTombstone(ctx, m, true, tomb)
	if err != nil {
		return nil, s.internal("confirm deletion", modelID, err)
	}
	if !moved {
		return nil, apperr.InvalidState("model is no longer marked for deletion")
	}

	workflowTransitionsTotal.WithLabelValues("confirm").Inc()
	s.audit.Record(ctx, subjectAction(ActionDeletionConfirmed, m.Title), &actor.ID, nil)

	logger.Log.Info("Model deletion confirmed",
		zap.String("model_id", modelID.String()),
		zap.String("deleted_model_id", tomb.ID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return &DeletionOutcome{State: StateDeleted, ModelID: modelID, DeletedModelID: &tomb.ID}, nil
}

// FinalizePurge removes the tombstone's remote assets and then the tombstone.
// Asset failures are logged and never block the row deletion.
func (s *DeletionService) FinalizePurge(ctx context.Context, actor *models.User, deletedModelID uuid.UUID) (*DeletionOutcome, error) {
	if err := rbac.Require(actor, rbac.ActionFinalizePurge); err != nil {
		return nil, err
	}

	tomb, err := s.deletedRepo.GetDeletedModelByID(ctx, deletedModelID)
	if err != nil {
		return nil, s.internal("load deleted model", deletedModelID, err)
	}
	if tomb == nil {
		return nil, apperr.NotFound("deleted model not found")
	}

	// Issued deletes run to completion even if the caller goes away.
	assetCtx := context.WithoutCancel(ctx)
	s.purgeAssets(assetCtx, tomb)

	removed, err := s.deletedRepo.DeleteDeletedModel(ctx, deletedModelID)
	if err != nil {
		return nil, s.internal("delete tombstone", deletedModelID, err)
	}
	if !removed {
		return nil, apperr.NotFound("deleted model not found")
	}

	workflowTransitionsTotal.WithLabelValues("finalize").Inc()
	s.audit.Record(ctx, subjectAction(ActionModelPurged, tomb.Title), &actor.ID, nil)

	logger.Log.Info("Model purged",
		zap.String("deleted_model_id", deletedModelID.String()),
		zap.String("model_id", tomb.ModelID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return &DeletionOutcome{State: StatePurged, ModelID: tomb.ModelID, DeletedModelID: &deletedModelID}, nil
}

func (s *DeletionService) purgeAssets(ctx context.Context, tomb *models.DeletedModel) {
	folder := models.ModelFolder(tomb.ModelID)

	paths := append([]string{}, tomb.Screenshots...)
	if tomb.ArchivePath != "" && !strings.HasPrefix(tomb.ArchivePath, folder+"/") {
		paths = append(paths, tomb.ArchivePath)
	}

	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			if err := s.store.Delete(ctx, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
				assetDeleteFailuresTotal.Inc()
				logger.Log.Warn("Failed to delete asset during purge",
					zap.String("path", p),
					zap.String("model_id", tomb.ModelID.String()),
					zap.Error(err),
				)
			}
		}(p)
	}
	wg.Wait()

	if err := s.store.DeleteFolder(ctx, folder); err != nil && !errors.Is(err, storage.ErrNotFound) {
		assetDeleteFailuresTotal.Inc()
		logger.Log.Warn("Failed to delete model folder during purge",
			zap.String("folder", folder),
			zap.Error(err),
		)
	}
}

// ListMarked returns models awaiting deletion approval.
func (s *DeletionService) ListMarked(ctx context.Context, actor *models.User) ([]models.Model, error) {
	if err := rbac.Require(actor, rbac.ActionConfirmDeletion); err != nil {
		return nil, err
	}
	marked := true
	out, err := s.modelRepo.ListModels(ctx, repository.ModelFilter{
		MarkedForDeletion: &marked,
		IncludeAuthor:     true,
		IncludeMarkedBy:   true,
	})
	if err != nil {
		return nil, apperr.Internal("list marked models", err)
	}
	return out, nil
}

func (s *DeletionService) ListDeleted(ctx context.Context, actor *models.User) ([]models.DeletedModel, error) {
	if err := rbac.Require(actor, rbac.ActionFinalizePurge); err != nil {
		return nil, err
	}
	out, err := s.deletedRepo.ListDeletedModels(ctx)
	if err != nil {
		return nil, apperr.Internal("list deleted models", err)
	}
	if out == nil {
		out = []models.DeletedModel{}
	}
	return out, nil
}

func (s *DeletionService) GetDeleted(ctx context.Context, actor *models.User, id uuid.UUID) (*models.DeletedModel, error) {
	if err := rbac.Require(actor, rbac.ActionFinalizePurge); err != nil {
		return nil, err
	}
	tomb, err := s.deletedRepo.GetDeletedModelByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load deleted model", err)
	}
	if tomb == nil {
		return nil, apperr.NotFound("deleted model not found")
	}
	return tomb, nil
}

func (s *DeletionService) loadModel(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	m, err := s.modelRepo.GetModelByID(ctx, id)
	if err != nil {
		return nil, s.internal("load model", id, err)
	}
	if m == nil {
		return nil, apperr.NotFound("model not found")
	}
	return m, nil
}

func (s *DeletionService) internal(op string, id uuid.UUID, err error) error {
	logger.Log.Error("Deletion workflow failure",
		zap.String("op", op),
		zap.String("id", id.String()),
		zap.Error(err),
	)
	return apperr.Internal(op, err)
}

func newTombstone(m *models.Model, requestedBy, deletedBy *uuid.UUID) *models.DeletedModel {
	screenshots := append([]string{}, m.Screenshots...)
	return &models.DeletedModel{
		ModelID:       m.ID,
		Title:         m.Title,
		ArchivePath:   m.ArchivePath,
		Screenshots:   screenshots,
		RequestedByID: requestedBy,
		DeletedByID:   deletedBy,
	}
}

// subjectAction renders an audit text naming its subject.
func subjectAction(action, title string) string {
	return fmt.Sprintf("%s «%s»", action, title)
}
