package service

import (
	"context"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/broker"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/spool"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// LogPageSize is the fixed number of audit entries per page.
const LogPageSize = 20

// Audit action texts shown in the admin panel.
const (
	ActionLogin             = "Вход в систему"
	ActionModelUploaded     = "Загрузка модели"
	ActionModelUpdated      = "Редактирование модели"
	ActionModelDownloaded   = "Скачивание модели"
	ActionDeletionRequested = "Запрос на удаление модели"
	ActionModelDeleted      = "Удаление модели"
	ActionModelRestored     = "Восстановление модели"
	ActionDeletionConfirmed = "Подтверждение удаления модели"
	ActionModelPurged       = "Окончательное удаление модели"
	ActionProjectCreated    = "Создание проекта"
	ActionProjectUpdated    = "Редактирование проекта"
	ActionProjectDeleted    = "Удаление проекта"
	ActionSphereCreated     = "Создание сферы"
	ActionSphereDeleted     = "Удаление сферы"
	ActionEmployeeCreated   = "Создание сотрудника"
	ActionEmployeeUpdated   = "Редактирование сотрудника"
	ActionEmployeeDeleted   = "Удаление сотрудника"
)

var (
	auditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_audit_records_total",
			Help: "Audit entries recorded, by outcome (stored, spooled, dropped).",
		},
		[]string{"outcome"},
	)
)

// LogPage is one page of audit entries.
type LogPage struct {
	Logs        []models.LogEntry `json:"logs"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	TotalCount  int64             `json:"totalCount"`
}

type AuditService struct {
	logRepo *repository.LogRepository
	spool   *spool.Spool
	broker  broker.LogBroker
}

// NewAuditService accepts a nil spool (failures are then only logged) and a nil broker.
func NewAuditService(logRepo *repository.LogRepository, sp *spool.Spool, b broker.LogBroker) *AuditService {
	if b == nil {
		b = broker.NopBroker{}
	}
	return &AuditService{logRepo: logRepo, spool: sp, broker: b}
}

// Record appends an audit entry. It never fails the caller: a database error is
// logged and the entry is spooled to disk for ReplaySpool.
func (s *AuditService) Record(ctx context.Context, action string, actorID, modelID *uuid.UUID) {
	// The business operation already happened; finish the write even if the client left.
	ctx = context.WithoutCancel(ctx)

	entry := &models.LogEntry{
		Action:    action,
		UserID:    actorID,
		ModelID:   modelID,
		CreatedAt: time.Now(),
	}

	if err := s.logRepo.CreateLog(ctx, entry); err != nil {
		logger.Log.Error("Failed to store audit entry",
			zap.String("action", action),
			zap.Error(err),
		)
		s.spoolEntry(entry)
		return
	}
	auditRecordsTotal.WithLabelValues("stored").Inc()

	ev := broker.LogEvent{
		ID:        entry.ID,
		Action:    entry.Action,
		UserID:    entry.UserID,
		ModelID:   entry.ModelID,
		CreatedAt: entry.CreatedAt,
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		logger.Log.Warn("Failed to publish audit entry",
			zap.Uint64("log_id", entry.ID),
			zap.Error(err),
		)
	}
}

func (s *AuditService) spoolEntry(entry *models.LogEntry) {
	if s.spool == nil {
		auditRecordsTotal.WithLabelValues("dropped").Inc()
		return
	}

	err := s.spool.Append(spool.Entry{
		Action:    entry.Action,
		UserID:    entry.UserID,
		ModelID:   entry.ModelID,
		Timestamp: entry.CreatedAt,
	})
	if err != nil {
		auditRecordsTotal.WithLabelValues("dropped").Inc()
		logger.Log.Error("Failed to spool audit entry, entry lost",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return
	}
	auditRecordsTotal.WithLabelValues("spooled").Inc()
}

// ReplaySpool moves spooled entries into the database and compacts the spool.
// Model references are dropped because the model may be gone by now.
func (s *AuditService) ReplaySpool(ctx context.Context) (int, error) {
	if s.spool == nil {
		return 0, nil
	}

	entries, err := s.spool.ReadAll()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	rows := make([]models.LogEntry, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.LogEntry{
			Action:    e.Action,
			UserID:    e.UserID,
			CreatedAt: e.Timestamp,
		})
		ids = append(ids, e.ID)
	}

	if err := s.logRepo.BatchInsert(ctx, rows); err != nil {
		logger.Log.Error("Failed to replay audit spool",
			zap.Int("entries", len(rows)),
			zap.Error(err),
		)
		return 0, err
	}

	if err := s.spool.Remove(ids); err != nil {
		logger.Log.Error("Failed to compact audit spool", zap.Error(err))
		return len(rows), err
	}

	logger.Log.Info("Audit spool replayed", zap.Int("entries", len(rows)))
	return len(rows), nil
}

// ReplayLoop retries the spool every interval until ctx is done.
func (s *AuditService) ReplayLoop(ctx context.Context, interval time.Duration) {
	if s.spool == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Errors are logged by ReplaySpool; the next tick retries.
			_, _ = s.ReplaySpool(ctx)
		}
	}
}

// Query returns one page of entries, newest first. Pages below 1 are treated as 1.
func (s *AuditService) Query(ctx context.Context, f repository.LogFilter, page int) (*LogPage, error) {
	if page < 1 {
		page = 1
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return nil, apperr.ValidationFields("invalid date range", map[string]string{
			"dateTo": "must not be before dateFrom",
		})
	}

	entries, total, err := s.logRepo.QueryLogs(ctx, f, (page-1)*LogPageSize, LogPageSize)
	if err != nil {
		return nil, apperr.Internal("query logs", err)
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}

	return &LogPage{
		Logs:        entries,
		TotalPages:  int((total + LogPageSize - 1) / LogPageSize),
		CurrentPage: page,
		TotalCount:  total,
	}, nil
}

// Subscribe streams newly recorded entries until ctx is done.
func (s *AuditService) Subscribe(ctx context.Context) (<-chan broker.LogEvent, error) {
	ch, err := s.broker.Subscribe(ctx)
	if err != nil {
		return nil, apperr.Upstream("subscribe to audit feed", err)
	}
	return ch, nil
}
