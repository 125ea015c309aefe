package repository

import (
	"context"
	"strings"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"gorm.io/gorm"
)

// LogFilter narrows an audit query. Empty fields are ignored.
type LogFilter struct {
	Action   string
	User     string
	DateFrom *time.Time
	DateTo   *time.Time
}

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) CreateLog(ctx context.Context, entry *models.LogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// BatchInsert bulk inserts entries recovered from the spool.
func (r *LogRepository) BatchInsert(ctx context.Context, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(entries, 500).Error
}

// QueryLogs returns one page of entries, newest first, and the total match count.
func (r *LogRepository) QueryLogs(ctx context.Context, f LogFilter, offset, limit int) ([]models.LogEntry, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.LogEntry
	err := r.filtered(ctx, f).
		Select("logs.*").
		Preload("User").
		Order("logs.created_at DESC").
		Order("logs.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	return entries, total, err
}

func (r *LogRepository) filtered(ctx context.Context, f LogFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.LogEntry{})

	if a := strings.TrimSpace(f.Action); a != "" {
		q = q.Where("LOWER(logs.action) LIKE ?", "%"+strings.ToLower(a)+"%")
	}
	if u := strings.TrimSpace(f.User); u != "" {
		like := "%" + strings.ToLower(u) + "%"
		q = q.Joins("LEFT JOIN users ON users.id = logs.user_id").
			Where("LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ?", like, like)
	}
	if f.DateFrom != nil {
		q = q.Where("logs.created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("logs.created_at <= ?", *f.DateTo)
	}
	return q
}
