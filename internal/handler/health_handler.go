package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db    *gorm.DB
	deps  map[string]Pinger
	start time.Time
}

// NewHealthHandler checks the database plus any named optional dependencies.
func NewHealthHandler(db *gorm.DB, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{db: db, deps: deps, start: time.Now()}
}

// Health GET /health. The database is required; other dependencies only degrade the status.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	status, code := "ok", http.StatusOK

	if err := pingDB(ctx, h.db); err != nil {
		checks["database"] = err.Error()
		status, code = "unavailable", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			if code == http.StatusOK {
				status = "degraded"
			}
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"uptime": time.Since(h.start).Round(time.Second).String(),
	})
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
