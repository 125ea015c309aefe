package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type LogHandler struct {
	audit *service.AuditService
}

func NewLogHandler(audit *service.AuditService) *LogHandler {
	return &LogHandler{audit: audit}
}

// List GET /logs?page&action&user&dateFrom&dateTo
func (h *LogHandler) List(c *gin.Context) {
	if err := rbac.Require(middleware.CurrentUser(c), rbac.ActionViewLogs); err != nil {
		respondError(c, err)
		return
	}

	f := repository.LogFilter{
		Action: strings.TrimSpace(c.Query("action")),
		User:   strings.TrimSpace(c.Query("user")),
	}
	var err error
	if f.DateFrom, err = parseDate("dateFrom", c.Query("dateFrom"), false); err != nil {
		respondError(c, err)
		return
	}
	if f.DateTo, err = parseDate("dateTo", c.Query("dateTo"), true); err != nil {
		respondError(c, err)
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			respondError(c, apperr.ValidationFields("invalid page", map[string]string{"page": "must be a number"}))
			return
		}
	}

	result, err := h.audit.Query(c.Request.Context(), f, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// parseDate accepts RFC 3339 or a bare YYYY-MM-DD. A bare end date covers the
// whole day.
func parseDate(field, raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperr.ValidationFields("invalid date", map[string]string{field: "expected YYYY-MM-DD or RFC 3339"})
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
