package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ModelHandler struct {
	models   *service.ModelService
	deletion *service.DeletionService
}

func NewModelHandler(models *service.ModelService, deletion *service.DeletionService) *ModelHandler {
	return &ModelHandler{models: models, deletion: deletion}
}

// List GET /models?projectId&sphere&markedForDeletion&includeAuthor&includeProjects&includeMarkedBy
func (h *ModelHandler) List(c *gin.Context) {
	projectID, err := optionalID("projectId", c.Query("projectId"))
	if err != nil {
		respondError(c, err)
		return
	}

	f := service.ModelListFilter{
		ProjectID:       projectID,
		Sphere:          c.Query("sphere"),
		IncludeAuthor:   queryBool(c, "includeAuthor"),
		IncludeProjects: queryBool(c, "includeProjects"),
		IncludeMarkedBy: queryBool(c, "includeMarkedBy"),
	}
	if f.Sphere == "" {
		f.Sphere = c.Query("sphereId")
	}
	if raw := c.Query("markedForDeletion"); raw != "" {
		marked, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, apperr.ValidationFields("invalid filter", map[string]string{"markedForDeletion": "must be a boolean"}))
			return
		}
		f.MarkedForDeletion = &marked
	}

	list, err := h.models.List(c.Request.Context(), middleware.CurrentUser(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CheckTitle GET /models/check-title?title&excludeId
func (h *ModelHandler) CheckTitle(c *gin.Context) {
	excludeID, err := optionalID("excludeId", c.Query("excludeId"))
	if err != nil {
		respondError(c, err)
		return
	}

	exists, err := h.models.TitleExists(c.Request.Context(), middleware.CurrentUser(c), c.Query("title"), excludeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// Get GET /models/:id
func (h *ModelHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	m, err := h.models.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Create POST /models (multipart: title, description, projectId, authorId, sphere, zipFile, screenshots)
func (h *ModelHandler) Create(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apperr.Validation("expected a multipart form"))
		return
	}

	in := service.CreateModelInput{
		Title:       first(form.Value["title"]),
		Description: first(form.Value["description"]),
	}
	if in.AuthorID, err = optionalID("authorId", first(form.Value["authorId"])); err != nil {
		respondError(c, err)
		return
	}
	if raw, ok := formValue(form, "projectId", "projectIds"); ok {
		if in.ProjectIDs, err = idList("projectId", raw); err != nil {
			respondError(c, err)
			return
		}
	}
	if raw, ok := formValue(form, "sphere", "sphereId", "sphereIds"); ok {
		if in.SphereIDs, err = idList("sphere", raw); err != nil {
			respondError(c, err)
			return
		}
	}

	uploads, closeAll, err := openUploads(formFiles(form, "zipFile"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeAll()
	if len(uploads) > 0 {
		in.Archive = &uploads[0]
	}

	shots, closeShots, err := openUploads(formFiles(form, "screenshots", "screenshots[]"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeShots()
	in.Screenshots = shots

	m, err := h.models.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// Update POST /models/update/:id. Absent fields keep their value. Sending
// keepScreenshots or new screenshots replaces the screenshot list with the
// kept paths followed by the uploads.
func (h *ModelHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apperr.Validation("expected a multipart form"))
		return
	}

	var in service.UpdateModelInput
	if v, ok := formValue(form, "title"); ok {
		in.Title = ptr(first(v))
	}
	if v, ok := formValue(form, "description"); ok {
		in.Description = ptr(first(v))
	}
	if v, ok := formValue(form, "authorId"); ok {
		if in.AuthorID, err = optionalID("authorId", first(v)); err != nil {
			respondError(c, err)
			return
		}
	}
	if raw, ok := formValue(form, "projectId", "projectIds"); ok {
		ids, err := idList("projectId", raw)
		if err != nil {
			respondError(c, err)
			return
		}
		in.ProjectIDs = &ids
	}
	if raw, ok := formValue(form, "sphere", "sphereId", "sphereIds"); ok {
		ids, err := idList("sphere", raw)
		if err != nil {
			respondError(c, err)
			return
		}
		in.SphereIDs = &ids
	}

	archives, closeArchive, err := openUploads(formFiles(form, "zipFile"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeArchive()
	if len(archives) > 0 {
		in.Archive = &archives[0]
	}

	shots, closeShots, err := openUploads(formFiles(form, "screenshots", "screenshots[]"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeShots()
	keep, keepSent := formValue(form, "keepScreenshots", "keepScreenshots[]")
	if keepSent || len(shots) > 0 {
		in.ScreenshotsSet = true
		in.KeepScreenshots = nonEmpty(keep)
		in.Screenshots = shots
	}

	m, err := h.models.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Download GET /models/:id/download
func (h *ModelHandler) Download(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	rc, name, err := h.models.OpenArchive(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", rc, map[string]string{
		"Content-Disposition": "attachment; filename=" + strconv.Quote(name),
	})
}

// RequestDeletion DELETE /models/:id
func (h *ModelHandler) RequestDeletion(c *gin.Context) {
	h.transition(c, h.deletion.RequestDeletion)
}

// Restore POST /models/:id/restore
func (h *ModelHandler) Restore(c *gin.Context) {
	h.transition(c, h.deletion.Restore)
}

// ConfirmDeletion POST /models/:id/confirm-deletion
func (h *ModelHandler) ConfirmDeletion(c *gin.Context) {
	h.transition(c, h.deletion.ConfirmPurge)
}

// ListMarked GET /models/marked
func (h *ModelHandler) ListMarked(c *gin.Context) {
	list, err := h.deletion.ListMarked(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type transitionFunc func(ctx context.Context, actor *models.User, id uuid.UUID) (*service.DeletionOutcome, error)

func (h *ModelHandler) transition(c *gin.Context, fn transitionFunc) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	actor := middleware.CurrentUser(c)
	outcome, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Log.Info("Model state changed",
		zap.String("model_id", id.String()),
		zap.String("state", outcome.State),
		zap.String("actor_id", actor.ID.String()),
	)
	c.JSON(http.StatusOK, outcome)
}

// openUploads opens every file header; the returned func closes them all.
func openUploads(headers []*multipart.FileHeader) ([]service.Upload, func(), error) {
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, apperr.Validation("unreadable upload: " + fh.Filename)
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{Name: fh.Filename, Reader: f})
	}
	return uploads, closeAll, nil
}

func queryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func nonEmpty(v []string) []string {
	out := make([]string, 0, len(v))
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
