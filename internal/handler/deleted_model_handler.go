package handler

import (
	"net/http"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeletedModelHandler serves tombstones awaiting the final purge.
type DeletedModelHandler struct {
	deletion *service.DeletionService
}

func NewDeletedModelHandler(deletion *service.DeletionService) *DeletedModelHandler {
	return &DeletedModelHandler{deletion: deletion}
}

// List GET /deleted-models
func (h *DeletedModelHandler) List(c *gin.Context) {
	list, err := h.deletion.ListDeleted(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get GET /deleted-models/:id
func (h *DeletedModelHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	tomb, err := h.deletion.GetDeleted(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tomb)
}

// Purge DELETE /deleted-models/:id
func (h *DeletedModelHandler) Purge(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	actor := middleware.CurrentUser(c)
	outcome, err := h.deletion.FinalizePurge(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Log.Info("Model purged",
		zap.String("deleted_model_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	c.JSON(http.StatusOK, outcome)
}
