package handler

import (
	"net/http"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

// AssetHandler exposes the remote asset store through the API.
type AssetHandler struct {
	assets *service.AssetService
}

func NewAssetHandler(assets *service.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// Upload POST /assets/upload (multipart: folder, file)
func (h *AssetHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperr.ValidationFields("file is required", map[string]string{"file": "required"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, apperr.Validation("unreadable upload"))
		return
	}
	defer f.Close()

	p, err := h.assets.Upload(c.Request.Context(), middleware.CurrentUser(c), c.PostForm("folder"),
		service.Upload{Name: fh.Filename, Reader: f})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": p})
}

// File GET /assets/file?path=
func (h *AssetHandler) File(c *gin.Context) {
	rc, contentType, err := h.assets.Fetch(c.Request.Context(), middleware.CurrentUser(c), c.Query("path"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

// Images GET /assets/images?folder=
func (h *AssetHandler) Images(c *gin.Context) {
	images, err := h.assets.ListImages(c.Request.Context(), middleware.CurrentUser(c), c.Query("folder"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}
