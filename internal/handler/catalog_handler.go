package handler

import (
	"net/http"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projects *service.ProjectService
}

func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// List GET /projects
func (h *ProjectHandler) List(c *gin.Context) {
	list, err := h.projects.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.projects.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	p, err := h.projects.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update PUT /projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	p, err := h.projects.Update(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.projects.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

type SphereHandler struct {
	spheres *service.SphereService
}

func NewSphereHandler(spheres *service.SphereService) *SphereHandler {
	return &SphereHandler{spheres: spheres}
}

type CreateSphereRequest struct {
	Name string `json:"name"`
}

// List GET /spheres
func (h *SphereHandler) List(c *gin.Context) {
	list, err := h.spheres.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Create POST /spheres
func (h *SphereHandler) Create(c *gin.Context) {
	var req CreateSphereRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	sphere, err := h.spheres.Create(c.Request.Context(), middleware.CurrentUser(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sphere)
}

// Delete DELETE /spheres/:id
func (h *SphereHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.spheres.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
