package handler

import (
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every endpoint handler the router mounts.
type Handlers struct {
	Auth          *AuthHandler
	Models        *ModelHandler
	DeletedModels *DeletedModelHandler
	Projects      *ProjectHandler
	Spheres       *SphereHandler
	Employees     *EmployeeHandler
	Logs          *LogHandler
	LogStream     *LogStreamHandler
	Assets        *AssetHandler
	Health        *HealthHandler
}

type RouterConfig struct {
	Sessions     *service.SessionService
	LoginLimiter *middleware.RateLimiter // nil disables login rate limiting
	CORSOrigins  []string
	IsProduction bool
}

// NewRouter wires middleware and routes. Route guards mirror the checks the
// services perform themselves.
func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.MetricsMiddleware(),
		middleware.SecurityHeaders(middleware.SecurityConfig{
			IsProduction: cfg.IsProduction,
			AssetRoutes:  []string{"/assets/file", "/models/:id/download"},
		}),
		cors.New(corsConfig(cfg.CORSOrigins)),
		middleware.SessionMiddleware(cfg.Sessions),
		middleware.AccessLog(),
	)

	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		login := []gin.HandlerFunc{}
		if cfg.LoginLimiter != nil {
			login = append(login, cfg.LoginLimiter.Middleware())
		}
		auth.POST("/login", append(login, h.Auth.Login)...)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", h.Auth.Me)
	}

	api := router.Group("/", middleware.RequireUser())
	admin := middleware.RequireAdmin()

	models := api.Group("/models")
	{
		models.GET("", h.Models.List)
		models.GET("/check-title", h.Models.CheckTitle)
		models.GET("/marked", admin, h.Models.ListMarked)
		models.GET("/:id", h.Models.Get)
		models.POST("", middleware.RequirePermission(rbac.ActionUploadModels), h.Models.Create)
		models.POST("/update/:id", h.Models.Update)
		models.GET("/:id/download", middleware.RequirePermission(rbac.ActionDownloadModels), h.Models.Download)
		models.DELETE("/:id", middleware.RequirePermission(rbac.ActionDeleteModels), h.Models.RequestDeletion)
		models.POST("/:id/restore", admin, h.Models.Restore)
		models.POST("/:id/confirm-deletion", admin, h.Models.ConfirmDeletion)
	}

	deleted := api.Group("/deleted-models", admin)
	{
		deleted.GET("", h.DeletedModels.List)
		deleted.GET("/:id", h.DeletedModels.Get)
		deleted.DELETE("/:id", h.DeletedModels.Purge)
	}

	projects := api.Group("/projects")
	{
		projects.GET("", h.Projects.List)
		projects.GET("/:id", h.Projects.Get)
		projects.POST("", middleware.RequirePermission(rbac.ActionCreateProjects), h.Projects.Create)
		projects.PUT("/:id", middleware.RequirePermission(rbac.ActionEditProjects), h.Projects.Update)
		projects.DELETE("/:id", middleware.RequirePermission(rbac.ActionEditProjects), h.Projects.Delete)
	}

	spheres := api.Group("/spheres")
	{
		spheres.GET("", h.Spheres.List)
		spheres.POST("", middleware.RequirePermission(rbac.ActionAddSphere), h.Spheres.Create)
		spheres.DELETE("/:id", admin, h.Spheres.Delete)
	}

	employees := api.Group("/employees", middleware.RequirePermission(rbac.ActionManageUsers))
	{
		employees.GET("", h.Employees.List)
		employees.GET("/:id", h.Employees.Get)
		employees.POST("", h.Employees.Create)
		employees.PUT("/:id", h.Employees.Update)
		employees.DELETE("/:id", h.Employees.Delete)
	}

	logs := api.Group("/logs", admin)
	{
		logs.GET("", h.Logs.List)
		logs.GET("/stream", h.LogStream.Stream)
	}

	assets := api.Group("/assets")
	{
		assets.POST("/upload", middleware.RequirePermission(rbac.ActionUploadModels), h.Assets.Upload)
		assets.GET("/file", h.Assets.File)
		assets.GET("/images", h.Assets.Images)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		AllowWebSockets:  true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		// Credentials rule out "*", so reflect any origin instead
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
