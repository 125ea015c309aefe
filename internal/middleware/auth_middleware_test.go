package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthGuards(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.SetupTestDatabase(t)
	audit := service.NewAuditService(repository.NewLogRepository(db), nil, nil)
	sessions := service.NewSessionService(repository.NewUserRepository(db), audit, "test-secret", time.Hour)

	admin := testutil.CreateAdmin(t, db)
	uploader := testutil.CreateUser(t, db, "up", "up@example.com", models.RoleArtist, models.PermUploadModels)
	viewer := testutil.CreateUser(t, db, "view", "view@example.com", models.RoleEmployee)

	router := gin.New()
	router.Use(SessionMiddleware(sessions))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"user": CurrentUser(c).Email}) }
	router.GET("/read", RequireUser(), ok)
	router.POST("/upload", RequirePermission(rbac.ActionUploadModels), ok)
	router.GET("/admin", RequireAdmin(), ok)

	tokenFor := func(u *models.User) string {
		token, err := sessions.CreateSession(u)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"anonymous read", http.MethodGet, "/read", "", http.StatusUnauthorized},
		{"garbage cookie read", http.MethodGet, "/read", "garbage", http.StatusUnauthorized},
		{"viewer read", http.MethodGet, "/read", tokenFor(viewer), http.StatusOK},
		{"viewer upload", http.MethodPost, "/upload", tokenFor(viewer), http.StatusForbidden},
		{"uploader upload", http.MethodPost, "/upload", tokenFor(uploader), http.StatusOK},
		{"admin upload", http.MethodPost, "/upload", tokenFor(admin), http.StatusOK},
		{"anonymous admin", http.MethodGet, "/admin", "", http.StatusUnauthorized},
		{"uploader admin", http.MethodGet, "/admin", tokenFor(uploader), http.StatusForbidden},
		{"admin admin", http.MethodGet, "/admin", tokenFor(admin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.token})
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"kind":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"INTERNAL_ERROR"`)
	assert.NotContains(t, w.Body.String(), "boom")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(production bool) *gin.Engine {
		router := gin.New()
		router.Use(SecurityHeaders(SecurityConfig{IsProduction: production, AssetRoutes: []string{"/assets/file"}}))
		router.GET("/models", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		router.GET("/assets/file", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return router
	}
	get := func(router *gin.Engine, target string) http.Header {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w.Header()
	}

	t.Run("json routes", func(t *testing.T) {
		h := get(newRouter(true), "/models")

		assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
		assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", h.Get("Content-Security-Policy"))
		assert.Equal(t, "no-store", h.Get("Cache-Control"))
		assert.Equal(t, "max-age=31536000; includeSubDomains", h.Get("Strict-Transport-Security"))
	})

	t.Run("asset routes are sandboxed", func(t *testing.T) {
		h := get(newRouter(true), "/assets/file?path=a.svg")

		assert.Contains(t, h.Get("Content-Security-Policy"), "sandbox")
		assert.Contains(t, h.Get("Content-Security-Policy"), "img-src 'self'")
		assert.Equal(t, "same-site", h.Get("Cross-Origin-Resource-Policy"))
		assert.Empty(t, h.Get("Cache-Control"))
	})

	t.Run("no hsts outside production", func(t *testing.T) {
		h := get(newRouter(false), "/models")

		assert.Empty(t, h.Get("Strict-Transport-Security"))
	})
}
