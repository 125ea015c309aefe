package middleware

import (
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

// SessionCookie is the name of the cookie holding the session token.
const SessionCookie = "token"

const userKey = "current_user"

// SessionMiddleware resolves the session cookie and stores the user (or nothing)
// in the gin context. It never rejects a request; the Require* guards do that.
func SessionMiddleware(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err == nil && token != "" {
			if user := sessions.ResolveSession(c.Request.Context(), token); user != nil {
				c.Set(userKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the signed-in user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// RequireUser rejects anonymous requests with 401.
func RequireUser() gin.HandlerFunc {
	return RequirePermission(rbac.ActionRead)
}

// RequirePermission applies the authorization policy at the route boundary.
func RequirePermission(action rbac.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := rbac.Require(CurrentUser(c), action); err != nil {
			Abort(c, err)
			return
		}
		c.Next()
	}
}

// RequireAdmin guards workflow-admin routes.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		switch {
		case user == nil:
			Abort(c, apperr.Unauthorized("authentication required"))
			return
		case user.Role != models.RoleAdmin:
			Abort(c, apperr.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

// Abort writes the standard error envelope and stops the chain.
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), apperr.ToBody(err))
}
