package rbac

import (
	"testing"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var allActions = []Action{
	ActionPublicRead, ActionRead,
	ActionManageUsers, ActionCreateProjects, ActionDeleteModels, ActionUploadModels,
	ActionEditModels, ActionEditModelDescription, ActionEditModelSphere,
	ActionEditModelScreenshots, ActionDownloadModels, ActionEditProjects, ActionAddSphere,
	ActionRestoreModel, ActionConfirmDeletion, ActionFinalizePurge, ActionViewLogs, ActionDeleteSphere,
}

func user(role models.Role, perms ...models.Permission) *models.User {
	return &models.User{ID: uuid.New(), Role: role, Permissions: perms}
}

func TestAuthorize_AdminAllowedEverything(t *testing.T) {
	admin := user(models.RoleAdmin)
	for _, a := range allActions {
		assert.True(t, Authorize(admin, a), "admin should be allowed %s", a)
	}
}

func TestAuthorize_NonAdminIsExactMembership(t *testing.T) {
	roles := []models.Role{models.RoleAnalyst, models.RoleArtist, models.RoleEmployee}
	granted := []models.Permission{models.PermUploadModels, models.PermEditModelSphere}

	for _, role := range roles {
		t.Run(string(role), func(t *testing.T) {
			u := user(role, granted...)
			for _, a := range GrantableActions() {
				want := u.HasPermission(models.Permission(a))
				assert.Equal(t, want, Authorize(u, a), "action %s", a)
			}
		})
	}
}

func TestAuthorize_EmptyPermissionSet(t *testing.T) {
	u := user(models.RoleArtist)
	for _, a := range GrantableActions() {
		assert.False(t, Authorize(u, a), "action %s", a)
	}
	assert.True(t, Authorize(u, ActionRead))
}

func TestAuthorize_AdminOnlyActionsNotGrantable(t *testing.T) {
	everything := user(models.RoleAnalyst, models.AllPermissions...)
	for _, a := range []Action{ActionRestoreModel, ActionConfirmDeletion, ActionFinalizePurge, ActionViewLogs, ActionDeleteSphere} {
		assert.False(t, Authorize(everything, a), "action %s", a)
		assert.False(t, IsGrantable(a))
	}
}

func TestAuthorize_Anonymous(t *testing.T) {
	for _, a := range allActions {
		if a == ActionPublicRead {
			assert.True(t, Authorize(nil, a))
			continue
		}
		assert.False(t, Authorize(nil, a), "anonymous should not be allowed %s", a)
	}
}

func TestRequire_DistinguishesUnauthorizedAndForbidden(t *testing.T) {
	err := Require(nil, ActionUploadModels)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	err = Require(user(models.RoleArtist), ActionUploadModels)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	assert.NoError(t, Require(user(models.RoleArtist, models.PermUploadModels), ActionUploadModels))
}

func TestRequireAny(t *testing.T) {
	u := user(models.RoleArtist, models.PermEditModelDescription)

	assert.NoError(t, RequireAny(u, ActionEditModels, ActionEditModelDescription))
	assert.ErrorIs(t, RequireAny(u, ActionEditModels, ActionEditModelSphere), apperr.ErrForbidden)
	assert.ErrorIs(t, RequireAny(nil, ActionEditModels), apperr.ErrUnauthorized)
}
