// Package rbac decides whether a user may perform an action.
// ADMIN is allowed everything; other roles need the action's permission;
// anonymous callers get only ActionPublicRead.
package rbac

import (
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
)

type Action string

const (
	// ActionPublicRead is the only action open to anonymous callers.
	ActionPublicRead Action = "public_read"
	// ActionRead covers catalogue reads by any signed-in user.
	ActionRead Action = "read"

	ActionManageUsers          Action = "manage_users"
	ActionCreateProjects       Action = "create_projects"
	ActionDeleteModels         Action = "delete_models"
	ActionUploadModels         Action = "upload_models"
	ActionEditModels           Action = "edit_models"
	ActionEditModelDescription Action = "edit_model_description"
	ActionEditModelSphere      Action = "edit_model_sphere"
	ActionEditModelScreenshots Action = "edit_model_screenshots"
	ActionDownloadModels       Action = "download_models"
	ActionEditProjects         Action = "edit_projects"
	ActionAddSphere            Action = "add_sphere"

	// Admin-only actions; no permission grants them.
	ActionRestoreModel    Action = "restore_model"
	ActionConfirmDeletion Action = "confirm_deletion"
	ActionFinalizePurge   Action = "finalize_purge"
	ActionViewLogs        Action = "view_logs"
	ActionDeleteSphere    Action = "delete_sphere"
)

// permissionFor maps grantable actions to the permission tag that grants them.
var permissionFor = map[Action]models.Permission{
	ActionManageUsers:          models.PermManageUsers,
	ActionCreateProjects:       models.PermCreateProjects,
	ActionDeleteModels:         models.PermDeleteModels,
	ActionUploadModels:         models.PermUploadModels,
	ActionEditModels:           models.PermEditModels,
	ActionEditModelDescription: models.PermEditModelDescription,
	ActionEditModelSphere:      models.PermEditModelSphere,
	ActionEditModelScreenshots: models.PermEditModelScreenshots,
	ActionDownloadModels:       models.PermDownloadModels,
	ActionEditProjects:         models.PermEditProjects,
	ActionAddSphere:            models.PermAddSphere,
}

// Authorize is the single policy decision point.
func Authorize(user *models.User, action Action) bool {
	if action == ActionPublicRead {
		return true
	}
	if user == nil {
		return false
	}
	if user.Role == models.RoleAdmin {
		return true
	}
	if action == ActionRead {
		return true
	}
	perm, grantable := permissionFor[action]
	if !grantable {
		return false
	}
	return user.HasPermission(perm)
}

// AuthorizeAny passes when at least one action is allowed.
func AuthorizeAny(user *models.User, actions ...Action) bool {
	for _, a := range actions {
		if Authorize(user, a) {
			return true
		}
	}
	return false
}

// Require turns a negative decision into Unauthorized (no user) or Forbidden.
func Require(user *models.User, action Action) error {
	if Authorize(user, action) {
		return nil
	}
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	return apperr.Forbidden("insufficient permissions: " + string(action))
}

// RequireAny is Require over a set of alternative actions.
func RequireAny(user *models.User, actions ...Action) error {
	if AuthorizeAny(user, actions...) {
		return nil
	}
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	return apperr.Forbidden("insufficient permissions")
}

// IsGrantable reports whether a non-admin can ever be allowed the action.
func IsGrantable(action Action) bool {
	_, ok := permissionFor[action]
	return ok || action == ActionRead || action == ActionPublicRead
}

// GrantableActions lists actions backed by a permission tag.
func GrantableActions() []Action {
	out := make([]Action, 0, len(permissionFor))
	for _, p := range models.AllPermissions {
		out = append(out, Action(p))
	}
	return out
}
