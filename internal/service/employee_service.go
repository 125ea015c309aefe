package service

import (
	"context"
	"strings"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/database"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/utils"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EmployeeInput creates or edits a user account. On update an empty password
// keeps the current one.
type EmployeeInput struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Email       string     `json:"email" validate:"required,email,max=100"`
	Role        string     `json:"role" validate:"required"`
	Password    string     `json:"password" validate:"omitempty,min=6,max=128"`
	Permissions []string   `json:"permissions"`
	SphereID    *uuid.UUID `json:"sphereId"`
}

type EmployeeService struct {
	userRepo   *repository.UserRepository
	sphereRepo *repository.SphereRepository
	audit      *AuditService
}

func NewEmployeeService(userRepo *repository.UserRepository, sphereRepo *repository.SphereRepository, audit *AuditService) *EmployeeService {
	return &EmployeeService{userRepo: userRepo, sphereRepo: sphereRepo, audit: audit}
}

func (s *EmployeeService) List(ctx context.Context, actor *models.User) ([]models.User, error) {
	if err := rbac.Require(actor, rbac.ActionManageUsers); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListUsers(ctx)
	if err != nil {
		logger.Log.Error("Failed to list employees", zap.Error(err))
		return nil, apperr.Internal("list employees", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *EmployeeService) Get(ctx context.Context, actor *models.User, id uuid.UUID) (*models.User, error) {
	if err := rbac.Require(actor, rbac.ActionManageUsers); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *EmployeeService) Create(ctx context.Context, actor *models.User, in EmployeeInput) (*models.User, error) {
	if err := rbac.Require(actor, rbac.ActionManageUsers); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperr.ValidationFields("invalid employee", map[string]string{"password": "required"})
	}

	user := &models.User{}
	if err := s.apply(ctx, user, in); err != nil {
		return nil, err
	}
	if err := guardAdminAccount(actor, user.Role); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, user.Email, nil); err != nil {
		return nil, err
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, emailConflict()
		}
		logger.Log.Error("Failed to create employee", zap.String("email", user.Email), zap.Error(err))
		return nil, apperr.Internal("create employee", err)
	}

	s.audit.Record(ctx, subjectAction(ActionEmployeeCreated, user.Email), &actor.ID, nil)
	logger.Log.Info("Employee created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.String("actor_id", actor.ID.String()),
	)
	return s.load(ctx, user.ID)
}

func (s *EmployeeService) Update(ctx context.Context, actor *models.User, id uuid.UUID, in EmployeeInput) (*models.User, error) {
	if err := rbac.Require(actor, rbac.ActionManageUsers); err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previousRole := user.Role
	if err := s.apply(ctx, user, in); err != nil {
		return nil, err
	}
	if err := guardAdminAccount(actor, previousRole, user.Role); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, user.Email, &id); err != nil {
		return nil, err
	}

	user.Sphere = nil
	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, emailConflict()
		}
		return nil, apperr.Internal("update employee", err)
	}

	s.audit.Record(ctx, subjectAction(ActionEmployeeUpdated, user.Email), &actor.ID, nil)
	return s.load(ctx, id)
}

// Delete keeps the user's audit entries and models; their references are nulled.
func (s *EmployeeService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if err := rbac.Require(actor, rbac.ActionManageUsers); err != nil {
		return err
	}
	if actor.ID == id {
		return apperr.Forbidden("you cannot delete your own account")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := guardAdminAccount(actor, user.Role); err != nil {
		return err
	}

	deleted, err := s.userRepo.DeleteUser(ctx, id)
	if err != nil {
		logger.Log.Error("Failed to delete employee", zap.String("user_id", id.String()), zap.Error(err))
		return apperr.Internal("delete employee", err)
	}
	if !deleted {
		return apperr.NotFound("employee not found")
	}

	s.audit.Record(ctx, subjectAction(ActionEmployeeDeleted, user.Email), &actor.ID, nil)
	logger.Log.Info("Employee deleted",
		zap.String("user_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return nil
}

// guardAdminAccount keeps ADMIN accounts under admin control: manage_users
// alone cannot create, promote to, edit or delete one.
func guardAdminAccount(actor *models.User, roles ...models.Role) error {
	if actor.IsAdmin() {
		return nil
	}
	for _, r := range roles {
		if r == models.RoleAdmin {
			return apperr.Forbidden("only administrators can manage administrator accounts")
		}
	}
	return nil
}

// apply validates in and copies it onto user.
func (s *EmployeeService) apply(ctx context.Context, user *models.User, in EmployeeInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = models.NormalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return err
	}

	role, ok := models.ParseRole(in.Role)
	if !ok {
		return apperr.ValidationFields("invalid employee", map[string]string{"role": "unknown role"})
	}
	perms, err := models.ParsePermissions(in.Permissions)
	if err != nil {
		return apperr.ValidationFields("invalid employee", map[string]string{"permissions": err.Error()})
	}

	var sphereID *uuid.UUID
	if role.SphereScoped() && in.SphereID != nil && *in.SphereID != uuid.Nil {
		sphere, err := s.sphereRepo.GetSphereByID(ctx, *in.SphereID)
		if err != nil {
			return apperr.Internal("load sphere", err)
		}
		if sphere == nil {
			return apperr.ValidationFields("invalid employee", map[string]string{"sphereId": "does not exist"})
		}
		sphereID = &sphere.ID
	}

	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return apperr.Internal("hash password", err)
		}
		user.PasswordHash = hash
	}

	user.Name = in.Name
	user.Email = in.Email
	user.Role = role
	user.Permissions = perms
	user.SphereID = sphereID
	return nil
}

func (s *EmployeeService) load(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load employee", err)
	}
	if user == nil {
		return nil, apperr.NotFound("employee not found")
	}
	return user, nil
}

func (s *EmployeeService) ensureEmailFree(ctx context.Context, email string, excludeID *uuid.UUID) error {
	taken, err := s.userRepo.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return apperr.Internal("check email", err)
	}
	if taken {
		return emailConflict()
	}
	return nil
}

func emailConflict() error {
	return &apperr.Error{
		Kind:    apperr.KindConflict,
		Message: "an employee with this email already exists",
		Fields:  map[string]string{"email": "already in use"},
	}
}
