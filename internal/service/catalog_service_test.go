package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSphereCreate_ReservedNames(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)

	for _, name := range []string{"Все модели", "все модели", "ВСЕ МОДЕЛИ", "Без сферы", "без СФЕРЫ", "  Без сферы  "} {
		t.Run(name, func(t *testing.T) {
			_, err := env.spheres.Create(context.Background(), admin, name)

			var appErr *apperr.Error
			require.True(t, errors.As(err, &appErr), "got %v", err)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Contains(t, appErr.Fields, "name")
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Sphere{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSphereCreate(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	adder := testutil.CreateUser(t, env.db, "adder", "adder@example.com", models.RoleAnalyst, models.PermAddSphere)
	viewer := testutil.CreateUser(t, env.db, "viewer", "viewer@example.com", models.RoleEmployee)

	sphere, err := env.spheres.Create(context.Background(), adder, " Архитектура ")
	require.NoError(t, err)
	assert.Equal(t, "Архитектура", sphere.Name)

	_, err = env.spheres.Create(context.Background(), admin, "Архитектура")
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)

	_, err = env.spheres.Create(context.Background(), viewer, "Авто")
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)

	_, err = env.spheres.Create(context.Background(), admin, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
}

func TestSphereDelete_AdminOnlyAndUntagsModels(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env.db)
	adder := testutil.CreateUser(t, env.db, "adder", "adder@example.com", models.RoleAnalyst, models.PermAddSphere)
	sphere, err := env.spheres.Create(ctx, admin, "Machinery")
	require.NoError(t, err)

	in := newModelInput("Piston")
	in.SphereIDs = []uuid.UUID{sphere.ID}
	m, err := env.models.Create(ctx, admin, in)
	require.NoError(t, err)

	// Act & Assert
	err = env.spheres.Delete(ctx, adder, sphere.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)

	require.NoError(t, env.spheres.Delete(ctx, admin, sphere.ID))

	reloaded, err := env.models.Get(ctx, admin, m.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Spheres)

	err = env.spheres.Delete(ctx, admin, sphere.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

func TestProjectCRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testutil.CreateUser(t, env.db, "pm", "pm@example.com", models.RoleEmployee, models.PermCreateProjects)
	editor := testutil.CreateUser(t, env.db, "ed", "ed@example.com", models.RoleEmployee, models.PermEditProjects)

	p, err := env.projects.Create(ctx, creator, service.ProjectInput{Name: "Engine", Description: "V8"})
	require.NoError(t, err)

	_, err = env.projects.Create(ctx, creator, service.ProjectInput{Name: "Engine"})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)

	_, err = env.projects.Create(ctx, creator, service.ProjectInput{Name: "  "})
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "required", appErr.Fields["name"])

	_, err = env.projects.Update(ctx, creator, p.ID, service.ProjectInput{Name: "Engine 2"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)

	updated, err := env.projects.Update(ctx, editor, p.ID, service.ProjectInput{Name: "Engine 2"})
	require.NoError(t, err)
	assert.Equal(t, "Engine 2", updated.Name)

	require.NoError(t, env.projects.Delete(ctx, editor, p.ID))
	_, err = env.projects.Get(ctx, editor, p.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

func TestEmployeeCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env.db)
	sphere, err := env.spheres.Create(ctx, admin, "Machinery")
	require.NoError(t, err)

	t.Run("analyst keeps sphere", func(t *testing.T) {
		u, err := env.employees.Create(ctx, admin, service.EmployeeInput{
			Name: "Анна", Email: "Anna@Example.com", Role: "analyst", Password: "secret1",
			Permissions: []string{"download_models", "edit_models", "download_models"},
			SphereID:    &sphere.ID,
		})

		require.NoError(t, err)
		assert.Equal(t, "anna@example.com", u.Email)
		assert.Equal(t, models.RoleAnalyst, u.Role)
		require.NotNil(t, u.SphereID)
		assert.Equal(t, sphere.ID, *u.SphereID)
		assert.Equal(t, []models.Permission{models.PermDownloadModels, models.PermEditModels}, []models.Permission(u.Permissions))
	})

	t.Run("employee sphere forced null", func(t *testing.T) {
		u, err := env.employees.Create(ctx, admin, service.EmployeeInput{
			Name: "Ivan", Email: "ivan@example.com", Role: "EMPLOYEE", Password: "secret1", SphereID: &sphere.ID,
		})

		require.NoError(t, err)
		assert.Nil(t, u.SphereID)
	})

	t.Run("duplicate email in other case", func(t *testing.T) {
		_, err := env.employees.Create(ctx, admin, service.EmployeeInput{
			Name: "Other", Email: "ANNA@example.com", Role: "ARTIST", Password: "secret1",
		})
		assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := env.employees.Create(ctx, admin, service.EmployeeInput{
			Name: "Short", Email: "short@example.com", Role: "ARTIST", Password: "12345",
		})

		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr), "got %v", err)
		assert.Equal(t, apperr.KindValidation, appErr.Kind)
		assert.Contains(t, appErr.Fields, "password")
	})

	t.Run("unknown permission", func(t *testing.T) {
		_, err := env.employees.Create(ctx, admin, service.EmployeeInput{
			Name: "Perm", Email: "perm@example.com", Role: "ARTIST", Password: "secret1",
			Permissions: []string{"fly"},
		})
		assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := env.employees.Create(ctx, admin, service.EmployeeInput{
			Name: "Role", Email: "role@example.com", Role: "OWNER", Password: "secret1",
		})
		assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
	})

	t.Run("requires manage_users", func(t *testing.T) {
		artist := testutil.CreateUser(t, env.db, "artist", "artist@example.com", models.RoleArtist, models.PermEditModels)
		_, err := env.employees.Create(ctx, artist, service.EmployeeInput{
			Name: "X", Email: "x@example.com", Role: "ARTIST", Password: "secret1",
		})
		assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)
	})
}

func TestEmployeeUpdate_RoleChangeDropsSphere(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env.db)
	sphere, err := env.spheres.Create(ctx, admin, "Machinery")
	require.NoError(t, err)
	u, err := env.employees.Create(ctx, admin, service.EmployeeInput{
		Name: "Art", Email: "art@example.com", Role: "ARTIST", Password: "secret1", SphereID: &sphere.ID,
	})
	require.NoError(t, err)
	hash := u.PasswordHash

	updated, err := env.employees.Update(ctx, admin, u.ID, service.EmployeeInput{
		Name: "Art", Email: "art@example.com", Role: "EMPLOYEE", SphereID: &sphere.ID,
	})

	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, updated.Role)
	assert.Nil(t, updated.SphereID)
	assert.Equal(t, hash, updated.PasswordHash, "empty password keeps the current one")
}

func TestEmployeeDelete(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env.db)
	artist := testutil.CreateUser(t, env.db, "artist", "artist@example.com", models.RoleArtist, models.PermDeleteModels)
	m := testutil.CreateModel(t, env.db, "Bolt", artist)
	_, err := env.deletion.RequestDeletion(ctx, artist, m.ID)
	require.NoError(t, err)

	// Act & Assert
	err = env.employees.Delete(ctx, admin, admin.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "cannot delete self, got %v", err)

	require.NoError(t, env.employees.Delete(ctx, admin, artist.ID))

	var orphanLogs int64
	require.NoError(t, env.db.Model(&models.LogEntry{}).Where("user_id IS NULL").Count(&orphanLogs).Error)
	assert.Equal(t, int64(1), orphanLogs, "the artist's log entry survives with a null user")

	reloaded, err := env.models.Get(ctx, admin, m.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.AuthorID)
	assert.Nil(t, reloaded.MarkedByID)

	err = env.employees.Delete(ctx, admin, artist.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

func TestEmployee_AdminAccountsNeedAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env.db)
	manager := testutil.CreateUser(t, env.db, "manager", "manager@example.com", models.RoleEmployee, models.PermManageUsers)

	t.Run("self promotion", func(t *testing.T) {
		_, err := env.employees.Update(ctx, manager, manager.ID, service.EmployeeInput{
			Name: "manager", Email: "manager@example.com", Role: "ADMIN",
			Permissions: []string{"manage_users"},
		})

		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		var reloaded models.User
		require.NoError(t, env.db.First(&reloaded, "id = ?", manager.ID).Error)
		assert.Equal(t, models.RoleEmployee, reloaded.Role)
	})

	t.Run("create admin", func(t *testing.T) {
		_, err := env.employees.Create(ctx, manager, service.EmployeeInput{
			Name: "boss", Email: "boss@example.com", Role: "admin", Password: "secret1",
		})

		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		assert.Equal(t, int64(0), testutil.CountUsersByEmail(t, env.db, "boss@example.com"))
	})

	t.Run("edit admin", func(t *testing.T) {
		_, err := env.employees.Update(ctx, manager, admin.ID, service.EmployeeInput{
			Name: "admin", Email: "admin@example.com", Role: "EMPLOYEE",
		})

		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("delete admin", func(t *testing.T) {
		err := env.employees.Delete(ctx, manager, admin.ID)

		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		assert.Equal(t, int64(1), testutil.CountUsersByEmail(t, env.db, "admin@example.com"))
	})

	t.Run("admin may promote", func(t *testing.T) {
		u, err := env.employees.Update(ctx, admin, manager.ID, service.EmployeeInput{
			Name: "manager", Email: "manager@example.com", Role: "ADMIN",
		})

		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, u.Role)
	})
}
