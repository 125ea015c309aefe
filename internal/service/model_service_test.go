package service_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func upload(name, body string) service.Upload {
	return service.Upload{Name: name, Reader: strings.NewReader(body)}
}

func newModelInput(title string) service.CreateModelInput {
	archive := upload("bolt.zip", "zip-bytes")
	return service.CreateModelInput{
		Title:       title,
		Description: "M8 bolt",
		Archive:     &archive,
		Screenshots: []service.Upload{upload("front.png", "png"), upload("side.png", "png")},
	}
}

func strPtr(s string) *string { return &s }

func TestModelCreate_StoresAssetsAndRow(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	artist := testutil.CreateUser(t, env.db, "artist", "artist@example.com", models.RoleArtist, models.PermUploadModels)

	// Act
	m, err := env.models.Create(context.Background(), artist, newModelInput("Bolt"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Bolt", m.Title)
	require.NotNil(t, m.AuthorID)
	assert.Equal(t, artist.ID, *m.AuthorID)
	assert.Equal(t, models.ModelFolder(m.ID)+"/bolt.zip", m.ArchivePath)
	assert.True(t, env.store.Has(m.ArchivePath))
	require.Len(t, m.Screenshots, 2)
	for _, p := range m.Screenshots {
		assert.True(t, strings.HasPrefix(p, models.ModelFolder(m.ID)+"/screenshots/"), p)
		assert.True(t, env.store.Has(p))
	}
	assert.Equal(t, int64(1), testutil.CountLogs(t, env.db, service.ActionModelUploaded+" «Bolt»"))
}

func TestModelCreate_TitleIsCaseInsensitivelyUnique(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	_, err := env.models.Create(context.Background(), admin, newModelInput("Bolt"))
	require.NoError(t, err)

	// Act
	_, err = env.models.Create(context.Background(), admin, newModelInput("bolt"))

	// Assert
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)
	var count int64
	require.NoError(t, env.db.Model(&models.Model{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	exists, err := env.models.TitleExists(context.Background(), admin, "BOLT", nil)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestModelCreate_UniqueIndexBackstop(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	testutil.CreateModel(t, env.db, "Bolt", nil)

	// Act: bypass the pre-check and write straight to the table
	err := env.db.Create(&models.Model{Title: "BOLT", Screenshots: []string{}}).Error

	// Assert
	require.Error(t, err)
}

func TestModelCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)

	_, err := env.models.Create(context.Background(), admin, service.CreateModelInput{Title: "  "})

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "title")
	assert.Contains(t, appErr.Fields, "zipFile")
}

func TestModelCreate_UploadFailureIsFatal(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	env.store.FailAll = true

	// Act
	_, err := env.models.Create(context.Background(), admin, newModelInput("Bolt"))

	// Assert
	assert.True(t, errors.Is(err, apperr.ErrUpstream), "got %v", err)
	var count int64
	require.NoError(t, env.db.Model(&models.Model{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestModelCreate_RequiresUploadPermission(t *testing.T) {
	env := newTestEnv(t)
	viewer := testutil.CreateUser(t, env.db, "viewer", "viewer@example.com", models.RoleEmployee)

	_, err := env.models.Create(context.Background(), viewer, newModelInput("Bolt"))

	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)
	assert.Empty(t, env.store.DeletedPaths())
}

func TestModelUpdate_PerFieldPermissions(t *testing.T) {
	env := newTestEnv(t)
	describer := testutil.CreateUser(t, env.db, "desc", "desc@example.com", models.RoleAnalyst, models.PermEditModelDescription)
	m := testutil.CreateModel(t, env.db, "Bolt", nil)

	t.Run("description allowed", func(t *testing.T) {
		updated, err := env.models.Update(context.Background(), describer, m.ID, service.UpdateModelInput{
			Description: strPtr("new text"),
		})

		require.NoError(t, err)
		assert.Equal(t, "new text", updated.Description)
		assert.Equal(t, "Bolt", updated.Title, "absent fields keep their value")
	})

	t.Run("title needs edit_models", func(t *testing.T) {
		_, err := env.models.Update(context.Background(), describer, m.ID, service.UpdateModelInput{
			Title:       strPtr("Renamed"),
			Description: strPtr("ignored"),
		})

		assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)
		reloaded, err := env.models.Get(context.Background(), describer, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bolt", reloaded.Title)
		assert.Equal(t, "new text", reloaded.Description, "nothing written on a denied update")
	})

	t.Run("sphere needs edit_model_sphere", func(t *testing.T) {
		ids := []uuid.UUID{}
		_, err := env.models.Update(context.Background(), describer, m.ID, service.UpdateModelInput{SphereIDs: &ids})
		assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := env.models.Update(context.Background(), nil, m.ID, service.UpdateModelInput{Description: strPtr("x")})
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "got %v", err)
	})
}

func TestModelUpdate_RenameConflict(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	testutil.CreateModel(t, env.db, "Bolt", nil)
	nut := testutil.CreateModel(t, env.db, "Nut", nil)

	_, err := env.models.Update(context.Background(), admin, nut.ID, service.UpdateModelInput{Title: strPtr("BOLT")})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)

	updated, err := env.models.Update(context.Background(), admin, nut.ID, service.UpdateModelInput{Title: strPtr("nut")})
	require.NoError(t, err, "changing only the case of its own title is allowed")
	assert.Equal(t, "nut", updated.Title)
}

func TestModelUpdate_ReplacesScreenshotsAndArchive(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	m, err := env.models.Create(context.Background(), admin, newModelInput("Bolt"))
	require.NoError(t, err)
	front, side := m.Screenshots[0], m.Screenshots[1]
	oldArchive := m.ArchivePath

	archive := upload("bolt-v2.zip", "v2")

	// Act
	updated, err := env.models.Update(context.Background(), admin, m.ID, service.UpdateModelInput{
		Archive:         &archive,
		ScreenshotsSet:  true,
		KeepScreenshots: []string{side},
		Screenshots:     []service.Upload{upload("top.png", "png")},
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, updated.Screenshots, 2)
	assert.Equal(t, side, updated.Screenshots[0], "kept screenshots come first in the given order")
	assert.True(t, env.store.Has(updated.Screenshots[1]))
	assert.False(t, env.store.Has(front), "dropped screenshot deleted")
	assert.True(t, strings.HasSuffix(updated.ArchivePath, "/bolt-v2.zip"))
	assert.False(t, env.store.Has(oldArchive), "replaced archive deleted")
}

func TestModelUpdate_ForeignScreenshotRejected(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	m := testutil.CreateModel(t, env.db, "Bolt", nil, "a.png")

	_, err := env.models.Update(context.Background(), admin, m.ID, service.UpdateModelInput{
		ScreenshotsSet:  true,
		KeepScreenshots: []string{"someone-else.png"},
	})

	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
}

func TestModelUpdate_MarkedModelIsInvalidState(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	artist := testutil.CreateUser(t, env.db, "artist", "artist@example.com", models.RoleArtist, models.PermDeleteModels)
	m := testutil.CreateModel(t, env.db, "Bolt", nil)
	_, err := env.deletion.RequestDeletion(context.Background(), artist, m.ID)
	require.NoError(t, err)

	_, err = env.models.Update(context.Background(), admin, m.ID, service.UpdateModelInput{Description: strPtr("x")})

	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "got %v", err)
}

func TestModelUpdate_ConcurrentDeletionRequestIsKept(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	requester := testutil.CreateUser(t, env.db, "artist", "artist@example.com", models.RoleArtist, models.PermDeleteModels)
	m := testutil.CreateModel(t, env.db, "Bolt", nil)

	// A deletion request lands between the service's read and its write.
	marked := false
	require.NoError(t, env.db.Callback().Update().Before("gorm:update").Register("test:mark_between_read_and_write", func(tx *gorm.DB) {
		if marked || tx.Statement.Table != "models" {
			return
		}
		marked = true
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"UPDATE models SET marked_for_deletion = ?, marked_by_id = ?, marked_at = ? WHERE id = ?",
			true, requester.ID, time.Now(), m.ID,
		)
	}))
	archive := upload("bolt-v2.zip", "v2")

	// Act
	_, err := env.models.Update(context.Background(), admin, m.ID, service.UpdateModelInput{
		Description: strPtr("edited"),
		Archive:     &archive,
	})

	// Assert
	require.True(t, marked)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "got %v", err)

	var reloaded models.Model
	require.NoError(t, env.db.First(&reloaded, "id = ?", m.ID).Error)
	assert.True(t, reloaded.MarkedForDeletion)
	require.NotNil(t, reloaded.MarkedByID)
	assert.Equal(t, requester.ID, *reloaded.MarkedByID)
	assert.NotNil(t, reloaded.MarkedAt)
	assert.Empty(t, reloaded.Description)
	assert.Equal(t, m.ArchivePath, reloaded.ArchivePath)
	assert.False(t, env.store.Has(models.ModelFolder(m.ID)+"/bolt-v2.zip"), "upload of the rejected edit is discarded")
}

func TestModelUpdate_KeepsWorkflowColumns(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	m := testutil.CreateModel(t, env.db, "Bolt", admin)

	updated, err := env.models.Update(context.Background(), admin, m.ID, service.UpdateModelInput{
		Title:       strPtr("Bolt M8"),
		Description: strPtr("  zinc  "),
	})

	require.NoError(t, err)
	assert.Equal(t, "Bolt M8", updated.Title)
	assert.Equal(t, "zinc", updated.Description)
	assert.False(t, updated.MarkedForDeletion)

	exists, err := env.models.TitleExists(context.Background(), admin, "bolt m8", nil)
	require.NoError(t, err)
	assert.True(t, exists, "title key follows the new title")
}

func TestModelCreate_RejectsFolderLikeArchiveName(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)

	for _, name := range []string{"..", ".", "/", "  ", "a/.."} {
		t.Run(name, func(t *testing.T) {
			in := newModelInput("Bolt")
			archive := upload(name, "zip")
			in.Archive = &archive

			_, err := env.models.Create(context.Background(), admin, in)

			var appErr *apperr.Error
			require.True(t, errors.As(err, &appErr), "got %v", err)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Contains(t, appErr.Fields, "zipFile")
			assert.False(t, env.store.Has("models"))
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Model{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestModelList_Filters(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	ctx := context.Background()

	project, err := env.projects.Create(ctx, admin, service.ProjectInput{Name: "Engine"})
	require.NoError(t, err)
	sphere, err := env.spheres.Create(ctx, admin, "Machinery")
	require.NoError(t, err)

	in := newModelInput("Piston")
	in.ProjectIDs = []uuid.UUID{project.ID}
	in.SphereIDs = []uuid.UUID{sphere.ID}
	_, err = env.models.Create(ctx, admin, in)
	require.NoError(t, err)
	_, err = env.models.Create(ctx, admin, newModelInput("Loose"))
	require.NoError(t, err)

	// Act
	byProject, err := env.models.List(ctx, admin, service.ModelListFilter{ProjectID: &project.ID, IncludeProjects: true})
	require.NoError(t, err)
	bySphere, err := env.models.List(ctx, admin, service.ModelListFilter{Sphere: sphere.ID.String()})
	require.NoError(t, err)
	noSphere, err := env.models.List(ctx, admin, service.ModelListFilter{Sphere: "none"})
	require.NoError(t, err)
	all, err := env.models.List(ctx, admin, service.ModelListFilter{})
	require.NoError(t, err)

	// Assert
	require.Len(t, byProject, 1)
	assert.Equal(t, "Piston", byProject[0].Title)
	require.Len(t, byProject[0].Projects, 1)
	require.Len(t, bySphere, 1)
	assert.Equal(t, "Piston", bySphere[0].Title)
	require.Len(t, noSphere, 1)
	assert.Equal(t, "Loose", noSphere[0].Title)
	assert.Len(t, all, 2)

	_, err = env.models.List(ctx, nil, service.ModelListFilter{})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestModelOpenArchive(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)
	downloader := testutil.CreateUser(t, env.db, "dl", "dl@example.com", models.RoleEmployee, models.PermDownloadModels)
	viewer := testutil.CreateUser(t, env.db, "viewer", "viewer@example.com", models.RoleEmployee)
	m, err := env.models.Create(context.Background(), admin, newModelInput("Bolt"))
	require.NoError(t, err)

	// Act
	rc, name, err := env.models.OpenArchive(context.Background(), downloader, m.ID)

	// Assert
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(body))
	assert.Equal(t, "bolt.zip", name)

	_, _, err = env.models.OpenArchive(context.Background(), viewer, m.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)
}
