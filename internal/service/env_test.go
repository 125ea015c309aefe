package service_test

import (
	"testing"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/testutil"
	"gorm.io/gorm"
)

// testEnv wires every service over one in-memory database and asset store.
type testEnv struct {
	db        *gorm.DB
	store     *testutil.MemStore
	logRepo   *repository.LogRepository
	audit     *service.AuditService
	sessions  *service.SessionService
	deletion  *service.DeletionService
	assets    *service.AssetService
	models    *service.ModelService
	projects  *service.ProjectService
	spheres   *service.SphereService
	employees *service.EmployeeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDatabase(t)
	store := testutil.NewMemStore()

	userRepo := repository.NewUserRepository(db)
	modelRepo := repository.NewModelRepository(db)
	deletedRepo := repository.NewDeletedModelRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	sphereRepo := repository.NewSphereRepository(db)
	logRepo := repository.NewLogRepository(db)

	audit := service.NewAuditService(logRepo, nil, nil)
	assets := service.NewAssetService(store, 16, time.Minute)

	return &testEnv{
		db:        db,
		store:     store,
		logRepo:   logRepo,
		audit:     audit,
		sessions:  service.NewSessionService(userRepo, audit, "test-secret", 7*24*time.Hour),
		deletion:  service.NewDeletionService(modelRepo, deletedRepo, store, audit),
		assets:    assets,
		models:    service.NewModelService(modelRepo, projectRepo, sphereRepo, userRepo, assets, audit),
		projects:  service.NewProjectService(projectRepo, audit),
		spheres:   service.NewSphereService(sphereRepo, audit),
		employees: service.NewEmployeeService(userRepo, sphereRepo, audit),
	}
}
