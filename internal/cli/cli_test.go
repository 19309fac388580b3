package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database"
	"github.com/mrlokans/coursemarket/internal/database/compensations"
	"github.com/mrlokans/coursemarket/internal/entities"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.Database{
			Driver:        config.DriverSQLite,
			Path:          filepath.Join(t.TempDir(), "cli.db"),
			Transactional: true,
		},
		Auth: config.Auth{BcryptCost: bcrypt.MinCost},
	}
}

func openDB(t *testing.T, cfg *config.Config) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAdminCommand_ParseFlags(t *testing.T) {
	cmd := NewCreateAdminCommand(testConfig(t))
	assert.Error(t, cmd.ParseFlags([]string{"-name", "Grace"}))

	cmd = NewCreateAdminCommand(testConfig(t))
	require.NoError(t, cmd.ParseFlags([]string{"-email", "admin@example.com", "-password", "password123"}))
	assert.Equal(t, "Administrator", cmd.Name)
}

func TestCreateAdminCommand_Run(t *testing.T) {
	cfg := testConfig(t)

	cmd := NewCreateAdminCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"-email", "Admin@Example.com", "-password", "password123", "-name", "Grace"}))
	require.NoError(t, cmd.Run())

	db := openDB(t, cfg)
	var user entities.User
	require.NoError(t, db.DB.Where("email = ?", "admin@example.com").First(&user).Error)
	assert.Equal(t, entities.UserRoleAdmin, user.Role)
	assert.Equal(t, "Grace", user.Name)

	again := NewCreateAdminCommand(cfg)
	require.NoError(t, again.ParseFlags([]string{"-email", "admin@example.com", "-password", "password123"}))
	err := again.Run()
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestSessionSecretHint(t *testing.T) {
	hint := sessionSecretHint(config.Auth{})
	assert.Regexp(t, `AUTH_SESSION_SECRET=[0-9a-f]{64}\n`, hint)
	assert.NotEqual(t, hint, sessionSecretHint(config.Auth{}))

	assert.Empty(t, sessionSecretHint(config.Auth{SessionSecret: "already-set"}))
}

func TestReconcileCommand_Run(t *testing.T) {
	cfg := testConfig(t)
	db := openDB(t, cfg)

	course := &entities.Course{Title: "Go", Description: "Learn Go", CreatedBy: 1}
	require.NoError(t, db.DB.Create(course).Error)
	orphan := &entities.Enrollment{UserID: 7, CourseID: course.ID, EnrolledAt: time.Now()}
	require.NoError(t, db.DB.Create(orphan).Error)

	comps := compensations.NewRepository(db.DB)
	require.NoError(t, comps.Record(context.Background(), &entities.Compensation{
		Kind:         entities.CompensationOrphanEnrollment,
		CourseID:     course.ID,
		UserID:       7,
		EnrollmentID: &orphan.ID,
	}))

	cmd := NewReconcileCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"-batches", "3"}))
	require.NoError(t, cmd.Run())

	var n int64
	require.NoError(t, db.DB.Model(&entities.Enrollment{}).Where("id = ?", orphan.ID).Count(&n).Error)
	assert.Zero(t, n)

	pending, err := comps.CountByStatus(context.Background(), entities.CompensationPending)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestReconcileCommand_ParseFlags(t *testing.T) {
	cmd := NewReconcileCommand(testConfig(t))
	assert.Error(t, cmd.ParseFlags([]string{"-batches", "0"}))
}
