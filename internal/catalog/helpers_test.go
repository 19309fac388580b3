package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database"
	"github.com/mrlokans/coursemarket/internal/database/compensations"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/entities"
)

var errInjected = errors.New("injected failure")

type fixture struct {
	svc    *Service
	db     *gorm.DB
	client *store.Client
	admin  auth.Actor
}

func setup(t *testing.T, transactional bool) *fixture {
	t.Helper()
	d, err := database.NewDatabase(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	admin := &entities.User{Name: "Grace Admin", Email: "grace@example.com", Role: entities.UserRoleAdmin}
	require.NoError(t, d.DB.Create(admin).Error)

	client := store.New(d.DB, store.WithTransactions(transactional))
	svc := NewService(client, compensations.NewRepository(d.DB), config.Catalog{})

	return &fixture{svc: svc, db: d.DB, client: client, admin: auth.ActorFromUser(admin)}
}

// failOn makes every statement of kind op ("create", "delete", "query") on
// table fail.
func failOn(t *testing.T, db *gorm.DB, op, table string) {
	t.Helper()
	name := "test:fail_" + op + "_" + table
	fn := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errInjected)
		}
	}

	var err error
	switch op {
	case "create":
		err = db.Callback().Create().Before("gorm:create").Register(name, fn)
	case "delete":
		err = db.Callback().Delete().Before("gorm:delete").Register(name, fn)
	case "query":
		err = db.Callback().Query().Before("gorm:query").Register(name, fn)
	default:
		t.Fatalf("unknown op %q", op)
	}
	require.NoError(t, err)
}

// countQueriesOn counts SELECTs against table.
func countQueriesOn(t *testing.T, db *gorm.DB, table string) *int {
	t.Helper()
	n := 0
	err := db.Callback().Query().Before("gorm:query").Register("test:count_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			n++
		}
	})
	require.NoError(t, err)
	return &n
}

func (f *fixture) category(t *testing.T, name string) uint {
	t.Helper()
	var c entities.Category
	require.NoError(t, f.db.Where("name = ?", name).First(&c).Error)
	return c.ID
}

// course inserts a course directly with a fixed creation time.
func (f *fixture) course(t *testing.T, title string, createdAt time.Time, createdBy uint, categoryIDs ...uint) uint {
	t.Helper()
	c := &entities.Course{Title: title, Description: title + " description", Price: 10, CreatedBy: createdBy, CreatedAt: createdAt}
	require.NoError(t, f.db.Create(c).Error)
	for _, id := range categoryIDs {
		require.NoError(t, f.db.Create(&entities.CourseCategory{CourseID: c.ID, CategoryID: id}).Error)
	}
	return c.ID
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (f *fixture) pendingCompensations(t *testing.T) []entities.Compensation {
	t.Helper()
	entries, err := compensations.NewRepository(f.db).Pending(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func titles(views []CourseView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Title)
	}
	return out
}

func uintPtr(v uint) *uint { return &v }
