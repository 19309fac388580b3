package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/catalog"
	auditRepo "github.com/mrlokans/coursemarket/internal/database/audit"
	"github.com/mrlokans/coursemarket/internal/enrollment"
	"github.com/mrlokans/coursemarket/internal/entities"
	"github.com/mrlokans/coursemarket/internal/reconcile"
)

// This file collects the service interfaces the controllers depend on. The
// concrete implementations live in the catalog, enrollment, auth, audit and
// reconcile packages.

// CourseCatalog provides course and category reads and admin writes.
type CourseCatalog interface {
	ListCourses(ctx context.Context, categoryID *uint) ([]catalog.CourseView, error)
	FeaturedCourses(ctx context.Context, limit int) ([]catalog.CourseView, error)
	GetCourse(ctx context.Context, id uint) (*catalog.CourseView, error)
	ListCategories(ctx context.Context) ([]entities.Category, error)
	GetCourseCategories(ctx context.Context, courseID uint) ([]entities.Category, error)

	CreateCourse(ctx context.Context, actor auth.Actor, in catalog.CourseInput, categoryIDs []uint) (uint, error)
	UpdateCourse(ctx context.Context, id uint, in catalog.CourseInput, change catalog.CategoryChange) error
	DeleteCourse(ctx context.Context, id uint) error
}

// Enroller enrolls users and lists enrollments.
type Enroller interface {
	Enroll(ctx context.Context, actor auth.Actor, courseID uint, amount float64) (*entities.Enrollment, error)
	IsEnrolled(ctx context.Context, userID, courseID uint) bool
	ListEnrollments(ctx context.Context) ([]enrollment.EnrollmentView, error)
	ListUserEnrollments(ctx context.Context, userID uint) ([]enrollment.EnrollmentView, error)
}

// UserDirectory lists accounts for the admin dashboard.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]entities.User, error)
}

// AuditLog records and lists admin actions.
type AuditLog interface {
	LogAdminAction(actor auth.Actor, eventType entities.AuditEventType, action, entityType string, entityID uint, description string, err error)
	LogReconcile(actor auth.Actor, resolved, failed, remaining int, err error)
	ListEvents(ctx context.Context, q auditRepo.Query) ([]entities.AuditEvent, int64, error)
}

// Reconciler repairs partially applied writes.
type Reconciler interface {
	Run(ctx context.Context) (reconcile.Result, error)
}

// TaskQueue enqueues background work and reports its status.
type TaskQueue interface {
	Enqueue(task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// statusTimeout bounds lookups made on behalf of status endpoints.
const statusTimeout = 5 * time.Second
