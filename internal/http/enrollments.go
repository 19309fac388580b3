package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/coursemarket/internal/catalog"
	"github.com/mrlokans/coursemarket/internal/enrollment"
	"github.com/mrlokans/coursemarket/internal/metrics"
)

// EnrollmentsController serves enrollment for signed-in users.
type EnrollmentsController struct {
	catalog    CourseCatalog
	enrollment Enroller
	metrics    *metrics.Metrics
}

func NewEnrollmentsController(catalog CourseCatalog, enroller Enroller, m *metrics.Metrics) *EnrollmentsController {
	return &EnrollmentsController{catalog: catalog, enrollment: enroller, metrics: m}
}

// Enroll handles POST /api/courses/:id/enroll. The amount charged is the
// course's current price, never a client-supplied value.
func (ec *EnrollmentsController) Enroll(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	course, err := ec.catalog.GetCourse(ctx, id)
	if err != nil {
		ec.metrics.Enrollment(enrollmentOutcome(err))
		respondServiceError(c, err, "enroll: load course")
		return
	}

	e, err := ec.enrollment.Enroll(ctx, actor, course.ID, course.Price)
	if err != nil {
		ec.metrics.Enrollment(enrollmentOutcome(err))
		respondServiceError(c, err, "enroll")
		return
	}
	ec.metrics.Enrollment(metrics.OutcomeSuccess)
	respondCreated(c, e)
}

// EnrollmentStatus handles GET /api/courses/:id/enrollment
func (ec *EnrollmentsController) EnrollmentStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"course_id": id,
		"enrolled":  ec.enrollment.IsEnrolled(c.Request.Context(), actor.UserID, id),
	})
}

// MyEnrollments handles GET /api/me/enrollments
func (ec *EnrollmentsController) MyEnrollments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	items, err := ec.enrollment.ListUserEnrollments(c.Request.Context(), actor.UserID)
	respondList(c, items, err, "my enrollments", ec.metrics.DegradedRead)
}

func enrollmentOutcome(err error) string {
	switch {
	case errors.Is(err, enrollment.ErrAlreadyEnrolled),
		errors.Is(err, enrollment.ErrCourseNotFound),
		errors.Is(err, catalog.ErrCourseNotFound),
		errors.Is(err, enrollment.ErrInvalidAmount):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}
