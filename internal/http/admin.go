package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/coursemarket/internal/catalog"
	"github.com/mrlokans/coursemarket/internal/entities"
	"github.com/mrlokans/coursemarket/internal/metrics"
)

// AdminController serves the admin dashboard: course management and the
// user and enrollment overviews.
type AdminController struct {
	catalog    CourseCatalog
	enrollment Enroller
	users      UserDirectory
	audit      AuditLog
	metrics    *metrics.Metrics
}

func NewAdminController(catalog CourseCatalog, enroller Enroller, users UserDirectory, audit AuditLog, m *metrics.Metrics) *AdminController {
	return &AdminController{
		catalog:    catalog,
		enrollment: enroller,
		users:      users,
		audit:      audit,
		metrics:    m,
	}
}

type courseFields struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
}

func (f courseFields) input() catalog.CourseInput {
	return catalog.CourseInput{Title: f.Title, Description: f.Description, Price: f.Price, ImageURL: f.ImageURL}
}

type createCourseRequest struct {
	courseFields
	CategoryIDs []uint `json:"category_ids"`
}

// updateCourseRequest tells an absent category_ids (keep the mappings) from
// an explicit [] (clear them).
type updateCourseRequest struct {
	courseFields
	CategoryIDs *[]uint `json:"category_ids"`
}

func (r updateCourseRequest) change() catalog.CategoryChange {
	if r.CategoryIDs == nil {
		return catalog.NoChange()
	}
	return catalog.ReplaceWith(*r.CategoryIDs...)
}

// CreateCourse handles POST /api/admin/courses
func (ac *AdminController) CreateCourse(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	id, err := ac.catalog.CreateCourse(c.Request.Context(), actor, req.input(), req.CategoryIDs)
	ac.recordWrite("create", err)
	if err != nil {
		if !isClientError(err) {
			ac.audit.LogAdminAction(actor, entities.AuditEventCatalog, "course_create", "course", 0, "Create course: "+req.Title, err)
		}
		respondServiceError(c, err, "create course")
		return
	}

	ac.audit.LogAdminAction(actor, entities.AuditEventCatalog, "course_create", "course", id, "Created course: "+req.Title, nil)
	respondCreated(c, gin.H{"id": id})
}

// UpdateCourse handles PUT /api/admin/courses/:id
func (ac *AdminController) UpdateCourse(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	err := ac.catalog.UpdateCourse(c.Request.Context(), id, req.input(), req.change())
	ac.recordWrite("update", err)
	if err != nil {
		if !isClientError(err) {
			ac.audit.LogAdminAction(actor, entities.AuditEventCatalog, "course_update", "course", id, "Update course: "+req.Title, err)
		}
		respondServiceError(c, err, "update course")
		return
	}

	ac.audit.LogAdminAction(actor, entities.AuditEventCatalog, "course_update", "course", id, "Updated course: "+req.Title, nil)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteCourse handles DELETE /api/admin/courses/:id
func (ac *AdminController) DeleteCourse(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	err := ac.catalog.DeleteCourse(c.Request.Context(), id)
	ac.recordWrite("delete", err)
	if err != nil {
		if !isClientError(err) {
			ac.audit.LogAdminAction(actor, entities.AuditEventCatalog, "course_delete", "course", id, "Delete course", err)
		}
		respondServiceError(c, err, "delete course")
		return
	}

	ac.audit.LogAdminAction(actor, entities.AuditEventCatalog, "course_delete", "course", id, "Deleted course", nil)
	c.Status(http.StatusNoContent)
}

// ListUsers handles GET /api/admin/users
func (ac *AdminController) ListUsers(c *gin.Context) {
	users, err := ac.users.ListUsers(c.Request.Context())
	respondList(c, users, err, "list users", ac.metrics.DegradedRead)
}

// ListEnrollments handles GET /api/admin/enrollments
func (ac *AdminController) ListEnrollments(c *gin.Context) {
	items, err := ac.enrollment.ListEnrollments(c.Request.Context())
	respondList(c, items, err, "list enrollments", ac.metrics.DegradedRead)
}

func (ac *AdminController) recordWrite(operation string, err error) {
	switch {
	case err == nil:
		ac.metrics.CatalogWrite(operation, metrics.OutcomeSuccess)
	case isClientError(err):
		ac.metrics.CatalogWrite(operation, metrics.OutcomeRejected)
	default:
		ac.metrics.CatalogWrite(operation, metrics.OutcomeFailed)
	}
}

func isClientError(err error) bool {
	return errors.Is(err, catalog.ErrInvalidCourse) || errors.Is(err, catalog.ErrCourseNotFound)
}
