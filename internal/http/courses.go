package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/coursemarket/internal/catalog"
	"github.com/mrlokans/coursemarket/internal/metrics"
)

// CourseListItem is the list rendering of a course.
type CourseListItem struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
	AuthorName  string  `json:"author_name"`
}

func toListItems(courses []catalog.CourseView) []CourseListItem {
	items := make([]CourseListItem, 0, len(courses))
	for _, c := range courses {
		items = append(items, CourseListItem{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
			Price:       c.Price,
			ImageURL:    c.ImageURL,
			AuthorName:  c.AuthorName,
		})
	}
	return items
}

// CoursesController serves the public catalog.
type CoursesController struct {
	catalog CourseCatalog
	metrics *metrics.Metrics
}

func NewCoursesController(catalog CourseCatalog, m *metrics.Metrics) *CoursesController {
	return &CoursesController{catalog: catalog, metrics: m}
}

// ListCourses handles GET /api/courses?category_id=
func (cc *CoursesController) ListCourses(c *gin.Context) {
	categoryID, ok := parseOptionalQueryID(c, "category_id")
	if !ok {
		return
	}
	courses, err := cc.catalog.ListCourses(c.Request.Context(), categoryID)
	respondList(c, toListItems(courses), err, "list courses", cc.metrics.DegradedRead)
}

// FeaturedCourses handles GET /api/courses/featured?limit=
func (cc *CoursesController) FeaturedCourses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit < 0 || limit > 50 {
		limit = 0
	}
	courses, err := cc.catalog.FeaturedCourses(c.Request.Context(), limit)
	respondList(c, toListItems(courses), err, "featured courses", cc.metrics.DegradedRead)
}

// GetCourse handles GET /api/courses/:id
func (cc *CoursesController) GetCourse(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	course, err := cc.catalog.GetCourse(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get course")
		return
	}
	c.JSON(http.StatusOK, course)
}

// GetCourseCategories handles GET /api/courses/:id/categories
func (cc *CoursesController) GetCourseCategories(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	categories, err := cc.catalog.GetCourseCategories(c.Request.Context(), id)
	respondList(c, categories, err, "course categories", cc.metrics.DegradedRead)
}

// ListCategories handles GET /api/categories
func (cc *CoursesController) ListCategories(c *gin.Context) {
	categories, err := cc.catalog.ListCategories(c.Request.Context())
	respondList(c, categories, err, "list categories", cc.metrics.DegradedRead)
}
