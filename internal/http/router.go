package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cfg.Metrics.Middleware())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}
	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api")

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(api.Group("/auth"))
	}

	courses := NewCoursesController(cfg.Catalog, cfg.Metrics)
	api.GET("/courses", courses.ListCourses)
	api.GET("/courses/featured", courses.FeaturedCourses)
	api.GET("/courses/:id", courses.GetCourse)
	api.GET("/courses/:id/categories", courses.GetCourseCategories)
	api.GET("/categories", courses.ListCategories)

	enrollments := NewEnrollmentsController(cfg.Catalog, cfg.Enrollment, cfg.Metrics)
	signedIn := api.Group("", auth.RequireAuth())
	signedIn.POST("/courses/:id/enroll", enrollments.Enroll)
	signedIn.GET("/courses/:id/enrollment", enrollments.EnrollmentStatus)
	signedIn.GET("/me/enrollments", enrollments.MyEnrollments)

	admin := api.Group("/admin", auth.RequireRole(entities.UserRoleAdmin))
	adminController := NewAdminController(cfg.Catalog, cfg.Enrollment, cfg.Users, cfg.Audit, cfg.Metrics)
	admin.POST("/courses", adminController.CreateCourse)
	admin.PUT("/courses/:id", adminController.UpdateCourse)
	admin.DELETE("/courses/:id", adminController.DeleteCourse)
	admin.GET("/users", adminController.ListUsers)
	admin.GET("/enrollments", adminController.ListEnrollments)

	auditController := NewAuditController(cfg.Audit, cfg.Metrics)
	admin.GET("/audit", auditController.GetAuditEvents)

	maintenance := NewMaintenanceController(cfg.Reconciler, cfg.TaskQueue, cfg.Audit)
	admin.POST("/reconcile", maintenance.Reconcile)
	admin.GET("/tasks/:id", maintenance.GetTaskStatus)

	return router
}
