package http

import (
	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/metrics"
)

// RouterConfig contains all dependencies and configuration needed to create
// the HTTP router.
type RouterConfig struct {
	// Core services
	Catalog    CourseCatalog
	Enrollment Enroller
	Users      UserDirectory
	Audit      AuditLog
	Reconciler Reconciler
	Database   Pinger

	// Authentication. AuthController and SessionManager are required;
	// CSRF protection is enabled when CSRFSecret is set.
	AuthController *auth.AuthController
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	CSRFSecret     []byte
	SecureCookies  bool

	// Task queue client (optional). Without it reconcile runs inline.
	TaskQueue TaskQueue

	// Metrics (optional)
	Metrics *metrics.Metrics

	// Application info
	Version string
}
