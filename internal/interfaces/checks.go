package interfaces

// Compile-time interface implementation checks. A concrete type that drifts
// from the interface its consumer declares fails the build here.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/coursemarket/internal/audit"
	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/catalog"
	"github.com/mrlokans/coursemarket/internal/database"
	"github.com/mrlokans/coursemarket/internal/database/compensations"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/database/users"
	"github.com/mrlokans/coursemarket/internal/enrollment"
	"github.com/mrlokans/coursemarket/internal/http"
	"github.com/mrlokans/coursemarket/internal/metrics"
	"github.com/mrlokans/coursemarket/internal/reconcile"
	"github.com/mrlokans/coursemarket/internal/scheduler"
	"github.com/mrlokans/coursemarket/internal/tasks"
)

// =============================================================================
// HTTP API
// =============================================================================

var _ http.CourseCatalog = (*catalog.Service)(nil)
var _ http.Enroller = (*enrollment.Service)(nil)
var _ http.UserDirectory = (*auth.Service)(nil)
var _ http.AuditLog = (*audit.Service)(nil)
var _ http.Reconciler = (*reconcile.Service)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)

// Pinger implementations
var _ http.Pinger = (*database.Database)(nil)
var _ http.Pinger = (*store.Client)(nil)

// =============================================================================
// Identity
// =============================================================================

var _ auth.UserRepository = (*users.Repository)(nil)
var _ auth.UserLookup = (*auth.Service)(nil)

// =============================================================================
// Compensation log
// =============================================================================

var _ catalog.CompensationRecorder = (*compensations.Repository)(nil)
var _ enrollment.CompensationRecorder = (*compensations.Repository)(nil)
var _ reconcile.Log = (*compensations.Repository)(nil)

// =============================================================================
// Background work
// =============================================================================

var _ tasks.Reconciler = (*reconcile.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)

// Metric recorders
var _ reconcile.Recorder = (*metrics.Metrics)(nil)
var _ tasks.Recorder = (*metrics.Metrics)(nil)
