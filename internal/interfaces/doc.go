// Package interfaces documents the seams between the marketplace packages.
//
// Consumers declare the interfaces they need next to the code that uses
// them; this package only holds compile-time checks tying each interface to
// its implementation.
//
// # Interface Categories
//
// ## HTTP API (internal/http/stores.go)
//
//   - CourseCatalog: course and category reads and admin writes (catalog.Service)
//   - Enroller: enrollment with payment and listings (enrollment.Service)
//   - UserDirectory: account listing for admins (auth.Service)
//   - AuditLog: admin action trail (audit.Service)
//   - Reconciler: compensation log processing (reconcile.Service)
//   - TaskQueue: background task enqueue and status (tasks.Client)
//   - Pinger: database reachability for /health (database.Database)
//
// ## Compensation log
//
//   - catalog.CompensationRecorder, enrollment.CompensationRecorder: write side
//   - reconcile.Log: read and resolve side
//
// Both are implemented by compensations.Repository.
//
// ## Background work
//
//   - tasks.Reconciler, tasks.AuditEventCleaner: work run by queue processors
//   - scheduler.Enqueuer: what the cron scheduler needs from the queue
//   - reconcile.Recorder, tasks.Recorder: metric sinks (metrics.Metrics)
//
// # Adding a New Admin Endpoint
//
//  1. Add the operation to the owning service and, if the controller needs
//     it, to the interface in internal/http/stores.go.
//
//  2. Write the handler in internal/http/ and map service errors with
//     respondServiceError.
//
//  3. Register the route under the admin group in router.go.
//
// # Adding a New Compensation Kind
//
//  1. Add the kind constant in internal/entities/compensation.go.
//
//  2. Record it where the partial write happens, only when the store client
//     is not transactional.
//
//  3. Handle it in reconcile.Service.apply; unknown kinds fail with
//     reconcile.ErrUnknownKind.
//
// # Compile-Time Interface Checks
//
// All implementations should have a check in checks.go:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
package interfaces
