// Package scheduler enqueues periodic maintenance work on the task queue.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/tasks"
)

// AuditCleanupSchedule runs the audit retention sweep once a day.
const AuditCleanupSchedule = "0 3 * * *"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type Enqueuer interface {
	Enqueue(task backlite.Task) (string, error)
}

// MaintenanceScheduler enqueues a reconcile batch on the configured schedule
// and an audit cleanup once a day.
type MaintenanceScheduler struct {
	queue         Enqueuer
	schedule      string
	retentionDays int

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewMaintenanceScheduler(queue Enqueuer, cfg config.Maintenance, audit config.Audit) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		queue:         queue,
		schedule:      cfg.Schedule,
		retentionDays: audit.RetentionDays,
		cron:          cron.New(cron.WithParser(parser)),
	}
}

// Start registers the jobs and starts the cron loop. The scheduler stops
// when ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.EnqueueReconcile); err != nil {
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}
	if _, err := s.cron.AddFunc(AuditCleanupSchedule, s.EnqueueAuditCleanup); err != nil {
		return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	next, _ := NextRun(s.schedule, time.Now())
	log.Printf("scheduler: maintenance started with schedule '%s', next run %v", s.schedule, next)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for running jobs and stops the cron loop.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	log.Printf("scheduler: maintenance stopped")
}

func (s *MaintenanceScheduler) EnqueueReconcile() {
	if _, err := s.queue.Enqueue(tasks.ReconcileTask{Trigger: "schedule"}); err != nil {
		log.Printf("scheduler: failed to enqueue reconcile: %v", err)
	}
}

func (s *MaintenanceScheduler) EnqueueAuditCleanup() {
	if _, err := s.queue.Enqueue(tasks.CleanupAuditEventsTask{RetentionDays: s.retentionDays}); err != nil {
		log.Printf("scheduler: failed to enqueue audit cleanup: %v", err)
	}
}

func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// NextRun returns the first activation of schedule after from.
func NextRun(schedule string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}
