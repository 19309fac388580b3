// Package audit records administrator actions and sign-in activity.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/database/audit"
	"github.com/mrlokans/coursemarket/internal/entities"
)

const maxErrorLength = 500

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records an audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(context.Background(), event); err != nil {
			log.Printf("audit: failed to log %s event: %v", event.Action, err)
		}
	}()
}

// Wait blocks until every pending LogAsync write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogAdminAction records a catalog or maintenance change made by an
// administrator. A non-nil err marks the event as failed.
func (s *Service) LogAdminAction(actor auth.Actor, eventType entities.AuditEventType, action, entityType string, entityID uint, description string, err error) {
	event := &entities.AuditEvent{
		UserID:      actor.UserID,
		EventType:   eventType,
		Action:      action,
		Description: truncate(description, maxErrorLength),
		EntityType:  entityType,
		Status:      entities.AuditStatusSuccess,
	}
	if entityID != 0 {
		event.EntityID = &entityID
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxErrorLength)
	}

	s.LogAsync(event)
}

// LogReconcile records the outcome of a reconciliation run.
func (s *Service) LogReconcile(actor auth.Actor, resolved, failed, remaining int, err error) {
	event := &entities.AuditEvent{
		UserID:      actor.UserID,
		EventType:   entities.AuditEventMaintenance,
		Action:      "reconcile",
		Description: "Reconciled partial writes",
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]int{
		"resolved":  resolved,
		"failed":    failed,
		"remaining": remaining,
	}
	if md, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(md)
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxErrorLength)
	}

	s.LogAsync(event)
}

// HandleAuthEvent is an auth.Listener that turns session changes into audit
// events.
func (s *Service) HandleAuthEvent(e auth.Event) {
	event := &entities.AuditEvent{
		UserID:      e.UserID,
		EventType:   entities.AuditEventAuth,
		Action:      string(e.Type),
		Description: e.Email,
		EntityType:  "user",
		Status:      entities.AuditStatusSuccess,
		CreatedAt:   e.At,
	}
	if e.UserID != 0 {
		id := e.UserID
		event.EntityID = &id
	}
	if e.Type == auth.EventSignInFailed {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(e.Reason, maxErrorLength)
	}

	s.LogAsync(event)
}

// ListEvents returns one page of events, most recent first, and the total.
func (s *Service) ListEvents(ctx context.Context, q audit.Query) ([]entities.AuditEvent, int64, error) {
	return s.repo.ListEvents(ctx, q)
}

// DeleteOldEvents removes events older than retention.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
