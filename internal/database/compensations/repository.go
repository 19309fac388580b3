// Package compensations stores the log of partially applied writes that the
// reconciler later repairs.
package compensations

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/coursemarket/internal/entities"
)

const maxErrorLength = 500

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record appends a pending entry.
func (r *Repository) Record(ctx context.Context, c *entities.Compensation) error {
	c.Status = entities.CompensationPending
	c.LastError = truncate(c.LastError, maxErrorLength)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(c).Error
}

// Pending returns up to limit pending entries, oldest first.
func (r *Repository) Pending(ctx context.Context, limit int) ([]entities.Compensation, error) {
	var entries []entities.Compensation
	query := r.db.WithContext(ctx).
		Where("status = ?", entities.CompensationPending).
		Order("created_at ASC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}

func (r *Repository) CountByStatus(ctx context.Context, status entities.CompensationStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Compensation{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func (r *Repository) MarkResolved(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entities.Compensation{}).Where("id = ?", id).Updates(map[string]any{
		"status":      entities.CompensationResolved,
		"resolved_at": now,
		"attempts":    gorm.Expr("attempts + 1"),
		"last_error":  "",
	}).Error
}

// ResolveEnrollment resolves the pending orphan entries of an enrollment that
// has since been paid for. It returns how many entries it resolved.
func (r *Repository) ResolveEnrollment(ctx context.Context, enrollmentID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entities.Compensation{}).
		Where("kind = ? AND enrollment_id = ? AND status = ?",
			entities.CompensationOrphanEnrollment, enrollmentID, entities.CompensationPending).
		Updates(map[string]any{
			"status":      entities.CompensationResolved,
			"resolved_at": time.Now(),
			"last_error":  "",
		})
	return res.RowsAffected, res.Error
}

// MarkFailed records a failed attempt. The entry stays pending until it has
// been tried maxAttempts times, then it is parked as failed.
func (r *Repository) MarkFailed(ctx context.Context, entry *entities.Compensation, cause error, maxAttempts int) error {
	entry.Attempts++
	entry.LastError = truncate(cause.Error(), maxErrorLength)
	if maxAttempts > 0 && entry.Attempts >= maxAttempts {
		entry.Status = entities.CompensationFailed
	}
	return r.db.WithContext(ctx).Model(&entities.Compensation{}).Where("id = ?", entry.ID).Updates(map[string]any{
		"attempts":   entry.Attempts,
		"last_error": entry.LastError,
		"status":     entry.Status,
	}).Error
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
