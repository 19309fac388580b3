// Package reconcile repairs writes that only partly succeeded while the
// store ran without transactions.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/entities"
)

var (
	ErrUnknownKind = errors.New("unknown compensation kind")
	ErrCourseAlive = errors.New("course exists again, refusing to delete its dependents")
)

// Outcome labels reported to the Recorder.
const (
	OutcomeResolved = "resolved"
	OutcomeRetry    = "retry"
	OutcomeFailed   = "failed"
)

type Log interface {
	Pending(ctx context.Context, limit int) ([]entities.Compensation, error)
	MarkResolved(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, entry *entities.Compensation, cause error, maxAttempts int) error
}

type Recorder interface {
	CompensationProcessed(kind, outcome string)
}

// Result summarises one run.
type Result struct {
	Resolved int `json:"resolved"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
}

func (r Result) Processed() int { return r.Resolved + r.Retried + r.Failed }

type Service struct {
	store       *store.Client
	log         Log
	recorder    Recorder
	maxAttempts int
	batchSize   int
}

func NewService(client *store.Client, comps Log, recorder Recorder, cfg config.Maintenance) *Service {
	if cfg.ReconcileMaxAttempts <= 0 {
		cfg.ReconcileMaxAttempts = 5
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 100
	}
	return &Service{
		store:       client,
		log:         comps,
		recorder:    recorder,
		maxAttempts: cfg.ReconcileMaxAttempts,
		batchSize:   cfg.ReconcileBatchSize,
	}
}

// Run processes one batch of pending entries, oldest first. Entry failures
// are recorded on the entry and do not stop the run; only failures of the
// log itself are returned.
func (s *Service) Run(ctx context.Context) (Result, error) {
	var result Result

	entries, err := s.log.Pending(ctx, s.batchSize)
	if err != nil {
		return result, fmt.Errorf("load pending compensations: %w", err)
	}

	for i := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entry := &entries[i]

		applyErr := s.store.Transaction(ctx, func(tx *store.Client) error {
			return s.apply(ctx, tx, entry)
		})
		if applyErr == nil {
			if err := s.log.MarkResolved(ctx, entry.ID); err != nil {
				return result, fmt.Errorf("resolve compensation %d: %w", entry.ID, err)
			}
			result.Resolved++
			s.observe(entry.Kind, OutcomeResolved)
			continue
		}

		log.Printf("reconcile: %s entry %d failed (attempt %d): %v", entry.Kind, entry.ID, entry.Attempts+1, applyErr)
		if err := s.log.MarkFailed(ctx, entry, applyErr, s.maxAttempts); err != nil {
			return result, fmt.Errorf("record failed compensation %d: %w", entry.ID, err)
		}
		if entry.Status == entities.CompensationFailed {
			result.Failed++
			s.observe(entry.Kind, OutcomeFailed)
		} else {
			result.Retried++
			s.observe(entry.Kind, OutcomeRetry)
		}
	}

	if result.Processed() > 0 {
		log.Printf("reconcile: resolved %d, retrying %d, gave up on %d", result.Resolved, result.Retried, result.Failed)
	}
	return result, nil
}

func (s *Service) apply(ctx context.Context, tx *store.Client, entry *entities.Compensation) error {
	switch entry.Kind {
	case entities.CompensationOrphanEnrollment:
		return s.retractEnrollment(ctx, tx, entry)
	case entities.CompensationCategoryMapping:
		return s.restoreMappings(ctx, tx, entry)
	case entities.CompensationCourseCascade:
		return s.finishCascade(ctx, tx, entry)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, entry.Kind)
	}
}

// retractEnrollment deletes an enrollment whose payment was never written.
// The user was told the enrollment failed, so the row must not grant access.
func (s *Service) retractEnrollment(ctx context.Context, tx *store.Client, entry *entities.Compensation) error {
	paid, err := tx.Count(ctx, entities.TablePayments, store.Filter{"user_id": entry.UserID, "course_id": entry.CourseID})
	if err != nil {
		return err
	}
	if paid > 0 {
		return nil
	}

	filter := store.Filter{"user_id": entry.UserID, "course_id": entry.CourseID}
	if entry.EnrollmentID != nil {
		filter = store.Filter{"id": *entry.EnrollmentID}
	}
	_, err = tx.Delete(ctx, entities.TableEnrollments, filter)
	return err
}

// restoreMappings inserts the category mappings a course creation left out,
// skipping categories that have since disappeared.
func (s *Service) restoreMappings(ctx context.Context, tx *store.Client, entry *entities.Compensation) error {
	var payload entities.CategoryMappingPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	var course entities.Course
	found, err := tx.First(ctx, entities.TableCourses, &course, store.Filter{"id": entry.CourseID}, store.Select("id"))
	if err != nil {
		return err
	}
	if !found || len(payload.CategoryIDs) == 0 {
		return nil
	}

	var categories []entities.Category
	if err := tx.Query(ctx, entities.TableCategories, &categories, store.Filter{"id": payload.CategoryIDs}, store.Select("id")); err != nil {
		return err
	}
	var existing []entities.CourseCategory
	if err := tx.Query(ctx, entities.TableCourseCategories, &existing, store.Filter{"course_id": entry.CourseID}, store.Select("category_id")); err != nil {
		return err
	}

	mapped := make(map[uint]bool, len(existing))
	for _, m := range existing {
		mapped[m.CategoryID] = true
	}
	var missing []entities.CourseCategory
	for _, c := range categories {
		if !mapped[c.ID] {
			missing = append(missing, entities.CourseCategory{CourseID: entry.CourseID, CategoryID: c.ID})
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return tx.InsertBatch(ctx, entities.TableCourseCategories, &missing)
}

// finishCascade removes rows still pointing at a deleted course.
func (s *Service) finishCascade(ctx context.Context, tx *store.Client, entry *entities.Compensation) error {
	var course entities.Course
	found, err := tx.First(ctx, entities.TableCourses, &course, store.Filter{"id": entry.CourseID}, store.Select("id"))
	if err != nil {
		return err
	}
	if found {
		return ErrCourseAlive
	}

	for _, table := range []string{entities.TableCourseCategories, entities.TableEnrollments, entities.TablePayments} {
		if _, err := tx.Delete(ctx, table, store.Filter{"course_id": entry.CourseID}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) observe(kind entities.CompensationKind, outcome string) {
	if s.recorder != nil {
		s.recorder.CompensationProcessed(string(kind), outcome)
	}
}
