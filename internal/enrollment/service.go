// Package enrollment enrolls users in courses and records their payments.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/entities"
)

// CompensationRecorder queues enrollments left without a payment and clears
// the queue once such an enrollment is paid for after all.
type CompensationRecorder interface {
	Record(ctx context.Context, c *entities.Compensation) error
	ResolveEnrollment(ctx context.Context, enrollmentID uint) (int64, error)
}

type Service struct {
	store         *store.Client
	compensations CompensationRecorder
	now           func() time.Time
}

func NewService(client *store.Client, compensations CompensationRecorder) *Service {
	return &Service{
		store:         client,
		compensations: compensations,
		now:           time.Now,
	}
}

// Enroll enrolls the actor in a course and records a completed payment of
// amount. When the payment cannot be written the call fails with
// ErrPaymentFailed: a transactional store rolls the enrollment back, a
// non-transactional one keeps the row and queues it for the reconciler.
// Enrolling again in a course whose enrollment was never paid for completes
// the payment on the existing row.
func (s *Service) Enroll(ctx context.Context, actor auth.Actor, courseID uint, amount float64) (*entities.Enrollment, error) {
	if actor.IsZero() {
		return nil, ErrNoActor
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}

	var enrolled *entities.Enrollment
	err := s.store.Transaction(ctx, func(tx *store.Client) error {
		var course entities.Course
		found, err := tx.First(ctx, entities.TableCourses, &course, store.Filter{"id": courseID}, store.Select("id"))
		if err != nil {
			return fmt.Errorf("enroll in course %d: %w", courseID, err)
		}
		if !found {
			return ErrCourseNotFound
		}

		pair := store.Filter{"user_id": actor.UserID, "course_id": courseID}
		var previous entities.Enrollment
		found, err = tx.First(ctx, entities.TableEnrollments, &previous, pair)
		if err != nil {
			return fmt.Errorf("enroll in course %d: %w", courseID, err)
		}
		if found {
			paid, err := tx.Count(ctx, entities.TablePayments, pair)
			if err != nil {
				return fmt.Errorf("enroll in course %d: %w", courseID, err)
			}
			if paid > 0 {
				return ErrAlreadyEnrolled
			}
			if err := s.pay(ctx, tx, &previous, amount, s.now().UTC()); err != nil {
				return err
			}
			s.resolveOrphan(ctx, previous.ID)
			enrolled = &previous
			return nil
		}

		now := s.now().UTC()
		e := &entities.Enrollment{UserID: actor.UserID, CourseID: courseID, EnrolledAt: now}
		id, err := tx.Insert(ctx, entities.TableEnrollments, e)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyEnrolled
			}
			return fmt.Errorf("enroll in course %d: %w", courseID, err)
		}
		e.ID = id

		if err := s.pay(ctx, tx, e, amount, now); err != nil {
			if !tx.Transactional() {
				log.Printf("enrollment: payment for enrollment %d failed, queued for cleanup: %v", id, err)
				s.recordOrphan(ctx, e, err)
			}
			return err
		}

		enrolled = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enrolled, nil
}

// pay records a completed payment of amount for e.
func (s *Service) pay(ctx context.Context, tx *store.Client, e *entities.Enrollment, amount float64, at time.Time) error {
	id := e.ID
	payment := &entities.Payment{
		UserID:        e.UserID,
		CourseID:      e.CourseID,
		EnrollmentID:  &id,
		Amount:        amount,
		PaymentStatus: entities.PaymentStatusCompleted,
		PaymentDate:   at,
		Reference:     uuid.NewString(),
	}
	if _, err := tx.Insert(ctx, entities.TablePayments, payment); err != nil {
		return fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	return nil
}

// IsEnrolled reports whether the user holds a paid enrollment in the course.
// An enrollment whose payment failed grants nothing. A failed lookup is
// logged and reported as not enrolled.
func (s *Service) IsEnrolled(ctx context.Context, userID, courseID uint) bool {
	if userID == 0 || courseID == 0 {
		return false
	}
	pair := store.Filter{"user_id": userID, "course_id": courseID}
	n, err := s.store.Count(ctx, entities.TableEnrollments, pair)
	if err == nil && n > 0 {
		n, err = s.store.Count(ctx, entities.TablePayments, pair)
	}
	if err != nil {
		log.Printf("enrollment: failed to check enrollment of user %d in course %d: %v", userID, courseID, err)
		return false
	}
	return n > 0
}

// ListEnrollments returns every enrollment with the user and course names
// resolved, newest first.
func (s *Service) ListEnrollments(ctx context.Context) ([]EnrollmentView, error) {
	return s.list(ctx, nil)
}

// ListUserEnrollments returns the enrollments of one user, newest first.
func (s *Service) ListUserEnrollments(ctx context.Context, userID uint) ([]EnrollmentView, error) {
	return s.list(ctx, store.Filter{"user_id": userID})
}

func (s *Service) list(ctx context.Context, filter store.Filter) ([]EnrollmentView, error) {
	var rows []entities.Enrollment
	err := s.store.Query(ctx, entities.TableEnrollments, &rows, filter,
		store.OrderBy("enrolled_at DESC"), store.OrderBy("id DESC"))
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	views := make([]EnrollmentView, len(rows))
	userIDs := make([]uint, 0, len(rows))
	courseIDs := make([]uint, 0, len(rows))
	for i, r := range rows {
		views[i] = EnrollmentView{Enrollment: r, UserName: UnknownName, CourseTitle: UnknownName}
		userIDs = append(userIDs, r.UserID)
		courseIDs = append(courseIDs, r.CourseID)
	}
	if len(rows) == 0 {
		return views, nil
	}

	var users []entities.User
	if err := s.store.Query(ctx, entities.TableUsers, &users, store.Filter{"id": userIDs}, store.Select("id", "name")); err != nil {
		log.Printf("enrollment: failed to resolve user names: %v", err)
	}
	var courses []entities.Course
	if err := s.store.Query(ctx, entities.TableCourses, &courses, store.Filter{"id": courseIDs}, store.Select("id", "title")); err != nil {
		log.Printf("enrollment: failed to resolve course titles: %v", err)
	}

	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	titles := make(map[uint]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
	}
	for i := range views {
		if n, ok := names[views[i].UserID]; ok && n != "" {
			views[i].UserName = n
		}
		if t, ok := titles[views[i].CourseID]; ok {
			views[i].CourseTitle = t
		}
	}
	return views, nil
}

func (s *Service) recordOrphan(ctx context.Context, e *entities.Enrollment, cause error) {
	if s.compensations == nil {
		return
	}
	id := e.ID
	err := s.compensations.Record(context.WithoutCancel(ctx), &entities.Compensation{
		Kind:         entities.CompensationOrphanEnrollment,
		CourseID:     e.CourseID,
		UserID:       e.UserID,
		EnrollmentID: &id,
		LastError:    cause.Error(),
	})
	if err != nil {
		log.Printf("enrollment: failed to record orphan enrollment %d: %v", e.ID, err)
	}
}

func (s *Service) resolveOrphan(ctx context.Context, enrollmentID uint) {
	if s.compensations == nil {
		return
	}
	if _, err := s.compensations.ResolveEnrollment(context.WithoutCancel(ctx), enrollmentID); err != nil {
		log.Printf("enrollment: enrollment %d paid but its cleanup entry was not resolved: %v", enrollmentID, err)
	}
}
