package enrollment

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/database"
	"github.com/mrlokans/coursemarket/internal/database/compensations"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/entities"
)

var errInjected = errors.New("injected failure")

type fixture struct {
	svc    *Service
	db     *gorm.DB
	user   auth.Actor
	course uint
}

func setup(t *testing.T, transactional bool) *fixture {
	t.Helper()
	d, err := database.NewDatabase(filepath.Join(t.TempDir(), "enrollment.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	user := &entities.User{Name: "Ada Learner", Email: "ada@example.com", Role: entities.UserRoleUser}
	require.NoError(t, d.DB.Create(user).Error)
	course := &entities.Course{Title: "Go 101", Description: "Basics", Price: 49.5}
	require.NoError(t, d.DB.Create(course).Error)

	svc := NewService(store.New(d.DB, store.WithTransactions(transactional)), compensations.NewRepository(d.DB))
	return &fixture{svc: svc, db: d.DB, user: auth.ActorFromUser(user), course: course.ID}
}

func failPaymentInserts(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_payments", func(tx *gorm.DB) {
		if tx.Statement.Table == entities.TablePayments {
			_ = tx.AddError(errInjected)
		}
	})
	require.NoError(t, err)
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func TestService_Enroll(t *testing.T) {
	for _, transactional := range []bool{true, false} {
		t.Run(map[bool]string{true: "transactional", false: "non-transactional"}[transactional], func(t *testing.T) {
			f := setup(t, transactional)
			ctx := context.Background()

			e, err := f.svc.Enroll(ctx, f.user, f.course, 49.5)
			require.NoError(t, err)
			assert.NotZero(t, e.ID)
			assert.Equal(t, f.user.UserID, e.UserID)
			assert.Equal(t, f.course, e.CourseID)
			assert.WithinDuration(t, time.Now(), e.EnrolledAt, time.Minute)

			var payment entities.Payment
			require.NoError(t, f.db.First(&payment).Error)
			assert.Equal(t, entities.PaymentStatusCompleted, payment.PaymentStatus)
			assert.Equal(t, 49.5, payment.Amount)
			require.NotNil(t, payment.EnrollmentID)
			assert.Equal(t, e.ID, *payment.EnrollmentID)
			assert.Len(t, payment.Reference, 36)

			assert.True(t, f.svc.IsEnrolled(ctx, f.user.UserID, f.course))
		})
	}
}

func TestService_Enroll_Rejections(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, auth.Actor{}, f.course, 10)
	assert.ErrorIs(t, err, ErrNoActor)

	_, err = f.svc.Enroll(ctx, f.user, f.course, -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.Enroll(ctx, f.user, 999, 10)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = f.svc.Enroll(ctx, f.user, f.course, 10)
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, f.user, f.course, 10)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	assert.Equal(t, int64(1), f.count(t, &entities.Enrollment{}))
	assert.Equal(t, int64(1), f.count(t, &entities.Payment{}))
}

func TestService_Enroll_ConcurrentDuplicates(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Enroll(ctx, f.user, f.course, 10)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), f.count(t, &entities.Enrollment{}))
}

func TestService_Enroll_PaymentFailure(t *testing.T) {
	t.Run("transactional rolls back the enrollment", func(t *testing.T) {
		f := setup(t, true)
		failPaymentInserts(t, f.db)

		e, err := f.svc.Enroll(context.Background(), f.user, f.course, 10)
		assert.Nil(t, e)
		assert.ErrorIs(t, err, ErrPaymentFailed)
		assert.ErrorIs(t, err, store.ErrRejected)

		assert.Zero(t, f.count(t, &entities.Enrollment{}))
		assert.Zero(t, f.count(t, &entities.Compensation{}))
		assert.False(t, f.svc.IsEnrolled(context.Background(), f.user.UserID, f.course))
	})

	t.Run("non-transactional keeps the row and queues it", func(t *testing.T) {
		f := setup(t, false)
		failPaymentInserts(t, f.db)

		e, err := f.svc.Enroll(context.Background(), f.user, f.course, 10)
		assert.Nil(t, e)
		assert.ErrorIs(t, err, ErrPaymentFailed)

		var orphan entities.Enrollment
		require.NoError(t, f.db.First(&orphan).Error)
		assert.Zero(t, f.count(t, &entities.Payment{}))

		pending, err := compensations.NewRepository(f.db).Pending(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, entities.CompensationOrphanEnrollment, pending[0].Kind)
		require.NotNil(t, pending[0].EnrollmentID)
		assert.Equal(t, orphan.ID, *pending[0].EnrollmentID)
		assert.Equal(t, f.user.UserID, pending[0].UserID)
		assert.Contains(t, pending[0].LastError, errInjected.Error())
		assert.False(t, f.svc.IsEnrolled(context.Background(), f.user.UserID, f.course))
	})
}

func TestService_Enroll_RetryAfterPaymentFailure(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	failed := false
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_first_payment", func(tx *gorm.DB) {
		if tx.Statement.Table == entities.TablePayments && !failed {
			failed = true
			_ = tx.AddError(errInjected)
		}
	}))

	_, err := f.svc.Enroll(ctx, f.user, f.course, 10)
	require.ErrorIs(t, err, ErrPaymentFailed)
	var orphan entities.Enrollment
	require.NoError(t, f.db.First(&orphan).Error)

	e, err := f.svc.Enroll(ctx, f.user, f.course, 10)
	require.NoError(t, err)
	assert.Equal(t, orphan.ID, e.ID)
	assert.Equal(t, int64(1), f.count(t, &entities.Enrollment{}))
	assert.True(t, f.svc.IsEnrolled(ctx, f.user.UserID, f.course))

	var payment entities.Payment
	require.NoError(t, f.db.First(&payment).Error)
	require.NotNil(t, payment.EnrollmentID)
	assert.Equal(t, orphan.ID, *payment.EnrollmentID)

	pending, err := compensations.NewRepository(f.db).Pending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.Enroll(ctx, f.user, f.course, 10)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestService_IsEnrolled_FailsClosed(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	_, err := f.svc.Enroll(ctx, f.user, f.course, 10)
	require.NoError(t, err)

	assert.False(t, f.svc.IsEnrolled(ctx, 0, f.course))
	assert.False(t, f.svc.IsEnrolled(ctx, f.user.UserID, 999))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, f.svc.IsEnrolled(cancelled, f.user.UserID, f.course))

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	assert.False(t, f.svc.IsEnrolled(ctx, f.user.UserID, f.course))
}

func TestService_ListEnrollments(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	other := &entities.User{Name: "Linus", Email: "linus@example.com", Role: entities.UserRoleUser}
	require.NoError(t, f.db.Create(other).Error)
	second := &entities.Course{Title: "Rust 101", Description: "Basics", Price: 10}
	require.NoError(t, f.db.Create(second).Error)

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	_, err := f.svc.Enroll(ctx, f.user, f.course, 10)
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, auth.ActorFromUser(other), f.course, 10)
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, f.user, second.ID, 10)
	require.NoError(t, err)

	all, err := f.svc.ListEnrollments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Rust 101", all[0].CourseTitle)
	assert.Equal(t, "Ada Learner", all[0].UserName)
	assert.Equal(t, "Linus", all[1].UserName)
	assert.Equal(t, "Go 101", all[2].CourseTitle)

	mine, err := f.svc.ListUserEnrollments(ctx, f.user.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, e := range mine {
		assert.Equal(t, f.user.UserID, e.UserID)
	}

	require.NoError(t, f.db.Delete(&entities.Course{}, second.ID).Error)
	all, err = f.svc.ListEnrollments(ctx)
	require.NoError(t, err)
	assert.Equal(t, UnknownName, all[0].CourseTitle)

	none, err := f.svc.ListUserEnrollments(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}
