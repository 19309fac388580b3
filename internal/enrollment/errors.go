package enrollment

import "errors"

var (
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrCourseNotFound  = errors.New("course not found")
	// ErrPaymentFailed means the enrollment could not be paid for. The
	// caller must treat the enrollment as not having happened.
	ErrPaymentFailed = errors.New("payment could not be recorded")
	ErrInvalidAmount = errors.New("amount must be a non-negative number")
	ErrNoActor       = errors.New("an authenticated user is required")
)
