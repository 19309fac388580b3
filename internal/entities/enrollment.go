package entities

import "time"

type Enrollment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_user_course" json:"user_id"`
	CourseID   uint      `gorm:"not null;uniqueIndex:idx_user_course;index" json:"course_id"`
	EnrolledAt time.Time `gorm:"index" json:"enrolled_at"`
}

func (Enrollment) TableName() string {
	return TableEnrollments
}

func (e Enrollment) RecordID() uint { return e.ID }

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
)

type Payment struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	UserID        uint          `gorm:"not null;index" json:"user_id"`
	CourseID      uint          `gorm:"not null;index" json:"course_id"`
	EnrollmentID  *uint         `gorm:"index" json:"enrollment_id,omitempty"`
	Amount        float64       `gorm:"not null" json:"amount"`
	PaymentStatus PaymentStatus `gorm:"size:20;not null" json:"payment_status"`
	PaymentDate   time.Time     `json:"payment_date"`
	Reference     string        `gorm:"uniqueIndex;size:36" json:"reference"`
}

func (Payment) TableName() string {
	return TablePayments
}

func (p Payment) RecordID() uint { return p.ID }
