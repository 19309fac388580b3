package entities

import "time"

// CompensationKind names the partial failure a compensation entry repairs.
type CompensationKind string

const (
	// CompensationOrphanEnrollment: an enrollment was written but its payment was not.
	CompensationOrphanEnrollment CompensationKind = "orphan_enrollment"
	// CompensationCategoryMapping: a course was created but some category mappings were not.
	CompensationCategoryMapping CompensationKind = "course_category_mapping"
	// CompensationCourseCascade: dependent rows of a deleted course could not be removed.
	CompensationCourseCascade CompensationKind = "course_cascade"
)

type CompensationStatus string

const (
	CompensationPending  CompensationStatus = "pending"
	CompensationResolved CompensationStatus = "resolved"
	CompensationFailed   CompensationStatus = "failed"
)

type Compensation struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	Kind         CompensationKind   `gorm:"size:50;index;not null" json:"kind"`
	Status       CompensationStatus `gorm:"size:20;index;default:pending" json:"status"`
	CourseID     uint               `gorm:"index" json:"course_id"`
	UserID       uint               `json:"user_id,omitempty"`
	EnrollmentID *uint              `json:"enrollment_id,omitempty"`
	Payload      string             `gorm:"type:text" json:"payload,omitempty"`
	Attempts     int                `gorm:"default:0" json:"attempts"`
	LastError    string             `gorm:"size:500" json:"last_error,omitempty"`
	CreatedAt    time.Time          `gorm:"index" json:"created_at"`
	ResolvedAt   *time.Time         `json:"resolved_at,omitempty"`
}

func (Compensation) TableName() string {
	return TableCompensations
}

// CategoryMappingPayload is the JSON payload of a course_category_mapping entry.
type CategoryMappingPayload struct {
	CategoryIDs []uint `json:"category_ids"`
}
