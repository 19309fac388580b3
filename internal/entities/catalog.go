package entities

import "time"

// Table names used by the data store client.
const (
	TableUsers            = "users"
	TableCourses          = "courses"
	TableCategories       = "categories"
	TableCourseCategories = "course_categories"
	TableEnrollments      = "enrollments"
	TablePayments         = "payments"
	TableAuditEvents      = "audit_events"
	TableCompensations    = "compensations"
)

type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Price       float64   `gorm:"not null;default:0" json:"price"`
	ImageURL    string    `gorm:"size:2048" json:"image_url"`
	CreatedBy   uint      `gorm:"index" json:"created_by"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Course) TableName() string {
	return TableCourses
}

func (c Course) RecordID() uint { return c.ID }

type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;size:100" json:"name"`
	Description string `gorm:"size:500" json:"description"`
}

func (Category) TableName() string {
	return TableCategories
}

func (c Category) RecordID() uint { return c.ID }

// CourseCategory is the many-to-many mapping between courses and categories.
// A pair appears at most once.
type CourseCategory struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CourseID   uint `gorm:"not null;uniqueIndex:idx_course_category" json:"course_id"`
	CategoryID uint `gorm:"not null;uniqueIndex:idx_course_category;index" json:"category_id"`
}

func (CourseCategory) TableName() string {
	return TableCourseCategories
}

func (cc CourseCategory) RecordID() uint { return cc.ID }

// DefaultCategories are seeded on startup when missing.
var DefaultCategories = []Category{
	{Name: "Web Development", Description: "Courses related to web development technologies"},
	{Name: "Mobile Development", Description: "Learn to build mobile applications"},
	{Name: "Data Science", Description: "Learn data analysis and machine learning"},
	{Name: "Design", Description: "UI/UX and graphic design courses"},
}
