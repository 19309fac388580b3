package enrollment

import "github.com/mrlokans/coursemarket/internal/entities"

// UnknownName stands in for a user or course that no longer resolves.
const UnknownName = "Unknown"

type EnrollmentView struct {
	entities.Enrollment
	UserName    string `json:"user_name"`
	CourseTitle string `json:"course_title"`
}
