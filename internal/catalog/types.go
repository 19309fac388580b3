package catalog

import (
	"math"
	"strings"

	"github.com/mrlokans/coursemarket/internal/entities"
)

// UnknownAuthor is shown when a course's creator cannot be resolved.
const UnknownAuthor = "Unknown"

// CourseView is a course as the catalog presents it: the stored row plus the
// creator's display name.
type CourseView struct {
	entities.Course
	AuthorName string `json:"author_name"`
}

// CourseInput carries the editable course fields.
type CourseInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
}

func (in CourseInput) normalized() CourseInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return in
}

// Validate checks the input the way the admin form does: a title and a
// description are required and the price may not be negative.
func (in CourseInput) Validate() error {
	in = in.normalized()
	switch {
	case in.Title == "":
		return &ValidationError{Field: "title", Message: "title is required"}
	case in.Description == "":
		return &ValidationError{Field: "description", Message: "description is required"}
	case math.IsNaN(in.Price) || math.IsInf(in.Price, 0):
		return &ValidationError{Field: "price", Message: "price must be a number"}
	case in.Price < 0:
		return &ValidationError{Field: "price", Message: "price cannot be negative"}
	}
	return nil
}

// CategoryChange tells UpdateCourse what to do with a course's category
// mappings. The zero value keeps them.
type CategoryChange struct {
	replace bool
	ids     []uint
}

// NoChange keeps the existing mappings.
func NoChange() CategoryChange { return CategoryChange{} }

// ReplaceWith drops the existing mappings and maps the course to ids. With
// no ids the course ends up in no category.
func ReplaceWith(ids ...uint) CategoryChange {
	return CategoryChange{replace: true, ids: ids}
}

// Replaces reports whether the change rewrites the mappings.
func (c CategoryChange) Replaces() bool { return c.replace }

// IDs returns the replacement category ids.
func (c CategoryChange) IDs() []uint { return c.ids }

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
