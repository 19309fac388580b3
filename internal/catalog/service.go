// Package catalog reads and writes courses, categories and the mappings
// between them.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/entities"
)

// CompensationRecorder keeps track of writes that only partly succeeded.
type CompensationRecorder interface {
	Record(ctx context.Context, c *entities.Compensation) error
}

type Service struct {
	store         *store.Client
	compensations CompensationRecorder
	defaultImage  string
	featuredLimit int
}

func NewService(client *store.Client, compensations CompensationRecorder, cfg config.Catalog) *Service {
	if cfg.DefaultImageURL == "" {
		cfg.DefaultImageURL = config.DefaultCourseImageURL
	}
	if cfg.FeaturedLimit <= 0 {
		cfg.FeaturedLimit = config.DefaultFeaturedLimit
	}
	return &Service{
		store:         client,
		compensations: compensations,
		defaultImage:  cfg.DefaultImageURL,
		featuredLimit: cfg.FeaturedLimit,
	}
}

// ListCourses returns every course, or the courses of one category, newest
// first. A category without courses yields an empty list without reading
// the courses table.
func (s *Service) ListCourses(ctx context.Context, categoryID *uint) ([]CourseView, error) {
	filter := store.Filter{}
	if categoryID != nil {
		ids, err := s.courseIDsInCategory(ctx, *categoryID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []CourseView{}, nil
		}
		filter["id"] = ids
	}

	var courses []entities.Course
	err := s.store.Query(ctx, entities.TableCourses, &courses, filter,
		store.OrderBy("created_at DESC"), store.OrderBy("id DESC"))
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return s.withAuthors(ctx, courses), nil
}

// FeaturedCourses returns the newest courses for the home page. A limit of
// zero uses the configured default.
func (s *Service) FeaturedCourses(ctx context.Context, limit int) ([]CourseView, error) {
	if limit <= 0 {
		limit = s.featuredLimit
	}
	var courses []entities.Course
	err := s.store.Query(ctx, entities.TableCourses, &courses, nil,
		store.OrderBy("created_at DESC"), store.OrderBy("id DESC"), store.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("list featured courses: %w", err)
	}
	return s.withAuthors(ctx, courses), nil
}

// GetCourse returns ErrCourseNotFound when no course has the id.
func (s *Service) GetCourse(ctx context.Context, id uint) (*CourseView, error) {
	var course entities.Course
	found, err := s.store.First(ctx, entities.TableCourses, &course, store.Filter{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", id, err)
	}
	if !found {
		return nil, ErrCourseNotFound
	}
	views := s.withAuthors(ctx, []entities.Course{course})
	return &views[0], nil
}

// ListCategories returns all categories by name.
func (s *Service) ListCategories(ctx context.Context) ([]entities.Category, error) {
	var categories []entities.Category
	err := s.store.Query(ctx, entities.TableCategories, &categories, nil, store.OrderBy("name ASC"))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// GetCourseCategories returns the categories a course is mapped to, by name.
func (s *Service) GetCourseCategories(ctx context.Context, courseID uint) ([]entities.Category, error) {
	var mappings []entities.CourseCategory
	err := s.store.Query(ctx, entities.TableCourseCategories, &mappings,
		store.Filter{"course_id": courseID}, store.Select("category_id"))
	if err != nil {
		return nil, fmt.Errorf("list categories of course %d: %w", courseID, err)
	}

	ids := make([]uint, 0, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.CategoryID)
	}

	categories := []entities.Category{}
	if len(ids) == 0 {
		return categories, nil
	}
	err = s.store.Query(ctx, entities.TableCategories, &categories,
		store.Filter{"id": ids}, store.OrderBy("name ASC"))
	if err != nil {
		return nil, fmt.Errorf("list categories of course %d: %w", courseID, err)
	}
	return categories, nil
}

// CreateCourse inserts a course owned by actor and maps it to categoryIDs.
// Unknown category ids are rejected before anything is written. Once the
// course row exists the call succeeds: a mapping failure is
// logged and queued for the reconciler instead of being returned.
func (s *Service) CreateCourse(ctx context.Context, actor auth.Actor, in CourseInput, categoryIDs []uint) (uint, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	if actor.IsZero() {
		return 0, ErrNoActor
	}
	in = in.normalized()
	if in.ImageURL == "" {
		in.ImageURL = s.defaultImage
	}

	ids := uniqueIDs(categoryIDs)
	if err := s.checkCategories(ctx, s.store, ids); err != nil {
		return 0, err
	}

	course := &entities.Course{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageURL,
		CreatedBy:   actor.UserID,
	}
	id, err := s.store.Insert(ctx, entities.TableCourses, course)
	if err != nil {
		return 0, fmt.Errorf("create course: %w", err)
	}

	if len(ids) == 0 {
		return id, nil
	}
	if err := s.insertMappings(ctx, s.store, id, ids); err != nil {
		log.Printf("catalog: course %d created but category mapping failed: %v", id, err)
		s.recordMappingFailure(ctx, id, ids, err)
	}
	return id, nil
}

// UpdateCourse rewrites the course fields and applies change to its
// category mappings.
func (s *Service) UpdateCourse(ctx context.Context, id uint, in CourseInput, change CategoryChange) error {
	if err := in.Validate(); err != nil {
		return err
	}
	in = in.normalized()

	return s.store.Transaction(ctx, func(tx *store.Client) error {
		var existing entities.Course
		found, err := tx.First(ctx, entities.TableCourses, &existing, store.Filter{"id": id}, store.Select("id", "image_url"))
		if err != nil {
			return fmt.Errorf("update course %d: %w", id, err)
		}
		if !found {
			return ErrCourseNotFound
		}

		var ids []uint
		if change.Replaces() {
			ids = uniqueIDs(change.IDs())
			if err := s.checkCategories(ctx, tx, ids); err != nil {
				return err
			}
		}

		image := in.ImageURL
		if image == "" {
			image = existing.ImageURL
		}
		if image == "" {
			image = s.defaultImage
		}

		_, err = tx.Update(ctx, entities.TableCourses, id, map[string]any{
			"title":       in.Title,
			"description": in.Description,
			"price":       in.Price,
			"image_url":   image,
			"updated_at":  time.Now(),
		})
		if err != nil {
			return fmt.Errorf("update course %d: %w", id, err)
		}

		if !change.Replaces() {
			return nil
		}
		if _, err := tx.Delete(ctx, entities.TableCourseCategories, store.Filter{"course_id": id}); err != nil {
			return fmt.Errorf("clear categories of course %d: %w", id, err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := s.insertMappings(ctx, tx, id, ids); err != nil {
			return fmt.Errorf("map categories of course %d: %w", id, err)
		}
		return nil
	})
}

// DeleteCourse removes a course after its category mappings, enrollments and
// payments. In transactional mode the whole cascade is atomic. Otherwise a
// failed dependent delete is logged and queued for the reconciler, and only
// the failure to delete the course row itself is returned.
func (s *Service) DeleteCourse(ctx context.Context, id uint) error {
	return s.store.Transaction(ctx, func(tx *store.Client) error {
		var existing entities.Course
		found, err := tx.First(ctx, entities.TableCourses, &existing, store.Filter{"id": id}, store.Select("id"))
		if err != nil {
			return fmt.Errorf("delete course %d: %w", id, err)
		}
		if !found {
			return ErrCourseNotFound
		}

		var failed []string
		for _, table := range cascadeTables {
			if _, err := tx.Delete(ctx, table, store.Filter{"course_id": id}); err != nil {
				if tx.Transactional() {
					return fmt.Errorf("delete %s of course %d: %w", table, id, err)
				}
				log.Printf("catalog: failed to delete %s of course %d: %v", table, id, err)
				failed = append(failed, table)
			}
		}

		if _, err := tx.Delete(ctx, entities.TableCourses, store.Filter{"id": id}); err != nil {
			return fmt.Errorf("delete course %d: %w", id, err)
		}

		if len(failed) > 0 {
			s.recordCascadeFailure(ctx, id, failed)
		}
		return nil
	})
}

// cascadeTables lists the dependents of a course in deletion order.
var cascadeTables = []string{
	entities.TableCourseCategories,
	entities.TableEnrollments,
	entities.TablePayments,
}

func (s *Service) courseIDsInCategory(ctx context.Context, categoryID uint) ([]uint, error) {
	var mappings []entities.CourseCategory
	err := s.store.Query(ctx, entities.TableCourseCategories, &mappings,
		store.Filter{"category_id": categoryID}, store.Select("course_id"))
	if err != nil {
		return nil, fmt.Errorf("list courses of category %d: %w", categoryID, err)
	}
	ids := make([]uint, 0, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.CourseID)
	}
	return ids, nil
}

// checkCategories rejects category ids that name no category.
func (s *Service) checkCategories(ctx context.Context, client *store.Client, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var categories []entities.Category
	err := client.Query(ctx, entities.TableCategories, &categories, store.Filter{"id": ids}, store.Select("id"))
	if err != nil {
		return fmt.Errorf("look up categories: %w", err)
	}
	known := make(map[uint]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return &ValidationError{Field: "category_ids", Message: fmt.Sprintf("category %d does not exist", id)}
		}
	}
	return nil
}

func (s *Service) insertMappings(ctx context.Context, client *store.Client, courseID uint, categoryIDs []uint) error {
	rows := make([]entities.CourseCategory, 0, len(categoryIDs))
	for _, categoryID := range categoryIDs {
		rows = append(rows, entities.CourseCategory{CourseID: courseID, CategoryID: categoryID})
	}
	return client.InsertBatch(ctx, entities.TableCourseCategories, &rows)
}

// withAuthors resolves creator names with a single users lookup. A failed
// lookup degrades every name to UnknownAuthor.
func (s *Service) withAuthors(ctx context.Context, courses []entities.Course) []CourseView {
	views := make([]CourseView, len(courses))
	creatorIDs := make([]uint, 0, len(courses))
	seen := make(map[uint]bool, len(courses))
	for i, c := range courses {
		views[i] = CourseView{Course: c, AuthorName: UnknownAuthor}
		if c.CreatedBy != 0 && !seen[c.CreatedBy] {
			seen[c.CreatedBy] = true
			creatorIDs = append(creatorIDs, c.CreatedBy)
		}
	}
	if len(creatorIDs) == 0 {
		return views
	}

	var creators []entities.User
	err := s.store.Query(ctx, entities.TableUsers, &creators,
		store.Filter{"id": creatorIDs}, store.Select("id", "name"))
	if err != nil {
		log.Printf("catalog: failed to resolve course authors: %v", err)
		return views
	}

	names := make(map[uint]string, len(creators))
	for _, u := range creators {
		if u.Name != "" {
			names[u.ID] = u.Name
		}
	}
	for i := range views {
		if name, ok := names[views[i].CreatedBy]; ok {
			views[i].AuthorName = name
		}
	}
	return views
}

func (s *Service) recordMappingFailure(ctx context.Context, courseID uint, categoryIDs []uint, cause error) {
	payload, _ := json.Marshal(entities.CategoryMappingPayload{CategoryIDs: categoryIDs})
	s.record(ctx, &entities.Compensation{
		Kind:      entities.CompensationCategoryMapping,
		CourseID:  courseID,
		Payload:   string(payload),
		LastError: truncate(cause.Error()),
	})
}

func (s *Service) recordCascadeFailure(ctx context.Context, courseID uint, tables []string) {
	payload, _ := json.Marshal(map[string][]string{"tables": tables})
	s.record(ctx, &entities.Compensation{
		Kind:     entities.CompensationCourseCascade,
		CourseID: courseID,
		Payload:  string(payload),
	})
}

func (s *Service) record(ctx context.Context, c *entities.Compensation) {
	if s.compensations == nil {
		return
	}
	if err := s.compensations.Record(context.WithoutCancel(ctx), c); err != nil {
		log.Printf("catalog: failed to record %s compensation for course %d: %v", c.Kind, c.CourseID, err)
	}
}

func truncate(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
