package course

import (
	"fmt"
	"strings"

	"edumart/apperrors"
	"edumart/models"

	"gorm.io/gorm"
)

// minDescriptionLength gates publication; shorter descriptions are
// rejected with a violation entry.
const minDescriptionLength = 20

// Writer owns Course+Lesson consistency: every lesson mutation goes
// through it so the derived lecture count and total hours are recomputed
// in the same transaction, never left stale.
type Writer struct {
	db *gorm.DB
}

func NewWriter(db *gorm.DB) *Writer {
	return &Writer{db: db}
}

// LessonUpdate carries a partial lesson mutation.
type LessonUpdate struct {
	Title           *string `json:"title"`
	OrderIndex      *int    `json:"order_index"`
	DurationSeconds *int    `json:"duration_seconds"`
}

// Create inserts the course and its lessons and computes the initial
// totals. Zero lessons is legal.
func (w *Writer) Create(course *models.Course, lessons []models.Lesson) error {
	return w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(course).Error; err != nil {
			return err
		}
		for i := range lessons {
			lessons[i].CourseID = course.ID
			if err := tx.Create(&lessons[i]).Error; err != nil {
				if apperrors.IsDuplicate(err) {
					return fmt.Errorf("lesson order %d: %w", lessons[i].OrderIndex, apperrors.ErrDuplicate)
				}
				return err
			}
		}
		return RecomputeTotals(tx, course)
	})
}

// AddLesson appends a lesson to the course and refreshes the totals.
func (w *Writer) AddLesson(courseID uint, lesson *models.Lesson) error {
	return w.db.Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.Where("id = ? AND is_deleted = false", courseID).First(&course).Error; err != nil {
			return apperrors.ErrNotFound
		}

		lesson.CourseID = courseID
		if err := tx.Create(lesson).Error; err != nil {
			if apperrors.IsDuplicate(err) {
				return fmt.Errorf("lesson order %d: %w", lesson.OrderIndex, apperrors.ErrDuplicate)
			}
			return err
		}
		return RecomputeTotals(tx, &course)
	})
}

// UpdateLesson applies a partial update and refreshes the totals.
func (w *Writer) UpdateLesson(courseID, lessonID uint, upd LessonUpdate) (*models.Lesson, error) {
	var lesson models.Lesson
	err := w.db.Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.Where("id = ? AND is_deleted = false", courseID).First(&course).Error; err != nil {
			return apperrors.ErrNotFound
		}
		if err := tx.Where("id = ? AND course_id = ?", lessonID, courseID).First(&lesson).Error; err != nil {
			return apperrors.ErrNotFound
		}

		if upd.Title != nil {
			lesson.Title = *upd.Title
		}
		if upd.OrderIndex != nil {
			lesson.OrderIndex = *upd.OrderIndex
		}
		if upd.DurationSeconds != nil {
			lesson.DurationSeconds = *upd.DurationSeconds
		}

		if err := tx.Save(&lesson).Error; err != nil {
			if apperrors.IsDuplicate(err) {
				return fmt.Errorf("lesson order %d: %w", lesson.OrderIndex, apperrors.ErrDuplicate)
			}
			return err
		}
		return RecomputeTotals(tx, &course)
	})
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// DeleteLesson removes a lesson and refreshes the totals. The removed
// lesson is returned so the caller can release its storage object.
func (w *Writer) DeleteLesson(courseID, lessonID uint) (*models.Lesson, error) {
	var lesson models.Lesson
	err := w.db.Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.Where("id = ? AND is_deleted = false", courseID).First(&course).Error; err != nil {
			return apperrors.ErrNotFound
		}
		if err := tx.Where("id = ? AND course_id = ?", lessonID, courseID).First(&lesson).Error; err != nil {
			return apperrors.ErrNotFound
		}

		// Hard delete so the order slot can be reused
		if err := tx.Unscoped().Delete(&models.Lesson{}, lesson.ID).Error; err != nil {
			return err
		}
		return RecomputeTotals(tx, &course)
	})
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Publish transitions the course to published. Gate violations are
// returned as a list, not a single generic error.
func (w *Writer) Publish(courseID uint) (*models.Course, []string, error) {
	var course models.Course
	if err := w.db.Where("id = ? AND is_deleted = false", courseID).First(&course).Error; err != nil {
		return nil, nil, apperrors.ErrNotFound
	}

	var violations []string
	if course.LecturesCount < 1 {
		violations = append(violations, "course must have at least one lesson")
	}
	if course.ImagePublicID == "" && course.ImageURL == "" {
		violations = append(violations, "course must have a cover image")
	}
	if len(strings.TrimSpace(course.Description)) < minDescriptionLength {
		violations = append(violations, fmt.Sprintf("description must be at least %d characters", minDescriptionLength))
	}
	if len(violations) > 0 {
		return nil, violations, nil
	}

	if err := w.db.Model(&course).Update("is_published", true).Error; err != nil {
		return nil, nil, err
	}
	course.IsPublished = true
	return &course, nil, nil
}

// RecomputeTotals refreshes the derived lecture count and total hours
// from the course's lessons inside the caller's transaction.
func RecomputeTotals(tx *gorm.DB, course *models.Course) error {
	var count int64
	if err := tx.Model(&models.Lesson{}).Where("course_id = ?", course.ID).Count(&count).Error; err != nil {
		return err
	}

	var totalSeconds int64
	row := tx.Model(&models.Lesson{}).
		Where("course_id = ?", course.ID).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Row()
	if err := row.Scan(&totalSeconds); err != nil {
		return err
	}

	course.LecturesCount = int(count)
	course.TotalHours = float64(totalSeconds) / 3600.0

	return tx.Model(&models.Course{}).Where("id = ?", course.ID).Updates(map[string]interface{}{
		"lectures_count": course.LecturesCount,
		"total_hours":    course.TotalHours,
	}).Error
}
