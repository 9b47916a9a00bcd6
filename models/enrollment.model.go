package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment tracks a student's access to a course with progress.
// The composite unique index on (user_id, course_id) is the final
// arbiter for concurrent fulfillment of the same checkout session.
type Enrollment struct {
	gorm.Model
	UserID           uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_user_course"`
	CourseID         uint       `json:"course_id" gorm:"not null;uniqueIndex:idx_user_course"`
	Status           string     `json:"status" gorm:"default:'ENROLLED'"` // ENROLLED, IN_PROGRESS, COMPLETED
	Progress         float64    `json:"progress" gorm:"default:0"`        // Completion percentage (0-100)
	CompletedLessons int        `json:"completed_lessons" gorm:"default:0"`
	Rating           *uint      `json:"rating"`
	CompletedAt      *time.Time `json:"completed_at"`
	IsDeleted        bool       `gorm:"default:false"`
}
