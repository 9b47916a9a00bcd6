package models

import "gorm.io/gorm"

// Course represents a marketplace course owned by one instructor.
// LecturesCount and TotalHours are derived from lessons and recomputed
// on every lesson mutation, never left stale.
type Course struct {
	gorm.Model
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	InstructorID     uint    `json:"instructor_id" gorm:"index;not null"`
	Price            float64 `json:"price" gorm:"default:0"`
	ImagePublicID    string  `json:"image_public_id"`
	ImageURL         string  `json:"image_url"`
	LecturesCount    int     `json:"lectures_count" gorm:"default:0"`
	TotalHours       float64 `json:"total_hours" gorm:"default:0"`
	StudentsEnrolled int64   `json:"students_enrolled" gorm:"default:0"`
	IsPublished      bool    `json:"is_published" gorm:"default:false"`
	IsDeleted        bool    `gorm:"default:false"`
}
