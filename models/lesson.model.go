package models

import "gorm.io/gorm"

// Lesson belongs to exactly one course and references one video object
// in external storage. OrderIndex is unique within a course.
type Lesson struct {
	gorm.Model
	CourseID        uint   `json:"course_id" gorm:"index;not null;uniqueIndex:idx_course_order"`
	Title           string `json:"title"`
	OrderIndex      int    `json:"order_index" gorm:"not null;uniqueIndex:idx_course_order"`
	DurationSeconds int    `json:"duration_seconds" gorm:"default:0"`
	VideoPublicID   string `json:"video_public_id"`
	VideoURL        string `json:"video_url"`
	VideoBytes      int64  `json:"video_bytes" gorm:"default:0"`
	VideoFormat     string `json:"video_format"`
}
