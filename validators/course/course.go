package courseValidator

import (
	"encoding/json"
	"strconv"
	"strings"

	"edumart/middleware"
	coursesvc "edumart/services/course"
	"edumart/services/media"

	"github.com/gofiber/fiber/v2"
)

// CreateCourse validates the multipart fields of a course upload. File
// parts are handled by the controller; this covers the text parts and
// the lesson metadata JSON.
func CreateCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Title       string  `json:"title"`
			Description string  `json:"description"`
			Price       float64 `json:"price"`
		})

		errors := make(map[string]string)

		reqData.Title = strings.TrimSpace(c.FormValue("title"))
		reqData.Description = strings.TrimSpace(c.FormValue("description"))

		// Validate Title
		if reqData.Title == "" {
			errors["title"] = "Title is required!"
		} else if len(reqData.Title) < 3 {
			errors["title"] = "Title must be at least 3 characters long!"
		}

		// Validate Description
		if reqData.Description == "" {
			errors["description"] = "Description is required!"
		} else if len(reqData.Description) < 5 {
			errors["description"] = "Description must be at least 5 characters long!"
		}

		// Validate Price
		if priceStr := c.FormValue("price"); priceStr != "" {
			price, err := strconv.ParseFloat(priceStr, 64)
			if err != nil || price < 0 {
				errors["price"] = "Price must be a non-negative number!"
			} else {
				reqData.Price = price
			}
		}

		// Validate lesson metadata JSON
		var lessonMeta []media.LessonMeta
		if lessonsJSON := c.FormValue("lessons"); lessonsJSON != "" {
			if err := json.Unmarshal([]byte(lessonsJSON), &lessonMeta); err != nil {
				errors["lessons"] = "Lessons must be a valid JSON array!"
			} else {
				seen := make(map[int]bool)
				for _, meta := range lessonMeta {
					if strings.TrimSpace(meta.Title) == "" {
						errors["lessons"] = "Every lesson needs a title!"
						break
					}
					if meta.DurationSeconds < 0 {
						errors["lessons"] = "Lesson duration cannot be negative!"
						break
					}
					if seen[meta.Order] {
						errors["lessons"] = "Lesson order values must be unique!"
						break
					}
					seen[meta.Order] = true
				}
			}
		}

		// Respond with validation errors if any exist
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedCourse", reqData)
		c.Locals("lessonMeta", lessonMeta)
		return c.Next()
	}
}

// CourseID validates the :id route param.
func CourseID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || id == 0 {
			return middleware.ValidationErrorResponse(c, map[string]string{"id": "Course ID must be a positive number!"})
		}
		c.Locals("courseID", uint(id))
		return c.Next()
	}
}

// LessonID validates the :lessonId route param.
func LessonID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("lessonId"), 10, 64)
		if err != nil || id == 0 {
			return middleware.ValidationErrorResponse(c, map[string]string{"lessonId": "Lesson ID must be a positive number!"})
		}
		c.Locals("lessonID", uint(id))
		return c.Next()
	}
}

// AddLesson validates the multipart fields of a lesson upload.
func AddLesson() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Title           string `json:"title"`
			Order           int    `json:"order"`
			DurationSeconds int    `json:"duration"`
		})

		errors := make(map[string]string)

		reqData.Title = strings.TrimSpace(c.FormValue("title"))
		if reqData.Title == "" {
			errors["title"] = "Title is required!"
		}

		order, err := strconv.Atoi(c.FormValue("order"))
		if err != nil || order < 1 {
			errors["order"] = "Order must be a positive number!"
		} else {
			reqData.Order = order
		}

		if durationStr := c.FormValue("duration"); durationStr != "" {
			duration, err := strconv.Atoi(durationStr)
			if err != nil || duration < 0 {
				errors["duration"] = "Duration must be a non-negative number of seconds!"
			} else {
				reqData.DurationSeconds = duration
			}
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedLesson", reqData)
		return c.Next()
	}
}

// UpdateLesson validates a partial lesson update.
func UpdateLesson() fiber.Handler {
	return func(c *fiber.Ctx) error {
		upd := new(coursesvc.LessonUpdate)

		if err := c.BodyParser(upd); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
			errors["title"] = "Title cannot be empty!"
		}
		if upd.OrderIndex != nil && *upd.OrderIndex < 1 {
			errors["order_index"] = "Order must be a positive number!"
		}
		if upd.DurationSeconds != nil && *upd.DurationSeconds < 0 {
			errors["duration_seconds"] = "Duration cannot be negative!"
		}
		if upd.Title == nil && upd.OrderIndex == nil && upd.DurationSeconds == nil {
			errors["body"] = "Nothing to update!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedLessonUpdate", upd)
		return c.Next()
	}
}
