package controllers

import (
	"errors"

	"edumart/apperrors"
	"edumart/database"
	"edumart/middleware"
	"edumart/models"
	coursesvc "edumart/services/course"
	"edumart/services/media"

	"github.com/gofiber/fiber/v2"
)

var (
	mediaCoordinator *media.Coordinator
	courseWriter     *coursesvc.Writer
)

// Setup wires the course controllers to their services. Called once at startup.
func Setup(co *media.Coordinator, w *coursesvc.Writer) {
	mediaCoordinator = co
	courseWriter = w
}

// CreateCourse handles the multipart course upload: one cover image,
// zero-or-more lesson videos and matching lesson metadata.
func CreateCourse(c *fiber.Ctx) error {
	user, err := requireInstructor(c)
	if err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedCourse").(*struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}
	lessonMeta, _ := c.Locals("lessonMeta").([]media.LessonMeta)

	image, err := c.FormFile("image")
	if err != nil {
		return middleware.ValidationErrorResponse(c, map[string]string{"image": "Cover image is required!"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid multipart form!", nil)
	}
	videos := form.File["videos"]

	course := &models.Course{
		Title:        reqData.Title,
		Description:  reqData.Description,
		Price:        reqData.Price,
		InstructorID: user.ID,
	}

	created, err := mediaCoordinator.CreateCourseWithMedia(course, image, videos, lessonMeta)
	if err != nil {
		return respondCourseError(c, err, "Failed to create course!")
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Course created successfully!", created)
}

// PublishCourse transitions a course to published if it passes the gate.
func PublishCourse(c *fiber.Ctx) error {
	user, err := requireInstructor(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(uint)
	if err := requireOwnership(c, user, courseID); err != nil {
		return err
	}

	course, violations, err := courseWriter.Publish(courseID)
	if err != nil {
		return respondCourseError(c, err, "Failed to publish course!")
	}
	if len(violations) > 0 {
		return middleware.JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Course cannot be published!", fiber.Map{
			"violations": violations,
		})
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course published successfully!", course)
}

// AddLesson uploads a lesson video and appends the lesson to the course.
func AddLesson(c *fiber.Ctx) error {
	user, err := requireInstructor(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(uint)
	if err := requireOwnership(c, user, courseID); err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedLesson").(*struct {
		Title           string `json:"title"`
		Order           int    `json:"order"`
		DurationSeconds int    `json:"duration"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	video, err := c.FormFile("video")
	if err != nil {
		return middleware.ValidationErrorResponse(c, map[string]string{"video": "Video file is required!"})
	}

	result, err := mediaCoordinator.UploadLessonVideo(video)
	if err != nil {
		return respondCourseError(c, err, "Failed to upload lesson video!")
	}

	lesson := &models.Lesson{
		Title:           reqData.Title,
		OrderIndex:      reqData.Order,
		DurationSeconds: reqData.DurationSeconds,
		VideoPublicID:   result.PublicID,
		VideoURL:        result.URL,
		VideoBytes:      result.Bytes,
		VideoFormat:     result.Format,
	}
	if err := courseWriter.AddLesson(courseID, lesson); err != nil {
		// The lesson row never landed, so the uploaded object is released
		mediaCoordinator.DeleteObject(result.PublicID, "video")
		return respondCourseError(c, err, "Failed to add lesson!")
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Lesson added successfully!", lesson)
}

// UpdateLesson applies a metadata update to a lesson.
func UpdateLesson(c *fiber.Ctx) error {
	user, err := requireInstructor(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(uint)
	lessonID := c.Locals("lessonID").(uint)
	if err := requireOwnership(c, user, courseID); err != nil {
		return err
	}

	upd, ok := c.Locals("validatedLessonUpdate").(*coursesvc.LessonUpdate)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	lesson, err := courseWriter.UpdateLesson(courseID, lessonID, *upd)
	if err != nil {
		return respondCourseError(c, err, "Failed to update lesson!")
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson updated successfully!", lesson)
}

// DeleteLesson removes a lesson and releases its storage object.
func DeleteLesson(c *fiber.Ctx) error {
	user, err := requireInstructor(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(uint)
	lessonID := c.Locals("lessonID").(uint)
	if err := requireOwnership(c, user, courseID); err != nil {
		return err
	}

	lesson, err := courseWriter.DeleteLesson(courseID, lessonID)
	if err != nil {
		return respondCourseError(c, err, "Failed to delete lesson!")
	}

	mediaCoordinator.DeleteObject(lesson.VideoPublicID, "video")

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson deleted successfully!", nil)
}

// requireInstructor loads the authenticated user and checks the role.
func requireInstructor(c *fiber.Ctx) (*models.User, error) {
	userId, ok := c.Locals("userId").(uint)
	if !ok {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userId).First(&user).Error; err != nil {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}
	if user.Role != "INSTRUCTOR" && user.Role != "ADMIN" {
		return nil, middleware.JsonResponse(c, fiber.StatusForbidden, false, "Instructor access required!", nil)
	}
	return &user, nil
}

// requireOwnership checks the course belongs to the instructor.
func requireOwnership(c *fiber.Ctx, user *models.User, courseID uint) error {
	var course models.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", courseID).First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
	}
	if course.InstructorID != user.ID && user.Role != "ADMIN" {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "You do not own this course!", nil)
	}
	return nil
}

// respondCourseError maps service error kinds to HTTP responses.
func respondCourseError(c *fiber.Ctx, err error, fallback string) error {
	var vErr *apperrors.ValidationError
	switch {
	case errors.As(err, &vErr):
		return middleware.ValidationErrorResponse(c, vErr.Fields)
	case errors.Is(err, apperrors.ErrFileTooLarge):
		return middleware.JsonResponse(c, fiber.StatusRequestEntityTooLarge, false, "Uploaded file is too large!", nil)
	case errors.Is(err, apperrors.ErrUpload):
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Media storage is unavailable, try again!", nil)
	case errors.Is(err, apperrors.ErrDuplicate):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Duplicate entry!", nil)
	case errors.Is(err, apperrors.ErrNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Record not found!", nil)
	default:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, fallback, nil)
	}
}
