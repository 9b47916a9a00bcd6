package controllers

import (
	"log"

	"edumart/apperrors"
	"edumart/database"
	"edumart/middleware"
	"edumart/models"
	"edumart/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// EnrollInCourse enrolls the user in a free course. Paid courses go
// through the checkout flow.
func EnrollInCourse(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	// Check if user exists
	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userID).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	courseID := c.Locals("courseID").(uint)

	// Check if course exists and is published
	var course models.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = false AND is_published = true", courseID).First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	if course.Price > 0 {
		return middleware.JsonResponse(c, fiber.StatusPaymentRequired, false, "Course is paid, use the checkout flow!", nil)
	}

	enrollment := models.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   "ENROLLED",
	}

	// The unique index on (user_id, course_id) guards against a
	// concurrent enroll for the same pair.
	if err := database.Database.Db.Create(&enrollment).Error; err != nil {
		if apperrors.IsDuplicate(err) {
			return middleware.JsonResponse(c, fiber.StatusConflict, false, "User already enrolled in this course!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to enroll in course!", nil)
	}

	if err := database.Database.Db.Model(&models.Course{}).
		Where("id = ?", courseID).
		UpdateColumn("students_enrolled", gorm.Expr("students_enrolled + 1")).Error; err != nil {
		log.Printf("[ENROLLMENT] students_enrolled increment failed for course %d: %v", courseID, err)
	}

	if err := utils.SendEnrollmentEmail(user.Email, user.Name, course.Title); err != nil {
		log.Printf("[ENROLLMENT] Failed to send enrollment email to %s: %v", user.Email, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrolled in course successfully!", enrollment)
}

// GetUserEnrollmentsList returns the user's enrollments.
func GetUserEnrollmentsList(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userID).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	var enrollments []models.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND is_deleted = false", userID).Order("created_at desc").Find(&enrollments).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch enrollments!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments fetched successfully!", fiber.Map{
		"enrollments": enrollments,
		"total":       len(enrollments),
	})
}
