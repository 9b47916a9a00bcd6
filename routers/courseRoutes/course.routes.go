package courseRoutes

import (
	controllers "edumart/controllers/course"
	"edumart/middleware"
	validators "edumart/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up course creation, lesson management and
// enrollment routes
func SetupCourseRoutes(app *fiber.App) {
	courseGroup := app.Group("/course")

	// Course creation (multipart: image + optional videos + lesson metadata JSON)
	courseGroup.Post("/", middleware.JWTMiddleware, validators.CreateCourse(), controllers.CreateCourse)
	courseGroup.Post("/:id/publish", middleware.JWTMiddleware, validators.CourseID(), controllers.PublishCourse)

	// Lesson management
	courseGroup.Post("/:id/lesson", middleware.JWTMiddleware, validators.CourseID(), validators.AddLesson(), controllers.AddLesson)
	courseGroup.Put("/:id/lesson/:lessonId", middleware.JWTMiddleware, validators.CourseID(), validators.LessonID(), validators.UpdateLesson(), controllers.UpdateLesson)
	courseGroup.Delete("/:id/lesson/:lessonId", middleware.JWTMiddleware, validators.CourseID(), validators.LessonID(), controllers.DeleteLesson)

	// Free-course enrollment
	courseGroup.Post("/:id/enroll", middleware.JWTMiddleware, validators.CourseID(), controllers.EnrollInCourse)

	// User enrollments
	userGroup := app.Group("/user")
	userGroup.Get("/enrollments", middleware.JWTMiddleware, controllers.GetUserEnrollmentsList)
}
