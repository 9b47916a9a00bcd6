package paymentValidator

import (
	"strings"

	"edumart/middleware"

	"github.com/gofiber/fiber/v2"
)

func CheckoutSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			CourseID uint `json:"courseId"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.CourseID == 0 {
			errors["courseId"] = "Course ID is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedCheckout", reqData)
		return c.Next()
	}
}

func SubscriptionSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Plan string `json:"plan"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.Plan != "monthly" && reqData.Plan != "yearly" {
			errors["plan"] = "Plan must be monthly or yearly!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedSubscription", reqData)
		return c.Next()
	}
}

func VerifySession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			SessionID string `json:"sessionId"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if strings.TrimSpace(reqData.SessionID) == "" {
			errors["sessionId"] = "Session ID is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedVerify", reqData)
		return c.Next()
	}
}
