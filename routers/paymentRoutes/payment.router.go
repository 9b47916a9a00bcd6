package paymentRoutes

import (
	controllers "edumart/controllers/payment"
	"edumart/middleware"
	validators "edumart/validators/payment"

	"github.com/gofiber/fiber/v2"
)

// SetupPaymentRoutes sets up checkout, webhook and verification routes
func SetupPaymentRoutes(app *fiber.App) {
	paymentGroup := app.Group("/payment")

	paymentGroup.Post("/checkout-session", middleware.JWTMiddleware, validators.CheckoutSession(), controllers.CreateCheckoutSession)
	paymentGroup.Post("/subscription-session", middleware.JWTMiddleware, validators.SubscriptionSession(), controllers.CreateSubscriptionSession)

	// Signed but unauthenticated: the gateway pushes here
	paymentGroup.Post("/webhook", controllers.HandleWebhook)

	paymentGroup.Post("/verify-enrollment", middleware.JWTMiddleware, validators.VerifySession(), controllers.VerifyEnrollment)
	paymentGroup.Post("/verify-subscription", middleware.JWTMiddleware, validators.VerifySession(), controllers.VerifySubscription)
}
