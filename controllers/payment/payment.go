package paymentController

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"edumart/apperrors"
	"edumart/config"
	"edumart/database"
	"edumart/middleware"
	"edumart/models"
	"edumart/payments"
	"edumart/services/checkout"
	"edumart/services/fulfillment"

	"github.com/gofiber/fiber/v2"
)

var (
	checkoutService *checkout.Service
	engine          *fulfillment.Engine
	processor       payments.Processor
)

// Setup wires the payment controllers to their services. Called once at startup.
func Setup(cs *checkout.Service, e *fulfillment.Engine, p payments.Processor) {
	checkoutService = cs
	engine = e
	processor = p
}

// CreateCheckoutSession opens a payment session for a course purchase.
func CreateCheckoutSession(c *fiber.Ctx) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedCheckout").(*struct {
		CourseID uint `json:"courseId"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	session, err := checkoutService.CreateCourseCheckout(user, reqData.CourseID)
	if err != nil {
		return respondPaymentError(c, err, "Failed to create checkout session!")
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Checkout session created!", fiber.Map{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// CreateSubscriptionSession opens a recurring payment session for a plan.
func CreateSubscriptionSession(c *fiber.Ctx) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedSubscription").(*struct {
		Plan string `json:"plan"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	session, err := checkoutService.CreateSubscriptionCheckout(user, reqData.Plan)
	if err != nil {
		return respondPaymentError(c, err, "Failed to create subscription session!")
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription session created!", fiber.Map{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// HandleWebhook is the asynchronous push trigger from the payment
// gateway. A bad signature is rejected outright; once the signature
// verifies, the gateway always gets a 200 so a deterministic processing
// bug cannot make it retry forever — failures are logged for humans.
func HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("X-Webhook-Signature")

	event, err := payments.ConstructEvent(payload, sigHeader, config.AppConfig.WebhookSecret)
	if err != nil {
		log.Printf("[WEBHOOK] Signature verification failed: %v", err)
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid signature!", nil)
	}

	db := database.Database.Db

	// Dedupe by provider event id; a replayed event acknowledges without
	// reprocessing.
	record := models.WebhookEvent{
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Payload:         payload,
	}
	if err := db.Create(&record).Error; err != nil {
		if apperrors.IsDuplicate(err) {
			return middleware.JsonResponse(c, fiber.StatusOK, true, "Event already processed!", nil)
		}
		log.Printf("[WEBHOOK] Failed to record event %s: %v", event.ID, err)
		// Continue anyway; fulfill is idempotent on its own
	}

	if event.Type == "checkout.session.completed" {
		if err := processCompletedSession(event); err != nil {
			log.Printf("[WEBHOOK] Failed to process event %s: %v", event.ID, err)
			db.Model(&models.WebhookEvent{}).
				Where("provider_event_id = ?", event.ID).
				Update("processing_error", err.Error())
			return middleware.JsonResponse(c, fiber.StatusOK, true, "Received!", nil)
		}
	}

	now := time.Now()
	db.Model(&models.WebhookEvent{}).
		Where("provider_event_id = ?", event.ID).
		Update("processed_at", &now)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Received!", nil)
}

// VerifyEnrollment is the synchronous pull trigger: the client redirects
// back with the session id and the session is resolved at the gateway.
// Failures surface to the client so it can retry.
func VerifyEnrollment(c *fiber.Ctx) error {
	if _, err := requireUser(c); err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedVerify").(*struct {
		SessionID string `json:"sessionId"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	session, err := processor.RetrieveSession(reqData.SessionID)
	if err != nil {
		log.Printf("[PAYMENT] Failed to retrieve session %s: %v", reqData.SessionID, err)
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Failed to verify payment, try again!", nil)
	}

	enrollment, err := engine.FulfillCheckoutSession(session)
	if err != nil {
		return respondPaymentError(c, err, "Failed to verify enrollment!")
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment verified!", enrollment)
}

// VerifySubscription is the pull trigger for subscription checkouts.
func VerifySubscription(c *fiber.Ctx) error {
	if _, err := requireUser(c); err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedVerify").(*struct {
		SessionID string `json:"sessionId"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	session, err := processor.RetrieveSession(reqData.SessionID, "subscription")
	if err != nil {
		log.Printf("[PAYMENT] Failed to retrieve session %s: %v", reqData.SessionID, err)
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Failed to verify payment, try again!", nil)
	}

	sub, err := retrieveSubscription(session)
	if err != nil {
		log.Printf("[PAYMENT] Failed to retrieve subscription for session %s: %v", reqData.SessionID, err)
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Failed to verify subscription, try again!", nil)
	}

	user, err := engine.FulfillSubscription(session, sub)
	if err != nil {
		return respondPaymentError(c, err, "Failed to verify subscription!")
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription verified!", fiber.Map{
		"subscriptionId":     user.SubscriptionID,
		"subscriptionPlan":   user.SubscriptionPlan,
		"subscriptionStatus": user.SubscriptionStatus,
		"subscriptionEndsAt": user.SubscriptionEndsAt,
	})
}

// processCompletedSession routes a completed-session event to the right
// fulfillment path based on the session's own metadata.
func processCompletedSession(event *payments.Event) error {
	var session payments.CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return err
	}

	if session.Metadata["plan"] != "" {
		sub, err := retrieveSubscription(&session)
		if err != nil {
			return err
		}
		_, err = engine.FulfillSubscription(&session, sub)
		return err
	}

	_, err := engine.FulfillCheckoutSession(&session)
	return err
}

func retrieveSubscription(session *payments.CheckoutSession) (*payments.Subscription, error) {
	if session.SubscriptionID == "" {
		return nil, errors.New("session has no subscription id")
	}
	return processor.RetrieveSubscription(session.SubscriptionID)
}

func requireUser(c *fiber.Ctx) (*models.User, error) {
	userId, ok := c.Locals("userId").(uint)
	if !ok {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userId).First(&user).Error; err != nil {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}
	return &user, nil
}

// respondPaymentError maps service error kinds to HTTP responses.
func respondPaymentError(c *fiber.Ctx, err error, fallback string) error {
	var vErr *apperrors.ValidationError
	switch {
	case errors.As(err, &vErr):
		return middleware.ValidationErrorResponse(c, vErr.Fields)
	case errors.Is(err, apperrors.ErrPaymentNotCompleted):
		return middleware.JsonResponse(c, fiber.StatusPaymentRequired, false, "Payment not completed yet!", nil)
	case errors.Is(err, apperrors.ErrDuplicate):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Already enrolled in this course!", nil)
	case errors.Is(err, apperrors.ErrNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Record not found!", nil)
	case errors.Is(err, apperrors.ErrValidation):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid payment session!", nil)
	default:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, fallback, nil)
	}
}
