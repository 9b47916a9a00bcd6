package fulfillment

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"edumart/apperrors"
	"edumart/models"
	"edumart/payments"

	"gorm.io/gorm"
)

// fallbackPeriod is applied when the gateway omits subscription period
// bounds; missing optional upstream fields never abort verification.
const fallbackPeriod = 30 * 24 * time.Hour

// Engine converts completed payments into platform access. Both webhook
// push and client-redirect pull funnel into the same idempotent
// operations; the unique index on (user_id, course_id) arbitrates races.
type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// FulfillCheckoutSession converts a paid one-time checkout session into
// an enrollment. Repeated or concurrent calls for the same session yield
// exactly one enrollment and one counter increment.
func (e *Engine) FulfillCheckoutSession(session *payments.CheckoutSession) (*models.Enrollment, error) {
	// Context comes from the processor-held metadata only, never from
	// client-supplied values.
	userID, courseID, err := sessionContext(session)
	if err != nil {
		return nil, err
	}

	if session.PaymentStatus != "paid" {
		return nil, apperrors.ErrPaymentNotCompleted
	}

	var existing models.Enrollment
	if err := e.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&existing).Error; err == nil {
		return &existing, nil
	}

	enrollment := models.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   "ENROLLED",
		Progress: 0,
	}
	if err := e.db.Create(&enrollment).Error; err != nil {
		if apperrors.IsDuplicate(err) {
			// Lost the race against a concurrent fulfillment; the winning
			// row is the result.
			if err := e.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&existing).Error; err != nil {
				return nil, fmt.Errorf("failed to load winning enrollment: %v", err)
			}
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create enrollment: %v", err)
	}

	// Access correctness dominates metric correctness: a failed counter
	// increment is logged for reconciliation, not rolled back.
	if err := e.db.Model(&models.Course{}).
		Where("id = ?", courseID).
		UpdateColumn("students_enrolled", gorm.Expr("students_enrolled + 1")).Error; err != nil {
		log.Printf("[FULFILLMENT] Enrollment %d created but students_enrolled increment failed for course %d: %v",
			enrollment.ID, courseID, err)
	}

	return &enrollment, nil
}

// FulfillSubscription converts a paid subscription checkout into an
// active subscription on the user, idempotent by subscription id.
func (e *Engine) FulfillSubscription(session *payments.CheckoutSession, sub *payments.Subscription) (*models.User, error) {
	userIDStr, ok := session.Metadata["userId"]
	if !ok || userIDStr == "" {
		return nil, fmt.Errorf("session %s has no userId metadata: %w", session.ID, apperrors.ErrValidation)
	}
	userID64, err := strconv.ParseUint(userIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s has malformed userId metadata: %w", session.ID, apperrors.ErrValidation)
	}

	if session.PaymentStatus != "paid" {
		return nil, apperrors.ErrPaymentNotCompleted
	}
	if sub == nil || sub.ID == "" {
		return nil, fmt.Errorf("session %s has no subscription attached: %w", session.ID, apperrors.ErrValidation)
	}

	var user models.User
	if err := e.db.Where("id = ? AND is_deleted = false", uint(userID64)).First(&user).Error; err != nil {
		return nil, apperrors.ErrNotFound
	}

	// Idempotency by subscription id
	if user.SubscriptionID == sub.ID && user.SubscriptionStatus == "ACTIVE" {
		return &user, nil
	}

	endsAt := periodEnd(sub)
	plan := session.Metadata["plan"]
	if plan == "" {
		plan = sub.PriceID
	}

	updates := map[string]interface{}{
		"subscription_id":      sub.ID,
		"subscription_plan":    plan,
		"subscription_status":  "ACTIVE",
		"subscription_ends_at": endsAt,
	}
	if session.CustomerID != "" {
		updates["customer_id"] = session.CustomerID
	}
	if err := e.db.Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %v", err)
	}

	user.SubscriptionID = sub.ID
	user.SubscriptionPlan = plan
	user.SubscriptionStatus = "ACTIVE"
	user.SubscriptionEndsAt = &endsAt
	return &user, nil
}

// sessionContext extracts {userId, courseId} from session metadata.
func sessionContext(session *payments.CheckoutSession) (uint, uint, error) {
	userIDStr := session.Metadata["userId"]
	courseIDStr := session.Metadata["courseId"]
	if userIDStr == "" || courseIDStr == "" {
		return 0, 0, fmt.Errorf("session %s is missing enrollment metadata: %w", session.ID, apperrors.ErrValidation)
	}

	userID, err := strconv.ParseUint(userIDStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("session %s has malformed userId metadata: %w", session.ID, apperrors.ErrValidation)
	}
	courseID, err := strconv.ParseUint(courseIDStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("session %s has malformed courseId metadata: %w", session.ID, apperrors.ErrValidation)
	}
	return uint(userID), uint(courseID), nil
}

func periodEnd(sub *payments.Subscription) time.Time {
	if sub.CurrentPeriodEnd > 0 {
		return time.Unix(sub.CurrentPeriodEnd, 0)
	}
	start := time.Now()
	if sub.CurrentPeriodStart > 0 {
		start = time.Unix(sub.CurrentPeriodStart, 0)
	}
	return start.Add(fallbackPeriod)
}
