package checkout

import (
	"fmt"
	"math"
	"strconv"

	"edumart/apperrors"
	"edumart/config"
	"edumart/models"
	"edumart/payments"

	"gorm.io/gorm"
)

// Service opens payment gateway checkout sessions bound to course+user
// metadata, so fulfillment can recover full context from the session
// alone.
type Service struct {
	db              *gorm.DB
	processor       payments.Processor
	redirectBaseURL string
	pricing         config.PlanPricing
}

func NewService(db *gorm.DB, processor payments.Processor, redirectBaseURL string, pricing config.PlanPricing) *Service {
	return &Service{
		db:              db,
		processor:       processor,
		redirectBaseURL: redirectBaseURL,
		pricing:         pricing,
	}
}

// CreateCourseCheckout opens a one-time payment session for a course.
// The already-enrolled check runs locally before any external call, so
// no unfulfillable paid session is ever created.
func (s *Service) CreateCourseCheckout(user *models.User, courseID uint) (*payments.CheckoutSession, error) {
	var course models.Course
	if err := s.db.Where("id = ? AND is_deleted = false AND is_published = true", courseID).First(&course).Error; err != nil {
		return nil, apperrors.ErrNotFound
	}
	if course.Price <= 0 {
		return nil, apperrors.NewValidation(map[string]string{"courseId": "Course is free, use the enroll endpoint!"})
	}

	var existing models.Enrollment
	if err := s.db.Where("user_id = ? AND course_id = ?", user.ID, courseID).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("user %d already enrolled in course %d: %w", user.ID, courseID, apperrors.ErrDuplicate)
	}

	items := []payments.LineItem{{
		Name:        course.Title,
		AmountCents: int64(math.Round(course.Price * 100)),
		Currency:    "usd",
		Quantity:    1,
	}}
	metadata := map[string]string{
		"courseId": strconv.FormatUint(uint64(courseID), 10),
		"userId":   strconv.FormatUint(uint64(user.ID), 10),
	}

	session, err := s.processor.CreateSession(
		items,
		metadata,
		"payment",
		s.redirectBaseURL+"/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		s.redirectBaseURL+"/checkout/cancel",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %v", err)
	}
	return session, nil
}

// CreateSubscriptionCheckout opens a recurring payment session for a
// platform plan.
func (s *Service) CreateSubscriptionCheckout(user *models.User, plan string) (*payments.CheckoutSession, error) {
	priceID, err := s.priceForPlan(plan)
	if err != nil {
		return nil, err
	}

	items := []payments.LineItem{{
		PriceID:  priceID,
		Quantity: 1,
	}}
	metadata := map[string]string{
		"plan":   plan,
		"userId": strconv.FormatUint(uint64(user.ID), 10),
	}

	session, err := s.processor.CreateSession(
		items,
		metadata,
		"subscription",
		s.redirectBaseURL+"/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		s.redirectBaseURL+"/subscription/cancel",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription session: %v", err)
	}
	return session, nil
}

func (s *Service) priceForPlan(plan string) (string, error) {
	switch plan {
	case "monthly":
		return s.pricing.MonthlyPriceID, nil
	case "yearly":
		return s.pricing.YearlyPriceID, nil
	default:
		return "", apperrors.NewValidation(map[string]string{"plan": "Unknown subscription plan!"})
	}
}
