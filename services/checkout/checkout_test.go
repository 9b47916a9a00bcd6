package checkout

import (
	"fmt"
	"testing"

	"edumart/apperrors"
	"edumart/config"
	"edumart/models"
	"edumart/payments"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeProcessor records session creations and echoes the request back.
type fakeProcessor struct {
	created []payments.CheckoutSession
}

func (f *fakeProcessor) CreateSession(items []payments.LineItem, metadata map[string]string, mode, successURL, cancelURL string) (*payments.CheckoutSession, error) {
	session := payments.CheckoutSession{
		ID:       fmt.Sprintf("cs_fake_%d", len(f.created)+1),
		URL:      "https://pay.test/" + mode,
		Status:   "open",
		Mode:     mode,
		Metadata: metadata,
	}
	if len(items) > 0 {
		session.AmountTotal = items[0].AmountCents * items[0].Quantity
	}
	f.created = append(f.created, session)
	return &session, nil
}

func (f *fakeProcessor) RetrieveSession(id string, expand ...string) (*payments.CheckoutSession, error) {
	return nil, fmt.Errorf("session %s not found", id)
}

func (f *fakeProcessor) RetrieveSubscription(id string) (*payments.Subscription, error) {
	return nil, fmt.Errorf("subscription %s not found", id)
}

var testPricing = config.PlanPricing{MonthlyPriceID: "price_m", YearlyPriceID: "price_y"}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Course{}, &models.Enrollment{}))
	return db
}

func seed(t *testing.T, db *gorm.DB, price float64, published bool) (*models.User, *models.Course) {
	t.Helper()
	user := &models.User{Name: "Sam", Email: "sam@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)
	course := &models.Course{
		Title:        "Streams and Batches",
		Description:  "A description long enough for the publish gate to accept.",
		InstructorID: 42,
		Price:        price,
		IsPublished:  published,
	}
	require.NoError(t, db.Create(course).Error)
	return user, course
}

func TestCourseCheckoutBindsMetadata(t *testing.T) {
	db := openTestDB(t)
	proc := &fakeProcessor{}
	s := NewService(db, proc, "https://app.test", testPricing)
	user, course := seed(t, db, 49.99, true)

	session, err := s.CreateCourseCheckout(user, course.ID)
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("%d", course.ID), session.Metadata["courseId"])
	assert.Equal(t, fmt.Sprintf("%d", user.ID), session.Metadata["userId"])
	assert.Equal(t, "payment", session.Mode)
	assert.Equal(t, int64(4999), session.AmountTotal)
	require.Len(t, proc.created, 1)
}

func TestCourseCheckoutAlreadyEnrolled(t *testing.T) {
	db := openTestDB(t)
	proc := &fakeProcessor{}
	s := NewService(db, proc, "https://app.test", testPricing)
	user, course := seed(t, db, 49.99, true)

	require.NoError(t, db.Create(&models.Enrollment{UserID: user.ID, CourseID: course.ID}).Error)

	_, err := s.CreateCourseCheckout(user, course.ID)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	// The precheck ran locally; no session was ever opened
	assert.Empty(t, proc.created)
}

func TestCourseCheckoutFreeCourseRejected(t *testing.T) {
	db := openTestDB(t)
	proc := &fakeProcessor{}
	s := NewService(db, proc, "https://app.test", testPricing)
	user, course := seed(t, db, 0, true)

	_, err := s.CreateCourseCheckout(user, course.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, proc.created)
}

func TestCourseCheckoutUnpublishedCourse(t *testing.T) {
	db := openTestDB(t)
	proc := &fakeProcessor{}
	s := NewService(db, proc, "https://app.test", testPricing)
	user, course := seed(t, db, 20, false)

	_, err := s.CreateCourseCheckout(user, course.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, proc.created)
}

func TestSubscriptionCheckoutResolvesPrice(t *testing.T) {
	db := openTestDB(t)
	proc := &fakeProcessor{}
	s := NewService(db, proc, "https://app.test", testPricing)
	user, _ := seed(t, db, 10, true)

	session, err := s.CreateSubscriptionCheckout(user, "monthly")
	require.NoError(t, err)

	assert.Equal(t, "subscription", session.Mode)
	assert.Equal(t, "monthly", session.Metadata["plan"])
	assert.Equal(t, fmt.Sprintf("%d", user.ID), session.Metadata["userId"])
}

func TestSubscriptionCheckoutUnknownPlan(t *testing.T) {
	db := openTestDB(t)
	proc := &fakeProcessor{}
	s := NewService(db, proc, "https://app.test", testPricing)
	user, _ := seed(t, db, 10, true)

	_, err := s.CreateSubscriptionCheckout(user, "weekly")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, proc.created)
}
