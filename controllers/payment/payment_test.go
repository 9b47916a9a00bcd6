package paymentController_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edumart/config"
	"edumart/database"
	"edumart/middleware"
	"edumart/models"
	"edumart/payments"
	"edumart/routers/paymentRoutes"
	"edumart/services/checkout"
	"edumart/services/fulfillment"

	paymentController "edumart/controllers/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_controller_test"

// stubProcessor serves pre-registered sessions by id.
type stubProcessor struct {
	sessions map[string]*payments.CheckoutSession
}

func (p *stubProcessor) CreateSession(items []payments.LineItem, metadata map[string]string, mode, successURL, cancelURL string) (*payments.CheckoutSession, error) {
	session := &payments.CheckoutSession{ID: "cs_stub", URL: "https://pay.test/cs_stub", Mode: mode, Metadata: metadata}
	p.sessions[session.ID] = session
	return session, nil
}

func (p *stubProcessor) RetrieveSession(id string, expand ...string) (*payments.CheckoutSession, error) {
	session, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session: %s", id)
	}
	return session, nil
}

func (p *stubProcessor) RetrieveSubscription(id string) (*payments.Subscription, error) {
	return nil, fmt.Errorf("no such subscription: %s", id)
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB, *stubProcessor) {
	t.Helper()

	config.AppConfig = &config.Config{
		JWTKey:        "test-jwt-key",
		WebhookSecret: webhookSecret,
		Pricing:       config.PlanPricing{MonthlyPriceID: "price_m", YearlyPriceID: "price_y"},
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Course{}, &models.Enrollment{}, &models.WebhookEvent{},
	))
	database.Database = database.DbInstance{Db: db}

	proc := &stubProcessor{sessions: make(map[string]*payments.CheckoutSession)}
	paymentController.Setup(
		checkout.NewService(db, proc, "http://localhost:5173", config.AppConfig.Pricing),
		fulfillment.NewEngine(db),
		proc,
	)

	app := fiber.New()
	paymentRoutes.SetupPaymentRoutes(app)
	return app, db, proc
}

func seedPurchase(t *testing.T, db *gorm.DB) (*models.User, *models.Course) {
	t.Helper()
	user := &models.User{Name: "Riya", Email: "riya@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)
	course := &models.Course{
		Title:        "Distributed Systems",
		Description:  "Long enough description for a published course.",
		InstructorID: 77,
		Price:        30,
		IsPublished:  true,
	}
	require.NoError(t, db.Create(course).Error)
	return user, course
}

func paidSession(id string, user *models.User, course *models.Course) *payments.CheckoutSession {
	return &payments.CheckoutSession{
		ID:            id,
		Status:        "complete",
		PaymentStatus: "paid",
		Mode:          "payment",
		Metadata: map[string]string{
			"userId":   fmt.Sprintf("%d", user.ID),
			"courseId": fmt.Sprintf("%d", course.ID),
		},
	}
}

func webhookBody(t *testing.T, eventID, eventType string, session *payments.CheckoutSession) []byte {
	t.Helper()
	object, err := json.Marshal(session)
	require.NoError(t, err)
	body, err := json.Marshal(fiber.Map{
		"id":   eventID,
		"type": eventType,
		"data": fiber.Map{"object": json.RawMessage(object)},
	})
	require.NoError(t, err)
	return body
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, sigHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sigHeader != "" {
		req.Header.Set("X-Webhook-Signature", sigHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, app *fiber.App, path, token string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func enrollmentCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Enrollment{}).Count(&n).Error)
	return n
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	app, db, _ := setupApp(t)
	user, course := seedPurchase(t, db)

	body := webhookBody(t, "evt_1", "checkout.session.completed", paidSession("cs_1", user, course))

	resp := postWebhook(t, app, body, "t=12345,v1=deadbeef")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, enrollmentCount(t, db))

	// Missing header is rejected the same way
	resp = postWebhook(t, app, body, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWebhookPaidSessionCreatesEnrollment(t *testing.T) {
	app, db, _ := setupApp(t)
	user, course := seedPurchase(t, db)

	body := webhookBody(t, "evt_paid", "checkout.session.completed", paidSession("cs_paid", user, course))
	sig := payments.SignPayload(body, webhookSecret, time.Now())

	resp := postWebhook(t, app, body, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&enrollment).Error)
	assert.Equal(t, "ENROLLED", enrollment.Status)

	var updated models.Course
	require.NoError(t, db.First(&updated, course.ID).Error)
	assert.Equal(t, int64(1), updated.StudentsEnrolled)

	var event models.WebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_paid").First(&event).Error)
	assert.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ProcessingError)
}

func TestWebhookReplayAcknowledgedWithoutReprocessing(t *testing.T) {
	app, db, _ := setupApp(t)
	user, course := seedPurchase(t, db)

	body := webhookBody(t, "evt_replay", "checkout.session.completed", paidSession("cs_r", user, course))
	sig := payments.SignPayload(body, webhookSecret, time.Now())

	resp := postWebhook(t, app, body, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postWebhook(t, app, body, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, int64(1), enrollmentCount(t, db))

	var updated models.Course
	require.NoError(t, db.First(&updated, course.ID).Error)
	assert.Equal(t, int64(1), updated.StudentsEnrolled)
}

func TestWebhookUnpaidSessionStillAcked(t *testing.T) {
	app, db, _ := setupApp(t)
	user, course := seedPurchase(t, db)

	session := paidSession("cs_unpaid", user, course)
	session.PaymentStatus = "unpaid"
	body := webhookBody(t, "evt_unpaid", "checkout.session.completed", session)
	sig := payments.SignPayload(body, webhookSecret, time.Now())

	// Processing fails but the gateway still gets a 200; the failure is
	// recorded on the event row for inspection.
	resp := postWebhook(t, app, body, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Zero(t, enrollmentCount(t, db))

	var event models.WebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_unpaid").First(&event).Error)
	assert.NotEmpty(t, event.ProcessingError)
	assert.Nil(t, event.ProcessedAt)
}

func TestWebhookIgnoresUnknownEventTypes(t *testing.T) {
	app, db, _ := setupApp(t)
	user, course := seedPurchase(t, db)

	body := webhookBody(t, "evt_other", "invoice.paid", paidSession("cs_o", user, course))
	sig := payments.SignPayload(body, webhookSecret, time.Now())

	resp := postWebhook(t, app, body, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Zero(t, enrollmentCount(t, db))
}

func TestVerifyEnrollmentPullPath(t *testing.T) {
	app, db, proc := setupApp(t)
	user, course := seedPurchase(t, db)
	proc.sessions["cs_pull"] = paidSession("cs_pull", user, course)

	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, user.Email)
	require.NoError(t, err)

	resp := postJSON(t, app, "/payment/verify-enrollment", token, fiber.Map{"sessionId": "cs_pull"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), enrollmentCount(t, db))

	// Verify again: both triggers may fire for one payment, the second
	// resolves to the same enrollment.
	resp = postJSON(t, app, "/payment/verify-enrollment", token, fiber.Map{"sessionId": "cs_pull"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), enrollmentCount(t, db))
}

func TestVerifyEnrollmentUnpaidSession(t *testing.T) {
	app, db, proc := setupApp(t)
	user, course := seedPurchase(t, db)

	session := paidSession("cs_open", user, course)
	session.PaymentStatus = "unpaid"
	proc.sessions["cs_open"] = session

	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, user.Email)
	require.NoError(t, err)

	resp := postJSON(t, app, "/payment/verify-enrollment", token, fiber.Map{"sessionId": "cs_open"})
	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
	assert.Zero(t, enrollmentCount(t, db))
}

func TestVerifyEnrollmentGatewayFailure(t *testing.T) {
	app, db, _ := setupApp(t)
	user, _ := seedPurchase(t, db)

	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, user.Email)
	require.NoError(t, err)

	resp := postJSON(t, app, "/payment/verify-enrollment", token, fiber.Map{"sessionId": "cs_missing"})
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Zero(t, enrollmentCount(t, db))
}

func TestVerifyEnrollmentRequiresAuth(t *testing.T) {
	app, _, _ := setupApp(t)

	body, err := json.Marshal(fiber.Map{"sessionId": "cs_x"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/payment/verify-enrollment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCheckoutSessionEndpoint(t *testing.T) {
	app, db, _ := setupApp(t)
	user, course := seedPurchase(t, db)

	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, user.Email)
	require.NoError(t, err)

	resp := postJSON(t, app, "/payment/checkout-session", token, fiber.Map{"courseId": course.ID})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var parsed struct {
		Status bool `json:"status"`
		Data   struct {
			SessionID string `json:"sessionId"`
			URL       string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.True(t, parsed.Status)
	assert.NotEmpty(t, parsed.Data.SessionID)
	assert.NotEmpty(t, parsed.Data.URL)
}
