package main

import (
	"bookpay/src/checkout"
	"bookpay/src/config"
	"bookpay/src/ledger"
	"bookpay/src/store"
	"bookpay/src/testutil"
	"bookpay/src/types"
	"bookpay/src/webhooks"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	jwtSecret     = "test-secret"
	webhookSecret = "whsec_test"
)

type TestSuite struct {
	suite.Suite
	DB      *gorm.DB
	Gateway *testutil.FakeGateway
	Ledger  *ledger.Ledger
	app     *app
}

func testConfig() *config.Config {
	return &config.Config{
		APIEnv:              "local",
		AppHost:             "http://localhost:3000",
		ServiceFee:          config.DEFAULT_SERVICE_FEE,
		StripeWebhookSecret: webhookSecret,
		JWTSecret:           jwtSecret,
		WebhookTimeout:      5 * time.Second,
		ProcessorTimeout:    time.Second,
	}
}

func newTestApp(cfg *config.Config, d *gorm.DB, gw checkout.Gateway) *app {
	l := ledger.New(d)
	st := store.New(d)
	svc := checkout.NewService(checkout.Deps{
		Gateway: gw,
		Ledger:  l,
		Store:   st,
		Config:  cfg,
	})
	proc := webhooks.NewProcessor(webhooks.Deps{
		Ledger: l,
		Store:  st,
		Config: cfg,
		Holds:  svc,
	})
	return &app{cfg: cfg, checkout: svc, webhooks: proc}
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	registerValidators()
}

func (s *TestSuite) SetupTest() {
	os.Unsetenv("MAINTENANCE_MODE")
	s.DB = testutil.NewDB(s.T())
	s.Gateway = testutil.NewFakeGateway()
	s.Ledger = ledger.New(s.DB)
	s.app = newTestApp(testConfig(), s.DB, s.Gateway)
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	return gormDB, mock
}

func generateJWT(subject uuid.UUID, secret string) string {
	claims := &types.Claims{
		Email: "client@example.com",
		Role:  "client",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	return token
}

func (s *TestSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	router := s.app.routes(setupRouter())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func (s *TestSuite) authorized(method, target, body string, caller uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+generateJWT(caller, jwtSecret))
	return req
}

func (s *TestSuite) signed(payload string) *http.Request {
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  webhookSecret,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/stripe", strings.NewReader(string(sp.Payload)))
	req.Header.Set("Stripe-Signature", sp.Header)
	return req
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestWebhookHealth() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/webhook/stripe", nil))

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "ok", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(s.T(), "stripe-webhook", gjson.Get(w.Body.String(), "service").String())
}

func (s *TestSuite) TestWebhookRejectsUnverifiedRequests() {
	s.Run("Should return 400 for an empty body", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/stripe", nil)
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		w := s.serve(req)

		assert.Equal(s.T(), 400, w.Code)
		assert.Equal(s.T(), "missing body", gjson.Get(w.Body.String(), "error").String())
	})

	s.Run("Should return 400 for a bad signature", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/stripe",
			strings.NewReader(`{"id":"evt_1","object":"event","type":"price.updated","data":{"object":{}}}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=bad")
		w := s.serve(req)

		assert.Equal(s.T(), 400, w.Code)
		assert.Equal(s.T(), "invalid signature", gjson.Get(w.Body.String(), "error").String())
	})
}

func (s *TestSuite) TestWebhookCapturesPayment() {
	ctx := context.Background()
	f := testutil.SeedBooking(s.T(), s.DB, time.Now().Add(48*time.Hour), "50.00")
	e, err := s.Ledger.Create(ctx, ledger.Plan{
		BookingID:         f.Booking.ID,
		AmountCents:       5000,
		ServiceFeeCents:   100,
		PaymentType:       types.PAYMENT_TYPE_FULL,
		CaptureMethod:     types.CAPTURE_MANUAL,
		CheckoutSessionID: "cs_main_1",
	})
	require.NoError(s.T(), err)

	payload := fmt.Sprintf(`{"id":"evt_main_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_main_1","object":"payment_intent","status":"succeeded","metadata":{"booking_id":"%s","booking_payment_id":"%s"}}}}`,
		f.Booking.ID, e.ID)
	w := s.serve(s.signed(payload))

	require.Equal(s.T(), 200, w.Code)
	assert.True(s.T(), gjson.Get(w.Body.String(), "received").Bool())

	got, err := s.Ledger.Get(ctx, e.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), types.PAYMENT_COMPLETED, got.Status)
	assert.Equal(s.T(), "pi_main_1", got.PaymentIntentID)
	assert.NotNil(s.T(), got.CapturedAt)
}

func (s *TestSuite) TestWebhookHandlerFailure() {
	payload := `{"id":"evt_main_2","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_main_2","object":"payment_intent","amount":"lots"}}}`
	w := s.serve(s.signed(payload))

	assert.Equal(s.T(), 500, w.Code)
	assert.Equal(s.T(), "webhook handler failed", gjson.Get(w.Body.String(), "error").String())
}

func (s *TestSuite) TestBookingRoutesRequireToken() {
	bookingID := uuid.New()

	s.Run("Should return 401 without a token", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+bookingID.String()+"/payment", nil)
		w := s.serve(req)
		assert.Equal(s.T(), 401, w.Code)
	})

	s.Run("Should return 401 for a token signed with another key", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+bookingID.String()+"/payment", nil)
		req.Header.Set("Authorization", "Bearer "+generateJWT(uuid.New(), "other-key"))
		w := s.serve(req)
		assert.Equal(s.T(), 401, w.Code)
	})
}

func (s *TestSuite) TestBookingPayment() {
	ctx := context.Background()
	f := testutil.SeedBooking(s.T(), s.DB, time.Now().Add(48*time.Hour), "80.20")
	_, err := s.Ledger.Create(ctx, ledger.Plan{
		BookingID:         f.Booking.ID,
		AmountCents:       8020,
		ServiceFeeCents:   100,
		PaymentType:       types.PAYMENT_TYPE_FULL,
		CaptureMethod:     types.CAPTURE_MANUAL,
		CheckoutSessionID: "cs_main_2",
	})
	require.NoError(s.T(), err)
	target := "/api/v1/bookings/" + f.Booking.ID.String() + "/payment"

	s.Run("Should return the payment to the client", func() {
		w := s.serve(s.authorized(http.MethodGet, target, "", f.Customer.ID))

		require.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.True(s.T(), gjson.Get(body, "success").Bool())
		assert.Equal(s.T(), "80.20", gjson.Get(body, "data.amount").String())
		assert.Equal(s.T(), "1.00", gjson.Get(body, "data.service_fee").String())
		assert.Equal(s.T(), string(types.PAYMENT_PENDING), gjson.Get(body, "data.status").String())
	})

	s.Run("Should return the payment to the professional", func() {
		w := s.serve(s.authorized(http.MethodGet, target, "", f.Professional.ID))
		assert.Equal(s.T(), 200, w.Code)
	})

	s.Run("Should return 403 to anyone else", func() {
		w := s.serve(s.authorized(http.MethodGet, target, "", uuid.New()))
		assert.Equal(s.T(), 403, w.Code)
	})

	s.Run("Should return 404 for an unknown booking", func() {
		w := s.serve(s.authorized(http.MethodGet, "/api/v1/bookings/"+uuid.NewString()+"/payment", "", f.Customer.ID))
		assert.Equal(s.T(), 404, w.Code)
	})

	s.Run("Should return 400 for a malformed id", func() {
		w := s.serve(s.authorized(http.MethodGet, "/api/v1/bookings/not-a-uuid/payment", "", f.Customer.ID))
		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestCheckout() {
	f := testutil.SeedBooking(s.T(), s.DB, time.Now().Add(72*time.Hour), "50.00")
	target := "/api/v1/bookings/" + f.Booking.ID.String() + "/checkout"

	s.Run("Should return 400 for an unknown payment method", func() {
		w := s.serve(s.authorized(http.MethodPost, target, `{"payment_method":"barter"}`, f.Customer.ID))

		assert.Equal(s.T(), 400, w.Code)
		assert.False(s.T(), gjson.Get(w.Body.String(), "success").Bool())
		assert.NotEmpty(s.T(), gjson.Get(w.Body.String(), "error").String())
		assert.Zero(s.T(), s.Gateway.Count("CreateCheckoutSession"))
	})

	s.Run("Should return a checkout url", func() {
		w := s.serve(s.authorized(http.MethodPost, target, `{"payment_method":"online"}`, f.Customer.ID))

		require.Equal(s.T(), 200, w.Code, w.Body.String())
		body := w.Body.String()
		assert.True(s.T(), gjson.Get(body, "success").Bool())
		assert.NotEmpty(s.T(), gjson.Get(body, "url").String())
		assert.NotEmpty(s.T(), gjson.Get(body, "session_id").String())
		assert.Equal(s.T(), 1, s.Gateway.Count("CreateCheckoutSession"))
	})

	s.Run("Should reject another client", func() {
		w := s.serve(s.authorized(http.MethodPost, target, `{"payment_method":"online"}`, uuid.New()))

		assert.Equal(s.T(), 400, w.Code)
		assert.False(s.T(), gjson.Get(w.Body.String(), "success").Bool())
	})
}

func (s *TestSuite) TestCheckoutSessionURL() {
	caller := uuid.New()

	s.Run("Should return the url of an open session", func() {
		w := s.serve(s.authorized(http.MethodGet, "/api/v1/checkout/sessions/cs_test_9", "", caller))

		require.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), "https://checkout.stripe.test/cs_test_9", gjson.Get(w.Body.String(), "url").String())
		assert.Equal(s.T(), "cs_test_9", gjson.Get(w.Body.String(), "session_id").String())
	})

	s.Run("Should return 410 once the session is closed", func() {
		s.Gateway.SessionStatus = "complete"
		w := s.serve(s.authorized(http.MethodGet, "/api/v1/checkout/sessions/cs_test_9", "", caller))
		assert.Equal(s.T(), 410, w.Code)
	})
}

func (s *TestSuite) TestPaymentLookupDatabaseError() {
	d, mock := NewMockDB()
	s.app = newTestApp(testConfig(), d, s.Gateway)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnError(errors.New("connection reset by peer"))

	w := s.serve(s.authorized(http.MethodGet, "/api/v1/bookings/"+uuid.NewString()+"/payment", "", uuid.New()))

	assert.Equal(s.T(), 500, w.Code)
	assert.NoError(s.T(), mock.ExpectationsWereMet())
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
