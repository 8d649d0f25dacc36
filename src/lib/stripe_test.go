package lib

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestCheckoutSessionParamsPaymentMode(t *testing.T) {
	p := checkoutSessionParams(CheckoutSessionInput{
		Mode:          ModePayment,
		AmountCents:   2080,
		ProductName:   "Deposit",
		Destination:   "acct_1",
		TransferCents: 1980,
		SaveCard:      true,
		SubmitMessage: "Pay your deposit now",
		Metadata:      map[string]string{"booking_id": "b1"},
	}, "usd")

	assert.Equal(t, "payment", *p.Mode)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, int64(2080), *p.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "usd", *p.LineItems[0].PriceData.Currency)
	require.NotNil(t, p.PaymentIntentData)
	assert.Nil(t, p.PaymentIntentData.CaptureMethod)
	assert.Equal(t, "off_session", *p.PaymentIntentData.SetupFutureUsage)
	assert.Equal(t, "acct_1", *p.PaymentIntentData.OnBehalfOf)
	assert.Equal(t, int64(1980), *p.PaymentIntentData.TransferData.Amount)
	assert.Equal(t, "acct_1", *p.PaymentIntentData.TransferData.Destination)
	assert.Equal(t, "b1", p.PaymentIntentData.Metadata["booking_id"])
	assert.Equal(t, "b1", p.Metadata["booking_id"])
	assert.Equal(t, "always", *p.CustomerCreation)
	assert.Equal(t, "Pay your deposit now", *p.CustomText.Submit.Message)
	assert.Nil(t, p.SetupIntentData)
}

func TestCheckoutSessionParamsManualCapture(t *testing.T) {
	p := checkoutSessionParams(CheckoutSessionInput{
		Mode:          ModePayment,
		AmountCents:   100,
		Destination:   "acct_1",
		ManualCapture: true,
		CustomerID:    "cus_1",
	}, "usd")

	assert.Equal(t, "manual", *p.PaymentIntentData.CaptureMethod)
	assert.Nil(t, p.PaymentIntentData.TransferData, "fee-only charges stay on the platform")
	assert.Nil(t, p.PaymentIntentData.SetupFutureUsage)
	assert.Equal(t, "cus_1", *p.Customer)
	assert.Nil(t, p.CustomerEmail)
	assert.Nil(t, p.CustomerCreation)
}

func TestCheckoutSessionParamsSetupMode(t *testing.T) {
	p := checkoutSessionParams(CheckoutSessionInput{
		Mode:          ModeSetup,
		Destination:   "acct_1",
		CustomerEmail: "client@example.com",
		Metadata:      map[string]string{"booking_id": "b1"},
	}, "usd")

	assert.Equal(t, "setup", *p.Mode)
	assert.Empty(t, p.LineItems)
	assert.Nil(t, p.PaymentIntentData)
	assert.Equal(t, "usd", *p.Currency)
	assert.Equal(t, "acct_1", *p.SetupIntentData.OnBehalfOf)
	assert.Equal(t, "b1", p.SetupIntentData.Metadata["booking_id"])
	assert.Equal(t, "client@example.com", *p.CustomerEmail)
}

func TestIntentParams(t *testing.T) {
	p := intentParams(IntentInput{
		AmountCents:     8020,
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
		Destination:     "acct_1",
		TransferCents:   7920,
		ManualCapture:   true,
		IdempotencyKey:  "preauth:1",
	}, "usd")

	assert.Equal(t, int64(8020), *p.Amount)
	assert.Equal(t, "manual", *p.CaptureMethod)
	assert.True(t, *p.OffSession)
	assert.True(t, *p.Confirm)
	assert.Equal(t, "pm_1", *p.PaymentMethod)
	assert.Equal(t, int64(7920), *p.TransferData.Amount)
	assert.Equal(t, "preauth:1", *p.IdempotencyKey)

	p = intentParams(IntentInput{AmountCents: 100, PaymentMethodID: "pm_1"}, "usd")
	assert.Equal(t, "automatic", *p.CaptureMethod)
	assert.Nil(t, p.TransferData)
	assert.Nil(t, p.OnBehalfOf)
	assert.Nil(t, p.Customer)
}

func TestRefundParams(t *testing.T) {
	p := refundParams(RefundInput{PaymentIntentID: "pi_1", Reason: "requested_by_customer"})
	assert.Equal(t, "pi_1", *p.PaymentIntent)
	assert.Nil(t, p.Amount, "full refund by default")
	assert.True(t, *p.ReverseTransfer)

	p = refundParams(RefundInput{PaymentIntentID: "pi_1", AmountCents: 500})
	assert.Equal(t, int64(500), *p.Amount)
	assert.Nil(t, p.Reason)
}

func TestDescribeStripeError(t *testing.T) {
	err := fmt.Errorf("capture: %w", &stripe.Error{
		Type:           stripe.ErrorTypeCard,
		Code:           stripe.ErrorCodeCardDeclined,
		RequestID:      "req_1",
		HTTPStatusCode: 402,
		Msg:            "Your card was declined.",
	})
	desc := DescribeStripeError(err)
	assert.Contains(t, desc, "card_declined")
	assert.Contains(t, desc, "req_1")
	assert.Contains(t, desc, "402")

	assert.Equal(t, "boom", DescribeStripeError(errors.New("boom")))
	assert.Empty(t, DescribeStripeError(nil))
}

func newTestGateway(t *testing.T, h http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	sc := stripe.NewClient("sk_test_123", stripe.WithBackends(backends))
	return NewStripeGateway(sc, GatewayConfig{})
}

func TestGatewayPartialCapture(t *testing.T) {
	var gotPath, gotAmount, gotKey string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotAmount = r.PostForm.Get("amount_to_capture")
		gotKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_1","object":"payment_intent","status":"succeeded","amount":8020,"amount_received":500}`)
	})

	pi, err := g.PartialCapture(context.Background(), "pi_1", 500, "capture:pi_1")
	require.NoError(t, err)
	assert.Equal(t, "/v1/payment_intents/pi_1/capture", gotPath)
	assert.Equal(t, "500", gotAmount)
	assert.Equal(t, "capture:pi_1", gotKey)
	assert.Equal(t, "succeeded", pi.Status)
	assert.Equal(t, int64(500), pi.AmountReceived)

	_, err = g.PartialCapture(context.Background(), "pi_1", 0, "")
	assert.Error(t, err)
}

func TestGatewayCreateIntentRequiresPaymentMethod(t *testing.T) {
	calls := 0
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := g.CreateManualIntent(context.Background(), IntentInput{AmountCents: 100})
	assert.Error(t, err)
	_, err = g.CreateCharge(context.Background(), IntentInput{AmountCents: 0, PaymentMethodID: "pm_1"})
	assert.Error(t, err)
	assert.Zero(t, calls)
}

func TestGatewayProcessorError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Request-Id", "req_42")
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	})

	_, err := g.CreateCharge(context.Background(), IntentInput{AmountCents: 100, PaymentMethodID: "pm_1"})
	require.Error(t, err)
	var se *stripe.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, stripe.ErrorCodeCardDeclined, se.Code)
}
