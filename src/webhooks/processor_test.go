package webhooks

import (
	"bookpay/src/config"
	"bookpay/src/ledger"
	"bookpay/src/models"
	"bookpay/src/store"
	"bookpay/src/testutil"
	"bookpay/src/types"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

const secret = "whsec_test"

type harness struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	store    *store.Store
	emails   *fakeEmails
	activity *fakeActivity
	reval    *fakeRevalidator
	holds    *fakeHolds
	resync   *fakeResync
	refunds  *fakeRefunds
	subs     *fakeSubscriptions
	accounts *fakeAccounts
	proc     *Processor
}

func newHarness(t *testing.T) *harness {
	db := testutil.NewDB(t)
	h := &harness{
		db:       db,
		ledger:   ledger.New(db),
		store:    store.New(db),
		emails:   &fakeEmails{},
		activity: &fakeActivity{},
		reval:    &fakeRevalidator{},
		holds:    &fakeHolds{},
		resync:   &fakeResync{},
		refunds:  &fakeRefunds{},
		subs:     &fakeSubscriptions{},
		accounts: &fakeAccounts{accounts: map[string]*stripe.Account{}},
	}
	h.proc = h.newProcessor()
	return h
}

// newProcessor starts a processor with empty in-memory state, as a new
// process would.
func (h *harness) newProcessor() *Processor {
	return NewProcessor(Deps{
		Ledger:        h.ledger,
		Store:         h.store,
		Config:        &config.Config{StripeWebhookSecret: secret, WebhookTimeout: 5 * time.Second},
		Holds:         h.holds,
		Emails:        h.emails,
		Activity:      h.activity,
		Refunds:       h.refunds,
		Subscriptions: h.subs,
		Revalidator:   h.reval,
		Resync:        h.resync,
		Accounts:      h.accounts,
		Clock:         func() time.Time { return now },
	})
}

func (h *harness) deliver(t *testing.T, evt *stripe.Event) {
	t.Helper()
	require.NoError(t, h.proc.Handle(context.Background(), evt))
}

func event(t *testing.T, typ stripe.EventType, obj map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: typ,
		Data: &stripe.EventData{Raw: raw},
	}
}

func meta(f *testutil.Fixture, e *ledger.Entry) map[string]string {
	m := map[string]string{"booking_id": f.Booking.ID.String()}
	if e != nil {
		m["booking_payment_id"] = e.ID.String()
	}
	return m
}

func (h *harness) manualHold(t *testing.T, opts ...testutil.FixtureOption) (*testutil.Fixture, *ledger.Entry) {
	t.Helper()
	f := testutil.SeedBooking(t, h.db, now.Add(48*time.Hour), "50.00", opts...)
	end := f.Appointment.EndTime
	e, err := h.ledger.Create(context.Background(), ledger.Plan{
		BookingID:           f.Booking.ID,
		AmountCents:         5000,
		ServiceFeeCents:     100,
		PaymentType:         types.PAYMENT_TYPE_FULL,
		CaptureMethod:       types.CAPTURE_MANUAL,
		CheckoutSessionID:   "cs_" + f.Booking.ID.String()[:8],
		CustomerID:          "cus_1",
		CaptureScheduledFor: &end,
	})
	require.NoError(t, err)
	return f, e
}

func (h *harness) entry(t *testing.T, id uuid.UUID) *ledger.Entry {
	t.Helper()
	e, err := h.ledger.Get(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (h *harness) booking(t *testing.T, id uuid.UUID) *models.Booking {
	t.Helper()
	var b models.Booking
	err := h.db.First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	require.NoError(t, err)
	return &b
}

func TestEveryKnownTypeHasHandler(t *testing.T) {
	h := newHarness(t)
	for _, typ := range KnownEventTypes {
		assert.Contains(t, h.proc.handlers, typ)
	}
	assert.NoError(t, h.proc.Handle(context.Background(), event(t, "customer.created", map[string]any{"id": "cus_1"})))
}

func TestConstructEvent(t *testing.T) {
	h := newHarness(t)
	payload := []byte(`{"id":"evt_1","object":"event","type":"price.updated","data":{"object":{"id":"price_1","object":"price"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})

	evt, err := h.proc.ConstructEvent(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, PriceUpdated, evt.Type)

	_, err = h.proc.ConstructEvent(payload, "t=1,v1=bad")
	assert.Error(t, err)
	_, err = h.proc.ConstructEvent(nil, signed.Header)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestDuplicateCaptureIsIdempotent(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)
	evt := event(t, PaymentIntentSucceeded, map[string]any{
		"id":             "pi_1",
		"object":         "payment_intent",
		"status":         "succeeded",
		"payment_method": "pm_1",
		"metadata":       meta(f, e),
	})

	h.deliver(t, evt)
	first := h.entry(t, e.ID)
	require.NotNil(t, first.CapturedAt)
	assert.Equal(t, types.PAYMENT_COMPLETED, first.Status)
	assert.Equal(t, "pi_1", first.PaymentIntentID)

	h.deliver(t, evt)
	h.proc = h.newProcessor()
	h.deliver(t, evt)

	second := h.entry(t, e.ID)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.CapturedAt.Equal(*second.CapturedAt))
	assert.Len(t, h.emails.payment, 1)
	assert.Len(t, h.emails.confirmation, 1)
	assert.Equal(t, []string{"payment_captured"}, h.activity.events)
	assert.Equal(t, types.BOOKING_CONFIRMED, h.booking(t, f.Booking.ID).Status)
}

func TestCaptureResolvesByIntentWithoutMetadata(t *testing.T) {
	h := newHarness(t)
	_, e := h.manualHold(t)
	_, err := h.ledger.MarkAuthorized(context.Background(), e.ID, ledger.Authorization{
		PaymentIntentID: "pi_dash", AmountCents: 5000, At: now, ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	h.deliver(t, event(t, ChargeCaptured, map[string]any{
		"id":             "ch_1",
		"object":         "charge",
		"captured":       true,
		"payment_intent": "pi_dash",
	}))
	assert.True(t, h.entry(t, e.ID).IsCaptured())
}

func TestUncapturedChargeIsIgnored(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)

	h.deliver(t, event(t, ChargeSucceeded, map[string]any{
		"id":             "ch_1",
		"object":         "charge",
		"captured":       false,
		"payment_intent": "pi_1",
		"metadata":       meta(f, e),
	}))
	assert.Equal(t, types.PAYMENT_PENDING, h.entry(t, e.ID).Status)
}

func TestAuxiliaryChargesDoNotMovePayment(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)
	m := meta(f, e)
	m["charge_kind"] = string(types.CHARGE_TIP)

	h.deliver(t, event(t, PaymentIntentSucceeded, map[string]any{"id": "pi_tip", "object": "payment_intent", "metadata": m}))
	h.deliver(t, event(t, PaymentIntentPaymentFailed, map[string]any{"id": "pi_tip", "object": "payment_intent", "metadata": m}))

	assert.Equal(t, types.PAYMENT_PENDING, h.entry(t, e.ID).Status)
	assert.NotNil(t, h.booking(t, f.Booking.ID))
}

func applyInOrder(t *testing.T, first, second func(h *harness, f *testutil.Fixture, e *ledger.Entry) *stripe.Event) (*ledger.Entry, *models.Booking, *fakeEmails) {
	h := newHarness(t)
	f, e := h.manualHold(t)
	h.deliver(t, first(h, f, e))
	h.deliver(t, second(h, f, e))
	return h.entry(t, e.ID), h.booking(t, f.Booking.ID), h.emails
}

func TestOutOfOrderCaptureAndCheckout(t *testing.T) {
	sessionCompleted := func(h *harness, f *testutil.Fixture, e *ledger.Entry) *stripe.Event {
		return event(t, CheckoutSessionCompleted, map[string]any{
			"id":             e.CheckoutSessionID,
			"object":         "checkout.session",
			"mode":           "payment",
			"payment_status": "unpaid",
			"payment_intent": "pi_1",
			"customer":       "cus_1",
			"metadata":       meta(f, e),
		})
	}
	chargeCaptured := func(h *harness, f *testutil.Fixture, e *ledger.Entry) *stripe.Event {
		return event(t, ChargeCaptured, map[string]any{
			"id":             "ch_1",
			"object":         "charge",
			"captured":       true,
			"payment_intent": "pi_1",
			"payment_method": "pm_1",
			"metadata":       meta(f, e),
		})
	}

	inOrder, bookingA, emailsA := applyInOrder(t, sessionCompleted, chargeCaptured)
	reversed, bookingB, emailsB := applyInOrder(t, chargeCaptured, sessionCompleted)

	for _, e := range []*ledger.Entry{inOrder, reversed} {
		assert.Equal(t, types.PAYMENT_COMPLETED, e.Status)
		assert.Equal(t, "pi_1", e.PaymentIntentID)
		assert.Equal(t, "pm_1", e.PaymentMethodID)
		require.NotNil(t, e.CapturedAt)
		assert.True(t, e.CapturedAt.Equal(now))
	}
	assert.Equal(t, bookingA.Status, bookingB.Status)
	assert.Equal(t, types.BOOKING_CONFIRMED, bookingB.Status)
	assert.Len(t, emailsA.confirmation, 1)
	assert.Len(t, emailsB.confirmation, 1)
	assert.Len(t, emailsA.payment, 1)
	assert.Len(t, emailsB.payment, 1)
}

func TestSessionHoldAuthorizes(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)

	h.deliver(t, event(t, CheckoutSessionCompleted, map[string]any{
		"id":             e.CheckoutSessionID,
		"object":         "checkout.session",
		"mode":           "payment",
		"payment_status": "unpaid",
		"payment_intent": "pi_1",
	}))
	got := h.entry(t, e.ID)
	assert.Equal(t, types.PAYMENT_AUTHORIZED, got.Status)
	assert.Equal(t, int64(5000), got.AuthorizedCents)
	assert.Equal(t, types.BOOKING_CONFIRMED, h.booking(t, f.Booking.ID).Status)
	assert.Equal(t, []bool{true}, h.emails.uncaptured)

	h.deliver(t, event(t, PaymentIntentAmountCapturable, map[string]any{
		"id":                "pi_1",
		"object":            "payment_intent",
		"status":            "requires_capture",
		"amount_capturable": 5000,
		"metadata":          meta(f, e),
	}))
	assert.Len(t, h.emails.confirmation, 1)
}

func TestFailedPaymentDeletesPendingBooking(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)

	h.deliver(t, event(t, PaymentIntentPaymentFailed, map[string]any{
		"id":       "pi_1",
		"object":   "payment_intent",
		"metadata": meta(f, e),
	}))
	assert.Nil(t, h.booking(t, f.Booking.ID))
	_, err := h.ledger.Get(context.Background(), e.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	// a redelivery finds nothing left to do
	h.deliver(t, event(t, PaymentIntentPaymentFailed, map[string]any{
		"id":       "pi_1",
		"object":   "payment_intent",
		"metadata": meta(f, e),
	}))
}

func TestFailedPaymentFallsBackWhenDeleteFails(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)
	require.NoError(t, h.db.Callback().Delete().Before("gorm:delete").Register("fail_bookings", func(tx *gorm.DB) {
		if tx.Statement.Table == "bookings" {
			tx.AddError(errors.New("row locked"))
		}
	}))

	h.deliver(t, event(t, PaymentIntentPaymentFailed, map[string]any{
		"id":       "pi_1",
		"object":   "payment_intent",
		"metadata": meta(f, e),
	}))
	assert.NotNil(t, h.booking(t, f.Booking.ID))
	assert.Equal(t, types.PAYMENT_FAILED, h.entry(t, e.ID).Status)
}

func TestCanceledIntentOnConfirmedBooking(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)
	_, err := h.store.ConfirmBooking(context.Background(), f.Booking.ID)
	require.NoError(t, err)

	h.deliver(t, event(t, PaymentIntentCanceled, map[string]any{
		"id":       "pi_1",
		"object":   "payment_intent",
		"metadata": meta(f, e),
	}))
	assert.Equal(t, types.PAYMENT_FAILED, h.entry(t, e.ID).Status)
	assert.Equal(t, types.BOOKING_CANCELLED, h.booking(t, f.Booking.ID).Status)
}

func TestExpiredSessionDeletesPendingBooking(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)

	h.deliver(t, event(t, CheckoutSessionExpired, map[string]any{
		"id":     e.CheckoutSessionID,
		"object": "checkout.session",
		"mode":   "payment",
	}))
	assert.Nil(t, h.booking(t, f.Booking.ID))
}

func TestExpiredSessionWithoutPaymentRow(t *testing.T) {
	h := newHarness(t)
	f := testutil.SeedBooking(t, h.db, now.Add(48*time.Hour), "50.00")

	h.deliver(t, event(t, CheckoutSessionExpired, map[string]any{
		"id":       "cs_orphan",
		"object":   "checkout.session",
		"mode":     "payment",
		"metadata": meta(f, nil),
	}))
	assert.Nil(t, h.booking(t, f.Booking.ID))
}

func TestRequiresActionAttachesIntent(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)

	h.deliver(t, event(t, PaymentIntentRequiresAction, map[string]any{
		"id":       "pi_3ds",
		"object":   "payment_intent",
		"metadata": meta(f, e),
	}))
	got := h.entry(t, e.ID)
	assert.Equal(t, types.PAYMENT_PENDING, got.Status)
	assert.Equal(t, "pi_3ds", got.PaymentIntentID)
}

func TestSubscriptionCheckoutIsDelegated(t *testing.T) {
	h := newHarness(t)

	h.deliver(t, event(t, CheckoutSessionCompleted, map[string]any{
		"id":       "cs_sub",
		"object":   "checkout.session",
		"mode":     "subscription",
		"metadata": map[string]string{"plan_id": uuid.NewString()},
	}))
	h.deliver(t, event(t, PriceUpdated, map[string]any{"id": "price_1", "object": "price", "unit_amount": 1500}))

	assert.Equal(t, []string{"cs_sub"}, h.subs.sessions)
	assert.Equal(t, []string{"price_1"}, h.subs.prices)
}
