package ledger

import (
	"bookpay/src/models"
	"bookpay/src/types"
	"time"

	"github.com/google/uuid"
)

// Entry is a booking payment as seen by the rest of the service, with every
// amount in minor units.
type Entry struct {
	ID        uuid.UUID
	BookingID uuid.UUID

	AmountCents           int64
	DepositCents          int64
	BalanceCents          int64
	ServiceFeeCents       int64
	TipCents              int64
	RefundedCents         int64
	DepositRefundedCents  int64
	BalanceRefundedCents  int64
	AuthorizedCents       int64
	Status                types.PaymentStatus
	PaymentType           types.PaymentType
	CaptureMethod         types.CaptureMethod
	RequiresBalance       bool
	HoldBalanceOnDeposit  bool
	PaymentIntentID       string
	DepositIntentID       string
	CheckoutSessionID     string
	SetupIntentID         string
	PaymentMethodID       string
	CustomerID            string
	RefundTransactionID   string
	RefundReason          string
	PreAuthScheduledFor   *time.Time
	CaptureScheduledFor   *time.Time
	PreAuthPlacedAt       *time.Time
	AuthorizationExpires  *time.Time
	CapturedAt            *time.Time
	DepositPaidAt         *time.Time
	RefundedAt            *time.Time
	BookingConfirmationAt *time.Time
	PaymentConfirmationAt *time.Time
	BalanceNotificationAt *time.Time
	CreatedAt             time.Time
}

// Plan is the complete record written when a checkout is created. ID may be
// set ahead of time so processor metadata can carry it.
type Plan struct {
	ID                   uuid.UUID
	BookingID            uuid.UUID
	AmountCents          int64
	DepositCents         int64
	BalanceCents         int64
	ServiceFeeCents      int64
	TipCents             int64
	PaymentType          types.PaymentType
	CaptureMethod        types.CaptureMethod
	RequiresBalance      bool
	CheckoutSessionID    string
	CustomerID           string
	PreAuthScheduledFor  *time.Time
	CaptureScheduledFor  *time.Time
	// HoldBalanceOnDeposit is set instead of PreAuthScheduledFor when the
	// balance hold follows the deposit immediately.
	HoldBalanceOnDeposit bool
}

// IsCaptured reports whether the entry reached completed with a capture time.
func (e *Entry) IsCaptured() bool {
	return e.Status == types.PAYMENT_COMPLETED && e.CapturedAt != nil
}

// InDepositPhase reports whether the deposit of a deposit flow is still unpaid.
func (e *Entry) InDepositPhase() bool {
	return e.PaymentType == types.PAYMENT_TYPE_DEPOSIT && e.DepositPaidAt == nil
}

// CollectsBalance reports whether a deposit flow holds its balance through
// the processor, on a schedule or right after the deposit.
func (e *Entry) CollectsBalance() bool {
	return e.PreAuthScheduledFor != nil || e.HoldBalanceOnDeposit
}

// RefundPartFor names the charge of the entry that intent pi belongs to.
func (e *Entry) RefundPartFor(pi string) RefundPart {
	if pi != "" && pi == e.DepositIntentID {
		return REFUND_DEPOSIT
	}
	return REFUND_BALANCE
}

// OwnsIntent reports whether pi is the current or deposit intent of the entry.
func (e *Entry) OwnsIntent(pi string) bool {
	return pi != "" && (pi == e.PaymentIntentID || pi == e.DepositIntentID)
}

func fromModel(m *models.BookingPayment) *Entry {
	return &Entry{
		ID:                    m.ID,
		BookingID:             m.BookingID,
		AmountCents:           ToCents(m.Amount),
		DepositCents:          ToCents(m.DepositAmount),
		BalanceCents:          ToCents(m.BalanceAmount),
		ServiceFeeCents:       ToCents(m.ServiceFee),
		TipCents:              ToCents(m.TipAmount),
		RefundedCents:         ToCents(m.RefundedAmount),
		DepositRefundedCents:  ToCents(m.DepositRefundedAmount),
		BalanceRefundedCents:  ToCents(m.BalanceRefundedAmount),
		AuthorizedCents:       ToCents(m.AuthorizedAmount),
		Status:                m.Status,
		PaymentType:           m.PaymentType,
		CaptureMethod:         m.CaptureMethod,
		RequiresBalance:       m.RequiresBalancePayment,
		HoldBalanceOnDeposit:  m.HoldBalanceOnDeposit,
		PaymentIntentID:       deref(m.StripePaymentIntentID),
		DepositIntentID:       deref(m.DepositPaymentIntentID),
		CheckoutSessionID:     deref(m.StripeCheckoutSessionID),
		SetupIntentID:         deref(m.StripeSetupIntentID),
		PaymentMethodID:       deref(m.StripePaymentMethodID),
		CustomerID:            deref(m.StripeCustomerID),
		RefundTransactionID:   deref(m.RefundTransactionID),
		RefundReason:          deref(m.RefundReason),
		PreAuthScheduledFor:   m.PreAuthScheduledFor,
		CaptureScheduledFor:   m.CaptureScheduledFor,
		PreAuthPlacedAt:       m.PreAuthPlacedAt,
		AuthorizationExpires:  m.AuthorizationExpiresAt,
		CapturedAt:            m.CapturedAt,
		DepositPaidAt:         m.DepositPaidAt,
		RefundedAt:            m.RefundedAt,
		BookingConfirmationAt: m.BookingConfirmationSentAt,
		PaymentConfirmationAt: m.PaymentConfirmationSentAt,
		BalanceNotificationAt: m.BalanceNotificationSentAt,
		CreatedAt:             m.CreatedAt,
	}
}

func (p Plan) toModel() *models.BookingPayment {
	return &models.BookingPayment{
		ID:                      p.ID,
		BookingID:               p.BookingID,
		Amount:                  FromCents(p.AmountCents),
		DepositAmount:           FromCents(p.DepositCents),
		BalanceAmount:           FromCents(p.BalanceCents),
		ServiceFee:              FromCents(p.ServiceFeeCents),
		TipAmount:               FromCents(p.TipCents),
		Status:                  types.PAYMENT_PENDING,
		PaymentType:             p.PaymentType,
		CaptureMethod:           p.CaptureMethod,
		RequiresBalancePayment:  p.RequiresBalance,
		HoldBalanceOnDeposit:    p.HoldBalanceOnDeposit,
		StripeCheckoutSessionID: ref(p.CheckoutSessionID),
		StripeCustomerID:        ref(p.CustomerID),
		PreAuthScheduledFor:     utc(p.PreAuthScheduledFor),
		CaptureScheduledFor:     utc(p.CaptureScheduledFor),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
