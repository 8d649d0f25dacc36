package models

import (
	"bookpay/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BookingPayment is the payment ledger row for a booking. Amounts are
// persisted in currency units.
type BookingPayment struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"booking_id"`

	Amount           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	DepositAmount    decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"deposit_amount"`
	BalanceAmount    decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"balance_amount"`
	ServiceFee       decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"service_fee"`
	TipAmount        decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"tip_amount"`
	RefundedAmount   decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"refunded_amount"`
	AuthorizedAmount decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"authorized_amount"`

	// refunded_amount is the sum of the two per-charge totals below.
	DepositRefundedAmount decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"deposit_refunded_amount"`
	BalanceRefundedAmount decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"balance_refunded_amount"`

	Status                 types.PaymentStatus `gorm:"default:'pending';index" json:"status"`
	PaymentType            types.PaymentType   `gorm:"default:'full'" json:"payment_type"`
	CaptureMethod          types.CaptureMethod `gorm:"default:'automatic'" json:"capture_method"`
	RequiresBalancePayment bool                `json:"requires_balance_payment"`

	// HoldBalanceOnDeposit marks a near-term deposit whose balance is held
	// as soon as the deposit is paid rather than on a schedule.
	HoldBalanceOnDeposit bool `json:"hold_balance_on_deposit"`

	StripePaymentIntentID   *string `gorm:"index" json:"stripe_payment_intent_id,omitempty"`
	DepositPaymentIntentID  *string `gorm:"index" json:"deposit_payment_intent_id,omitempty"`
	StripeCheckoutSessionID *string `gorm:"index" json:"stripe_checkout_session_id,omitempty"`
	StripeSetupIntentID     *string `json:"stripe_setup_intent_id,omitempty"`
	StripePaymentMethodID   *string `json:"stripe_payment_method_id,omitempty"`
	StripeCustomerID        *string `json:"stripe_customer_id,omitempty"`
	RefundTransactionID     *string `json:"refund_transaction_id,omitempty"`
	RefundReason            *string `json:"refund_reason,omitempty"`

	PreAuthScheduledFor    *time.Time `gorm:"index" json:"pre_auth_scheduled_for,omitempty"`
	CaptureScheduledFor    *time.Time `gorm:"index" json:"capture_scheduled_for,omitempty"`
	PreAuthPlacedAt        *time.Time `json:"pre_auth_placed_at,omitempty"`
	AuthorizationExpiresAt *time.Time `json:"authorization_expires_at,omitempty"`
	CapturedAt             *time.Time `json:"captured_at,omitempty"`
	DepositPaidAt          *time.Time `json:"deposit_paid_at,omitempty"`
	RefundedAt             *time.Time `json:"refunded_at,omitempty"`

	BookingConfirmationSentAt *time.Time `json:"booking_confirmation_sent_at,omitempty"`
	PaymentConfirmationSentAt *time.Time `json:"payment_confirmation_sent_at,omitempty"`
	BalanceNotificationSentAt *time.Time `json:"balance_notification_sent_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
}

func (p *BookingPayment) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
