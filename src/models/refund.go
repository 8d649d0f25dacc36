package models

import (
	"bookpay/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Refund struct {
	ID                    uuid.UUID       `gorm:"primarykey;type:uuid" json:"id"`
	StripeRefundID        string          `gorm:"uniqueIndex" json:"stripe_refund_id"`
	StripePaymentIntentID string          `gorm:"index" json:"stripe_payment_intent_id"`
	BookingPaymentID      *uuid.UUID      `gorm:"type:uuid;index" json:"booking_payment_id,omitempty"`
	Amount                decimal.Decimal `gorm:"type:numeric(10,2)" json:"amount"`
	Status                string          `json:"status"`
	FailureReason         *string         `json:"failure_reason,omitempty"`

	types.Timestamps
}

func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}
