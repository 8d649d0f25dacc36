package common

import (
	"bookpay/src/checkout"
	"bookpay/src/ledger"
	"bookpay/src/models"
	"bookpay/src/store"
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

// Refunds keeps the refunds table in step with the processor's refund
// objects. It returns the booking the refund belongs to when one is known.
type Refunds struct {
	store  *store.Store
	ledger *ledger.Ledger
}

func NewRefunds(st *store.Store, l *ledger.Ledger) *Refunds {
	return &Refunds{store: st, ledger: l}
}

func (r *Refunds) HandleRefund(ctx context.Context, eventType stripe.EventType, refund *stripe.Refund) (uuid.UUID, error) {
	intentID := ""
	if refund.PaymentIntent != nil {
		intentID = refund.PaymentIntent.ID
	}
	e, err := r.entryFor(ctx, refund.Metadata, intentID)
	if err != nil {
		return uuid.Nil, err
	}

	row := &models.Refund{
		StripeRefundID:        refund.ID,
		StripePaymentIntentID: intentID,
		Amount:                ledger.FromCents(refund.Amount),
		Status:                string(refund.Status),
	}
	if refund.FailureReason != "" {
		reason := string(refund.FailureReason)
		row.FailureReason = &reason
	}
	if e != nil {
		row.BookingPaymentID = &e.ID
	}
	if err := r.store.UpsertRefund(ctx, row); err != nil {
		return uuid.Nil, err
	}
	log.Printf("[Refund] type=%s refund=%s intent=%s status=%s\n", eventType, refund.ID, intentID, refund.Status)

	if e == nil {
		return uuid.Nil, nil
	}
	if e.RefundTransactionID == "" && refund.Status != stripe.RefundStatusFailed {
		if _, err := r.ledger.RecordRefundRequest(ctx, e.ID, refund.ID, string(refund.Reason)); err != nil {
			return uuid.Nil, err
		}
	}
	return e.BookingID, nil
}

// entryFor finds the payment a refund was issued against, or nil when the
// refund is not for a booking.
func (r *Refunds) entryFor(ctx context.Context, meta map[string]string, intentID string) (*ledger.Entry, error) {
	if id, err := uuid.Parse(meta[checkout.MetaBookingPaymentID]); err == nil {
		e, err := r.ledger.Get(ctx, id)
		if err == nil || !errors.Is(err, ledger.ErrNotFound) {
			return e, err
		}
	}
	if intentID == "" {
		return nil, nil
	}
	e, err := r.ledger.GetByPaymentIntentID(ctx, intentID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	return e, err
}
