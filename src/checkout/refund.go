package checkout

import (
	"bookpay/src/ledger"
	"bookpay/src/lib"
	"bookpay/src/types"
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

type RefundInput struct {
	BookingID   uuid.UUID
	ActorID     uuid.UUID
	AmountCents int64
	Reason      string
}

// RefundBooking asks the processor to refund a captured payment. The ledger
// moves to refunded when the processor confirms through its webhook.
func (s *Service) RefundBooking(ctx context.Context, in RefundInput) types.Result {
	if err := s.refundBooking(ctx, in); err != nil {
		log.Printf("[Refund] booking=%s error=%s\n", in.BookingID, err.Error())
		return types.Fail(err)
	}
	return types.Result{Success: true}
}

func (s *Service) refundBooking(ctx context.Context, in RefundInput) error {
	if in.AmountCents < 0 {
		return ErrInvalidAmount
	}
	e, err := s.authorizedEntry(ctx, in.BookingID, in.ActorID, true)
	if err != nil {
		return err
	}
	if e.Status != types.PAYMENT_COMPLETED || e.PaymentIntentID == "" {
		return ErrNotRefundable
	}
	remaining := e.AmountCents - e.BalanceRefundedCents
	if in.AmountCents > remaining {
		return fmt.Errorf("%w: at most %d can be refunded", ErrInvalidAmount, remaining)
	}

	intents := []string{e.PaymentIntentID}
	if in.AmountCents == 0 && e.DepositIntentID != "" && e.DepositIntentID != e.PaymentIntentID {
		intents = append(intents, e.DepositIntentID)
	}
	var refundID string
	for _, pi := range intents {
		pctx, cancel := s.processorCtx(ctx)
		id, err := s.gw.CreateRefund(pctx, lib.RefundInput{
			PaymentIntentID: pi,
			AmountCents:     in.AmountCents,
			Reason:          string(stripe.RefundReasonRequestedByCustomer),
			Metadata: map[string]string{
				MetaBookingID:        e.BookingID.String(),
				MetaBookingPaymentID: e.ID.String(),
				"reason":             in.Reason,
			},
			IdempotencyKey: fmt.Sprintf("refund:%s:%d:%d", pi, in.AmountCents, e.BalanceRefundedCents),
		})
		cancel()
		if err != nil {
			return fmt.Errorf("refund of %s failed: %s", pi, lib.DescribeStripeError(err))
		}
		if refundID == "" {
			refundID = id
		}
	}
	_, err = s.ledger.RecordRefundRequest(ctx, e.ID, refundID, in.Reason)
	return err
}

type TipInput struct {
	BookingID   uuid.UUID
	CustomerID  uuid.UUID
	AmountCents int64
}

// AddTip charges a tip to the saved card. All of it goes to the professional.
func (s *Service) AddTip(ctx context.Context, in TipInput) types.Result {
	if err := s.addTip(ctx, in); err != nil {
		log.Printf("[Tip] booking=%s error=%s\n", in.BookingID, err.Error())
		return types.Fail(err)
	}
	return types.Result{Success: true}
}

func (s *Service) addTip(ctx context.Context, in TipInput) error {
	if in.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	e, err := s.authorizedEntry(ctx, in.BookingID, in.CustomerID, false)
	if err != nil {
		return err
	}
	if e.Status != types.PAYMENT_AUTHORIZED && e.Status != types.PAYMENT_COMPLETED {
		return fmt.Errorf("tips need an active payment, payment is %s", e.Status)
	}
	if e.PaymentMethodID == "" {
		return ErrNoPaymentMethod
	}
	b, err := s.store.GetBooking(ctx, e.BookingID)
	if err != nil {
		return err
	}
	if b.Professional == nil || b.Professional.StripeAccountID == nil {
		return ErrNotConnected
	}

	pctx, cancel := s.processorCtx(ctx)
	_, err = s.gw.CreateCharge(pctx, lib.IntentInput{
		AmountCents:     in.AmountCents,
		CustomerID:      e.CustomerID,
		PaymentMethodID: e.PaymentMethodID,
		Destination:     *b.Professional.StripeAccountID,
		TransferCents:   in.AmountCents,
		Description:     fmt.Sprintf("Tip for booking %s", b.ID),
		Metadata:        metadata(b.ID, e.ID, types.CHARGE_TIP),
		IdempotencyKey:  fmt.Sprintf("tip:%s:%d:%d", e.ID, e.TipCents, in.AmountCents),
	})
	cancel()
	if err != nil {
		return fmt.Errorf("tip charge failed: %s", lib.DescribeStripeError(err))
	}
	if _, err := s.ledger.AddTip(ctx, e.ID, in.AmountCents); err != nil {
		return err
	}
	return s.store.AddBookingTip(ctx, b.ID, in.AmountCents)
}

// GetPayment returns the payment of a booking to its client or professional.
func (s *Service) GetPayment(ctx context.Context, bookingID, actorID uuid.UUID) (*ledger.Entry, error) {
	return s.authorizedEntry(ctx, bookingID, actorID, true)
}

func (s *Service) authorizedEntry(ctx context.Context, bookingID, actorID uuid.UUID, allowProfessional bool) (*ledger.Entry, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != b.CustomerID && (!allowProfessional || actorID != b.ProfessionalID) {
		return nil, ErrForbidden
	}
	return s.ledger.GetByBookingID(ctx, bookingID)
}
