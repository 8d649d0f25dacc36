package checkout

import (
	"bookpay/src/ledger"
	"bookpay/src/lib"
	"bookpay/src/models"
	"bookpay/src/types"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

type CancelInput struct {
	BookingID            uuid.UUID
	ActorID              uuid.UUID
	CancellationFeeCents int64
}

func (s *Service) CancelBooking(ctx context.Context, in CancelInput) types.Result {
	if err := s.cancelBooking(ctx, in); err != nil {
		log.Printf("[Cancel] booking=%s error=%s\n", in.BookingID, err.Error())
		return types.Fail(err)
	}
	return types.Result{Success: true}
}

// cancelBooking releases the booking's hold. With a cancellation fee, the
// hold cannot be partially captured with a different transfer, so it is
// cancelled and replaced by two charges: the platform fee and the
// professional's fee.
func (s *Service) cancelBooking(ctx context.Context, in CancelInput) error {
	if in.CancellationFeeCents < 0 {
		return ErrInvalidAmount
	}
	b, err := s.store.GetBooking(ctx, in.BookingID)
	if err != nil {
		return err
	}
	if in.ActorID != b.CustomerID && in.ActorID != b.ProfessionalID {
		return ErrForbidden
	}
	if b.Status == types.BOOKING_CANCELLED {
		return nil
	}

	e, err := s.ledger.GetByBookingID(ctx, b.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		_, err := s.store.CancelBooking(ctx, b.ID)
		return err
	}
	if err != nil {
		return err
	}

	switch e.Status {
	case types.PAYMENT_COMPLETED:
		return fmt.Errorf("%w: refund it instead", ErrAlreadyCaptured)
	case types.PAYMENT_FAILED, types.PAYMENT_CANCELLED, types.PAYMENT_REFUNDED:
		_, err := s.store.CancelBooking(ctx, b.ID)
		return err
	}

	if e.Status == types.PAYMENT_PENDING && e.PaymentIntentID == "" && e.PaymentMethodID == "" && e.CheckoutSessionID != "" {
		bestEffort("expire checkout session "+e.CheckoutSessionID, s.gw.ExpireCheckoutSession(ctx, e.CheckoutSessionID))
	}

	hold := ""
	if e.Status == types.PAYMENT_AUTHORIZED && e.PaymentIntentID != "" {
		hold = e.PaymentIntentID
		pctx, cancel := s.processorCtx(ctx)
		err := s.gw.CancelIntent(pctx, hold)
		cancel()
		if err != nil {
			return fmt.Errorf("could not release hold %s: %s", hold, lib.DescribeStripeError(err))
		}
	}
	if _, err := s.ledger.MarkCancelled(ctx, e.ID); err != nil {
		return err
	}
	if _, err := s.store.CancelBooking(ctx, b.ID); err != nil {
		return err
	}

	if in.CancellationFeeCents == 0 {
		return nil
	}
	return s.chargeCancellation(ctx, b, e, hold, in.CancellationFeeCents)
}

func (s *Service) chargeCancellation(ctx context.Context, b *models.Booking, e *ledger.Entry, hold string, feeCents int64) error {
	reconcile := func(step, platformCharge string, err error) error {
		log.Printf("[Cancel] reconciliation required booking=%s payment=%s hold=%s platform_charge=%s step=%s error=%s\n",
			b.ID, e.ID, hold, platformCharge, step, err.Error())
		return fmt.Errorf("%w: %s: %s", ErrReconciliationRequired, step, lib.DescribeStripeError(err))
	}
	if e.PaymentMethodID == "" {
		return reconcile("platform_fee", "", ErrNoPaymentMethod)
	}

	platformCharge := ""
	if e.ServiceFeeCents > 0 && e.DepositPaidAt == nil {
		pctx, cancel := s.processorCtx(ctx)
		pi, err := s.gw.CreateCharge(pctx, lib.IntentInput{
			AmountCents:     e.ServiceFeeCents,
			CustomerID:      e.CustomerID,
			PaymentMethodID: e.PaymentMethodID,
			Description:     fmt.Sprintf("Service fee for cancelled booking %s", b.ID),
			Metadata:        metadata(b.ID, e.ID, types.CHARGE_PLATFORM_FEE),
			IdempotencyKey:  "cancel-platform-fee:" + b.ID.String(),
		})
		cancel()
		if err != nil {
			return reconcile("platform_fee", "", err)
		}
		platformCharge = pi.ID
	}

	acct := ""
	if b.Professional != nil && b.Professional.StripeAccountID != nil {
		acct = *b.Professional.StripeAccountID
	}
	pctx, cancel := s.processorCtx(ctx)
	_, err := s.gw.CreateCharge(pctx, lib.IntentInput{
		AmountCents:     feeCents,
		CustomerID:      e.CustomerID,
		PaymentMethodID: e.PaymentMethodID,
		Destination:     acct,
		TransferCents:   feeCents,
		Description:     fmt.Sprintf("Cancellation fee for booking %s", b.ID),
		Metadata:        metadata(b.ID, e.ID, types.CHARGE_CANCELLATION_FEE),
		IdempotencyKey:  "cancel-fee:" + b.ID.String(),
	})
	cancel()
	if err != nil {
		return reconcile("cancellation_fee", platformCharge, err)
	}
	log.Printf("[Cancel] booking=%s hold=%s platform_charge=%s fee=%d\n", b.ID, hold, platformCharge, feeCents)
	return nil
}
