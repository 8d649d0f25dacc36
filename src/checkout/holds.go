package checkout

import (
	"bookpay/src/ledger"
	"bookpay/src/lib"
	"bookpay/src/models"
	"bookpay/src/payments"
	"bookpay/src/types"
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

// PlaceHold authorizes the outstanding amount of a pending payment against
// the saved card. Calling it again after the hold exists does nothing.
func (s *Service) PlaceHold(ctx context.Context, paymentID uuid.UUID) error {
	e, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		return err
	}
	if e.Status != types.PAYMENT_PENDING || e.PreAuthPlacedAt != nil {
		return nil
	}
	if e.InDepositPhase() {
		return fmt.Errorf("deposit for payment %s is not paid yet", e.ID)
	}
	if e.PaymentMethodID == "" {
		return ErrNoPaymentMethod
	}
	b, err := s.store.GetBooking(ctx, e.BookingID)
	if err != nil {
		return err
	}
	if b.Status == types.BOOKING_CANCELLED {
		_, err := s.ledger.MarkCancelled(ctx, e.ID)
		return err
	}

	kind := types.CHARGE_BOOKING
	if e.PaymentType == types.PAYMENT_TYPE_BALANCE {
		kind = types.CHARGE_BALANCE
	}
	dest, transfer := holdTransfer(e, b)

	pctx, cancel := s.processorCtx(ctx)
	pi, err := s.gw.CreateManualIntent(pctx, lib.IntentInput{
		AmountCents:     e.AmountCents,
		CustomerID:      e.CustomerID,
		PaymentMethodID: e.PaymentMethodID,
		Destination:     dest,
		TransferCents:   transfer,
		Description:     fmt.Sprintf("Booking %s", b.ID),
		Metadata:        metadata(b.ID, e.ID, kind),
		IdempotencyKey:  "preauth:" + e.ID.String(),
	})
	cancel()
	if err != nil {
		return fmt.Errorf("hold for payment %s failed: %s", e.ID, lib.DescribeStripeError(err))
	}
	if pi.Status != string(stripe.PaymentIntentStatusRequiresCapture) {
		return fmt.Errorf("hold %s for payment %s is %s", pi.ID, e.ID, pi.Status)
	}

	now := s.now()
	held := pi.AmountCapturable
	if held <= 0 {
		held = e.AmountCents
	}
	applied, err := s.ledger.MarkAuthorized(ctx, e.ID, ledger.Authorization{
		PaymentIntentID: pi.ID,
		PaymentMethodID: e.PaymentMethodID,
		AmountCents:     held,
		At:              now,
		ExpiresAt:       now.Add(payments.AuthorizationLifetime),
	})
	if err != nil {
		return err
	}
	if !applied {
		// a webhook for the same intent may have recorded the hold first
		cur, err := s.ledger.Get(ctx, e.ID)
		if err != nil || cur.PaymentIntentID != pi.ID {
			return err
		}
	}
	log.Printf("[Checkout] hold placed payment=%s intent=%s amount=%d\n", e.ID, pi.ID, held)
	s.notifyBalance(ctx, e)
	return nil
}

func (s *Service) notifyBalance(ctx context.Context, e *ledger.Entry) {
	claimed, err := s.ledger.ClaimNotification(ctx, e.ID, ledger.BALANCE_NOTIFICATION, s.now())
	if err != nil {
		bestEffort("claim balance notification", err)
		return
	}
	if !claimed || s.notifier == nil {
		return
	}
	if err := s.notifier.SendBalanceNotification(ctx, e.BookingID); err != nil {
		bestEffort("balance notification", err)
		_, err := s.ledger.ReleaseNotification(ctx, e.ID, ledger.BALANCE_NOTIFICATION)
		bestEffort("release balance notification", err)
	}
}

// Capture settles an authorized hold. When less than the authorized amount
// is owed only that much is captured.
func (s *Service) Capture(ctx context.Context, paymentID uuid.UUID) error {
	e, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		return err
	}
	if e.CapturedAt != nil {
		return ErrAlreadyCaptured
	}
	if e.Status != types.PAYMENT_AUTHORIZED || e.PaymentIntentID == "" {
		return ErrNothingToCapture
	}

	key := "capture:" + e.PaymentIntentID
	pctx, cancel := s.processorCtx(ctx)
	if e.AmountCents > 0 && e.AuthorizedCents > e.AmountCents {
		_, err = s.gw.PartialCapture(pctx, e.PaymentIntentID, e.AmountCents, key)
	} else {
		_, err = s.gw.Capture(pctx, e.PaymentIntentID, key)
	}
	cancel()
	if err != nil {
		return fmt.Errorf("capture of %s failed: %s", e.PaymentIntentID, lib.DescribeStripeError(err))
	}

	applied, err := s.ledger.MarkCaptured(ctx, e.ID, e.PaymentIntentID, s.now())
	if err != nil {
		return err
	}
	if applied {
		_, err := s.store.CompleteBooking(ctx, e.BookingID)
		bestEffort("complete booking", err)
	}
	return nil
}

// holdTransfer returns where the captured money goes. Balance holds belong to
// the professional in full since the fee was paid with the deposit; cash
// bookings only ever hold the platform fee.
func holdTransfer(e *ledger.Entry, b *models.Booking) (string, int64) {
	acct := ""
	if b.Professional != nil && b.Professional.StripeAccountID != nil {
		acct = *b.Professional.StripeAccountID
	}
	switch {
	case e.PaymentType == types.PAYMENT_TYPE_BALANCE:
		return acct, payments.Transfer(e.AmountCents, 0)
	case b.PaymentMethod == types.METHOD_OFFLINE:
		return "", 0
	default:
		return acct, payments.Transfer(e.AmountCents, e.ServiceFeeCents)
	}
}
