package webhooks

import (
	"bookpay/src/ledger"
	"bookpay/src/payments"
	"bookpay/src/types"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

// captureRefs is what a succeeded or captured object tells about its payment.
type captureRefs struct {
	intentID        string
	paymentMethodID string
	customerID      string
}

func (p *Processor) onPaymentIntentSucceeded(ctx context.Context, evt *stripe.Event) error {
	pi, err := decode[stripe.PaymentIntent](evt)
	if err != nil {
		return err
	}
	if auxiliary(pi.Metadata) {
		return nil
	}
	e, err := p.resolve(ctx, pi.Metadata, processorRefs{PaymentIntentID: pi.ID})
	if err != nil {
		return skip(evt, err)
	}
	return p.applyCapture(ctx, e, captureRefs{
		intentID:        pi.ID,
		paymentMethodID: paymentMethodID(pi.PaymentMethod),
		customerID:      customerID(pi.Customer),
	})
}

// onChargeCaptured handles charge.captured and charge.succeeded. A charge of a
// manual-capture intent succeeds when it is authorized, so only captured
// charges count.
func (p *Processor) onChargeCaptured(ctx context.Context, evt *stripe.Event) error {
	ch, err := decode[stripe.Charge](evt)
	if err != nil {
		return err
	}
	if !ch.Captured || auxiliary(ch.Metadata) {
		return nil
	}
	intentID := peek(evt.Data.Raw).ref("payment_intent")
	e, err := p.resolve(ctx, ch.Metadata, processorRefs{PaymentIntentID: intentID})
	if err != nil {
		return skip(evt, err)
	}
	return p.applyCapture(ctx, e, captureRefs{
		intentID:        intentID,
		paymentMethodID: ch.PaymentMethod,
		customerID:      customerID(ch.Customer),
	})
}

// applyCapture records money that has been taken. Deposit intents of a
// payment whose balance is still to be held only move it to the balance phase.
func (p *Processor) applyCapture(ctx context.Context, e *ledger.Entry, c captureRefs) error {
	if e.IsCaptured() {
		p.sendPaymentConfirmation(ctx, e)
		return nil
	}
	if c.intentID != "" && c.intentID == e.DepositIntentID {
		return p.saveDepositCard(ctx, e, c)
	}
	if e.InDepositPhase() && e.CollectsBalance() {
		return p.applyDeposit(ctx, e, c)
	}

	if _, err := p.store.ConfirmBooking(ctx, e.BookingID); err != nil {
		return err
	}
	if c.paymentMethodID != "" && e.PaymentMethodID == "" {
		if _, err := p.ledger.SavePaymentMethod(ctx, e.ID, ledger.PaymentMethod{
			PaymentMethodID: c.paymentMethodID,
			CustomerID:      c.customerID,
		}); err != nil {
			return err
		}
	}
	applied, err := p.ledger.MarkCaptured(ctx, e.ID, c.intentID, p.now())
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	log.Printf("[Webhook] payment=%s booking=%s captured intent=%s\n", e.ID, e.BookingID, c.intentID)
	p.sendBookingConfirmation(ctx, e, false)
	p.sendPaymentConfirmation(ctx, e)
	p.track(ctx, "payment_captured", e)
	p.revalidate(ctx, bookingPaths(e.BookingID)...)
	return nil
}

func (p *Processor) applyDeposit(ctx context.Context, e *ledger.Entry, c captureRefs) error {
	if _, err := p.store.ConfirmBooking(ctx, e.BookingID); err != nil {
		return err
	}
	applied, err := p.ledger.MarkDepositPaid(ctx, e.ID, ledger.DepositPayment{
		PaymentIntentID: c.intentID,
		PaymentMethodID: c.paymentMethodID,
		CustomerID:      c.customerID,
		At:              p.now(),
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	log.Printf("[Webhook] payment=%s booking=%s deposit paid intent=%s\n", e.ID, e.BookingID, c.intentID)
	p.sendBookingConfirmation(ctx, e, false)
	p.sendPaymentConfirmation(ctx, e)
	p.revalidate(ctx, bookingPaths(e.BookingID)...)
	if c.paymentMethodID != "" {
		p.placeHoldIfDue(ctx, e)
	}
	return nil
}

// saveDepositCard keeps the card of a deposit that was recorded before its
// payment method was known.
func (p *Processor) saveDepositCard(ctx context.Context, e *ledger.Entry, c captureRefs) error {
	if c.paymentMethodID == "" || e.PaymentMethodID != "" {
		return nil
	}
	applied, err := p.ledger.SavePaymentMethod(ctx, e.ID, ledger.PaymentMethod{
		PaymentMethodID: c.paymentMethodID,
		CustomerID:      c.customerID,
	})
	if err != nil || !applied {
		return err
	}
	p.placeHoldIfDue(ctx, e)
	return nil
}

// placeHoldIfDue places a hold that is already due without waiting for the
// pre-auth worker.
func (p *Processor) placeHoldIfDue(ctx context.Context, e *ledger.Entry) {
	if p.holds == nil {
		return
	}
	due := e.HoldBalanceOnDeposit || (e.PreAuthScheduledFor != nil && !e.PreAuthScheduledFor.After(p.now()))
	if !due {
		return
	}
	bestEffort("place hold for "+e.ID.String(), p.holds.PlaceHold(ctx, e.ID))
}

func (p *Processor) onAmountCapturable(ctx context.Context, evt *stripe.Event) error {
	pi, err := decode[stripe.PaymentIntent](evt)
	if err != nil {
		return err
	}
	if pi.Status != stripe.PaymentIntentStatusRequiresCapture || auxiliary(pi.Metadata) {
		return nil
	}
	e, err := p.resolve(ctx, pi.Metadata, processorRefs{PaymentIntentID: pi.ID})
	if err != nil {
		return skip(evt, err)
	}
	if e.Status == types.PAYMENT_PENDING && !e.InDepositPhase() && pi.ID != e.DepositIntentID {
		held := pi.AmountCapturable
		if held <= 0 {
			held = e.AmountCents
		}
		now := p.now()
		if _, err := p.ledger.MarkAuthorized(ctx, e.ID, ledger.Authorization{
			PaymentIntentID: pi.ID,
			PaymentMethodID: paymentMethodID(pi.PaymentMethod),
			AmountCents:     held,
			At:              now,
			ExpiresAt:       now.Add(payments.AuthorizationLifetime),
		}); err != nil {
			return err
		}
	}
	p.sendBookingConfirmation(ctx, e, true)
	return nil
}

func (p *Processor) onRequiresAction(ctx context.Context, evt *stripe.Event) error {
	pi, err := decode[stripe.PaymentIntent](evt)
	if err != nil {
		return err
	}
	if auxiliary(pi.Metadata) {
		return nil
	}
	e, err := p.resolve(ctx, pi.Metadata, processorRefs{PaymentIntentID: pi.ID})
	if err != nil {
		return skip(evt, err)
	}
	if e.Status != types.PAYMENT_PENDING || pi.ID == e.DepositIntentID {
		return nil
	}
	if _, err := p.ledger.AttachPaymentIntent(ctx, e.ID, pi.ID); err != nil {
		return err
	}
	log.Printf("[Webhook] payment=%s intent=%s requires action\n", e.ID, pi.ID)
	return nil
}

func (p *Processor) onPaymentFailed(ctx context.Context, evt *stripe.Event) error {
	return p.onIntentEnded(ctx, evt, false)
}

func (p *Processor) onPaymentCanceled(ctx context.Context, evt *stripe.Event) error {
	return p.onIntentEnded(ctx, evt, true)
}

func (p *Processor) onIntentEnded(ctx context.Context, evt *stripe.Event, canceled bool) error {
	pi, err := decode[stripe.PaymentIntent](evt)
	if err != nil {
		return err
	}
	if auxiliary(pi.Metadata) {
		return nil
	}
	e, err := p.resolve(ctx, pi.Metadata, processorRefs{PaymentIntentID: pi.ID})
	if err != nil {
		return p.dropOrphan(ctx, evt, pi.Metadata, err)
	}
	if pi.ID == e.DepositIntentID {
		return nil
	}
	return p.failPayment(ctx, e, canceled)
}

// failPayment frees the slot of a booking that never got paid. Bookings that
// are already confirmed keep their row and their payment is marked failed.
func (p *Processor) failPayment(ctx context.Context, e *ledger.Entry, cancelBooking bool) error {
	deleted, err := p.store.DeletePendingBooking(ctx, e.BookingID)
	if err != nil {
		log.Printf("[Webhook] booking=%s delete failed, marking payment failed: %s\n", e.BookingID, err.Error())
		_, err := p.ledger.MarkFailed(ctx, e.ID)
		return err
	}
	if deleted {
		log.Printf("[Webhook] booking=%s deleted after failed payment\n", e.BookingID)
		p.revalidate(ctx, bookingPaths(e.BookingID)...)
		return nil
	}
	applied, err := p.ledger.MarkFailed(ctx, e.ID)
	if err != nil {
		return err
	}
	if cancelBooking {
		if _, err := p.store.CancelBooking(ctx, e.BookingID); err != nil {
			return err
		}
	}
	if applied {
		p.revalidate(ctx, bookingPaths(e.BookingID)...)
	}
	return nil
}

// dropOrphan removes a pending booking whose payment row was never written.
func (p *Processor) dropOrphan(ctx context.Context, evt *stripe.Event, meta map[string]string, err error) error {
	bookingID, ok := metaBookingID(meta)
	if !ok || !(errors.Is(err, errUnresolved) || errors.Is(err, ledger.ErrNotFound)) {
		return skip(evt, err)
	}
	if _, err := p.store.DeletePendingBooking(ctx, bookingID); err != nil {
		return err
	}
	return nil
}

func bookingPaths(bookingID uuid.UUID) []string {
	return []string{
		fmt.Sprintf("/bookings/%s", bookingID),
		"/dashboard/bookings",
	}
}

func paymentMethodID(pm *stripe.PaymentMethod) string {
	if pm == nil {
		return ""
	}
	return pm.ID
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
