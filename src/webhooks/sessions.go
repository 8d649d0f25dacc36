package webhooks

import (
	"bookpay/src/checkout"
	"bookpay/src/ledger"
	"bookpay/src/payments"
	"bookpay/src/types"
	"context"
	"log"

	"github.com/stripe/stripe-go/v82"
)

func (p *Processor) onCheckoutCompleted(ctx context.Context, evt *stripe.Event) error {
	cs, err := decode[stripe.CheckoutSession](evt)
	if err != nil {
		return err
	}
	if isSubscriptionCheckout(cs) {
		if p.subscriptions == nil {
			return nil
		}
		return p.subscriptions.CompleteCheckout(ctx, cs)
	}

	o := peek(evt.Data.Raw)
	refs := processorRefs{
		CheckoutSessionID: cs.ID,
		PaymentIntentID:   o.ref("payment_intent"),
		SetupIntentID:     o.ref("setup_intent"),
	}
	e, err := p.resolve(ctx, cs.Metadata, refs)
	if err != nil {
		return skip(evt, err)
	}
	customer := o.ref("customer")

	switch cs.Mode {
	case stripe.CheckoutSessionModeSetup:
		if refs.SetupIntentID != "" {
			if _, err := p.ledger.SavePaymentMethod(ctx, e.ID, ledger.PaymentMethod{
				SetupIntentID:   refs.SetupIntentID,
				CustomerID:      customer,
				PaymentMethodID: o.ref("setup_intent.payment_method"),
			}); err != nil {
				return err
			}
		}
		if _, err := p.store.ConfirmBooking(ctx, e.BookingID); err != nil {
			return err
		}
		p.sendBookingConfirmation(ctx, e, false)
		p.revalidate(ctx, bookingPaths(e.BookingID)...)
		return nil

	case stripe.CheckoutSessionModePayment:
		c := captureRefs{
			intentID:        refs.PaymentIntentID,
			paymentMethodID: o.ref("payment_intent.payment_method"),
			customerID:      customer,
		}
		if e.CaptureMethod == types.CAPTURE_MANUAL {
			return p.applySessionHold(ctx, e, c)
		}
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			log.Printf("[Webhook] session=%s payment=%s completed unpaid\n", cs.ID, e.ID)
			return nil
		}
		return p.applyCapture(ctx, e, c)
	}
	log.Printf("[Webhook] session=%s mode=%s ignored\n", cs.ID, cs.Mode)
	return nil
}

// applySessionHold records the hold a manual-capture checkout placed.
func (p *Processor) applySessionHold(ctx context.Context, e *ledger.Entry, c captureRefs) error {
	if _, err := p.store.ConfirmBooking(ctx, e.BookingID); err != nil {
		return err
	}
	if e.Status == types.PAYMENT_PENDING && c.intentID != "" {
		now := p.now()
		if _, err := p.ledger.MarkAuthorized(ctx, e.ID, ledger.Authorization{
			PaymentIntentID: c.intentID,
			PaymentMethodID: c.paymentMethodID,
			AmountCents:     e.AmountCents,
			At:              now,
			ExpiresAt:       now.Add(payments.AuthorizationLifetime),
		}); err != nil {
			return err
		}
	}
	if c.customerID != "" && e.CustomerID == "" {
		if _, err := p.ledger.SavePaymentMethod(ctx, e.ID, ledger.PaymentMethod{CustomerID: c.customerID}); err != nil {
			return err
		}
	}
	p.sendBookingConfirmation(ctx, e, true)
	p.revalidate(ctx, bookingPaths(e.BookingID)...)
	return nil
}

func (p *Processor) onCheckoutExpired(ctx context.Context, evt *stripe.Event) error {
	cs, err := decode[stripe.CheckoutSession](evt)
	if err != nil {
		return err
	}
	if isSubscriptionCheckout(cs) {
		return nil
	}
	e, err := p.resolve(ctx, cs.Metadata, processorRefs{CheckoutSessionID: cs.ID})
	if err != nil {
		return p.dropOrphan(ctx, evt, cs.Metadata, err)
	}
	if e.Status != types.PAYMENT_PENDING || e.CheckoutSessionID != "" && e.CheckoutSessionID != cs.ID {
		return nil
	}
	return p.failPayment(ctx, e, false)
}

func isSubscriptionCheckout(cs *stripe.CheckoutSession) bool {
	if cs.Mode == stripe.CheckoutSessionModeSubscription {
		return true
	}
	_, booking := cs.Metadata[checkout.MetaBookingID]
	return !booking && cs.Metadata["plan_id"] != ""
}

func (p *Processor) onSetupSucceeded(ctx context.Context, evt *stripe.Event) error {
	si, err := decode[stripe.SetupIntent](evt)
	if err != nil {
		return err
	}
	pm, customer := paymentMethodID(si.PaymentMethod), customerID(si.Customer)
	if pm == "" || customer == "" {
		log.Printf("[Webhook] setup=%s ignored: no card or customer\n", si.ID)
		return nil
	}
	e, err := p.resolve(ctx, si.Metadata, processorRefs{SetupIntentID: si.ID})
	if err != nil {
		return skip(evt, err)
	}
	if _, err := p.ledger.SavePaymentMethod(ctx, e.ID, ledger.PaymentMethod{
		PaymentMethodID: pm,
		CustomerID:      customer,
		SetupIntentID:   si.ID,
	}); err != nil {
		return err
	}
	confirmed, err := p.store.ConfirmBooking(ctx, e.BookingID)
	if err != nil {
		return err
	}
	if confirmed {
		p.track(ctx, "booking_completed", e)
	}
	p.sendBookingConfirmation(ctx, e, false)
	p.revalidate(ctx, bookingPaths(e.BookingID)...)
	p.placeHoldIfDue(ctx, e)
	return nil
}

// onSetupFailed leaves the booking alone; the client can save another card.
func (p *Processor) onSetupFailed(ctx context.Context, evt *stripe.Event) error {
	o := peek(evt.Data.Raw)
	log.Printf("[Webhook] setup=%s booking=%s failed: %s\n", o.data.Get("id").String(), o.bookingID(), o.data.Get("last_setup_error.message").String())
	return nil
}
