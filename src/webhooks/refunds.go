package webhooks

import (
	"bookpay/src/ledger"
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

func (p *Processor) onChargeRefunded(ctx context.Context, evt *stripe.Event) error {
	ch, err := decode[stripe.Charge](evt)
	if err != nil {
		return err
	}
	if auxiliary(ch.Metadata) {
		return nil
	}
	pi := peek(evt.Data.Raw).ref("payment_intent")
	e, err := p.resolve(ctx, ch.Metadata, processorRefs{PaymentIntentID: pi})
	if err != nil {
		return skip(evt, err)
	}
	return p.applyRefund(ctx, e, pi, ch.AmountRefunded)
}

func (p *Processor) onDisputeCreated(ctx context.Context, evt *stripe.Event) error {
	d, err := decode[stripe.Dispute](evt)
	if err != nil {
		return err
	}
	if auxiliary(d.Metadata) {
		return nil
	}
	pi := peek(evt.Data.Raw).ref("payment_intent")
	e, err := p.resolve(ctx, d.Metadata, processorRefs{PaymentIntentID: pi})
	if err != nil {
		return skip(evt, err)
	}
	log.Printf("[Webhook] dispute=%s payment=%s amount=%d\n", d.ID, e.ID, d.Amount)
	return p.applyRefund(ctx, e, pi, d.Amount)
}

// applyRefund records the refunded total of the charge behind intent pi and
// moves the payment to refunded. The booking cascade only runs for the
// delivery that made the move.
func (p *Processor) applyRefund(ctx context.Context, e *ledger.Entry, pi string, refundedCents int64) error {
	part := e.RefundPartFor(pi)
	moved, err := p.ledger.RecordChargeRefund(ctx, e.ID, part, refundedCents, p.now())
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	total := refundedCents
	if got, err := p.ledger.Get(ctx, e.ID); err == nil {
		total = got.RefundedCents
	}
	log.Printf("[Webhook] payment=%s booking=%s refunded %s=%d total=%d\n", e.ID, e.BookingID, part, refundedCents, total)
	p.refundCascade(ctx, e.BookingID, total)
	return nil
}

func (p *Processor) refundCascade(ctx context.Context, bookingID uuid.UUID, refundedCents int64) {
	_, err := p.store.CancelBooking(ctx, bookingID)
	bestEffort("cancel refunded booking", err)

	paths := bookingPaths(bookingID)
	if err := p.resolveSupport(ctx, bookingID, refundedCents); err != nil {
		bestEffort("resolve support request", err)
	} else {
		paths = append(paths, supportPaths(bookingID)...)
	}
	p.revalidate(ctx, paths...)
}

func (p *Processor) resolveSupport(ctx context.Context, bookingID uuid.UUID, refundedCents int64) error {
	req, err := p.store.InProgressSupportRequest(ctx, bookingID)
	if err != nil || req == nil {
		return err
	}
	resolved, err := p.store.ResolveSupportRequest(ctx, req.ID)
	if err != nil || !resolved || req.ConversationID == nil {
		return err
	}
	body := fmt.Sprintf("A refund of $%s has been issued for this booking. This support request is now resolved.",
		ledger.FromCents(refundedCents).StringFixed(2))
	return p.store.PostSystemMessage(ctx, *req.ConversationID, body)
}

func (p *Processor) onRefund(ctx context.Context, evt *stripe.Event) error {
	if p.refunds == nil {
		log.Printf("[Webhook] type=%s event=%s ignored: no refund handler\n", evt.Type, evt.ID)
		return nil
	}
	r, err := decode[stripe.Refund](evt)
	if err != nil {
		return err
	}
	bookingID, err := p.refunds.HandleRefund(ctx, evt.Type, r)
	if err != nil {
		return err
	}
	if bookingID != uuid.Nil {
		p.revalidate(ctx, supportPaths(bookingID)...)
	}
	return nil
}

func supportPaths(bookingID uuid.UUID) []string {
	return []string{
		"/support",
		fmt.Sprintf("/bookings/%s/support", bookingID),
	}
}
