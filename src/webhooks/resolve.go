package webhooks

import (
	"bookpay/src/checkout"
	"bookpay/src/ledger"
	"bookpay/src/types"
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/tidwall/gjson"
)

var errUnresolved = errors.New("event does not belong to a booking payment")

// object is a read-only view over an event's data.object.
type object struct {
	data gjson.Result
	meta map[string]string
}

func peek(raw []byte) object {
	o := object{data: gjson.ParseBytes(raw), meta: map[string]string{}}
	o.data.Get("metadata").ForEach(func(k, v gjson.Result) bool {
		o.meta[k.String()] = v.String()
		return true
	})
	return o
}

// ref reads an expandable field, which is either an id or an object.
func (o object) ref(path string) string {
	r := o.data.Get(path)
	if r.IsObject() {
		return r.Get("id").String()
	}
	return r.String()
}

func (o object) bookingID() string {
	return o.meta[checkout.MetaBookingID]
}

type processorRefs struct {
	PaymentIntentID   string
	CheckoutSessionID string
	SetupIntentID     string
}

// resolveByMetadata finds the payment from the ids the application wrote on
// the processor object.
func (p *Processor) resolveByMetadata(ctx context.Context, meta map[string]string) (uuid.UUID, error) {
	if v := meta[checkout.MetaBookingPaymentID]; v != "" {
		if id, err := uuid.Parse(v); err == nil {
			return id, nil
		}
	}
	v := meta[checkout.MetaBookingID]
	if v == "" {
		return uuid.Nil, errUnresolved
	}
	bookingID, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, errUnresolved
	}
	e, err := p.ledger.GetByBookingID(ctx, bookingID)
	if err != nil {
		return uuid.Nil, err
	}
	return e.ID, nil
}

// resolveByProcessorID finds the payment from processor ids. Objects created
// from the dashboard carry no metadata.
func (p *Processor) resolveByProcessorID(ctx context.Context, refs processorRefs) (uuid.UUID, error) {
	lookups := []struct {
		id   string
		find func(context.Context, string) (*ledger.Entry, error)
	}{
		{refs.PaymentIntentID, p.ledger.GetByPaymentIntentID},
		{refs.CheckoutSessionID, p.ledger.GetByCheckoutSessionID},
		{refs.SetupIntentID, p.ledger.GetBySetupIntentID},
	}
	for _, l := range lookups {
		if l.id == "" {
			continue
		}
		e, err := l.find(ctx, l.id)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return uuid.Nil, err
		}
		return e.ID, nil
	}
	return uuid.Nil, errUnresolved
}

func (p *Processor) resolve(ctx context.Context, meta map[string]string, refs processorRefs) (*ledger.Entry, error) {
	id, err := p.resolveByMetadata(ctx, meta)
	switch {
	case err == nil:
		e, err := p.ledger.Get(ctx, id)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
	case !errors.Is(err, errUnresolved) && !errors.Is(err, ledger.ErrNotFound):
		return nil, err
	}

	id, err = p.resolveByProcessorID(ctx, refs)
	if err != nil {
		return nil, err
	}
	return p.ledger.Get(ctx, id)
}

// skip turns "not ours" into an acknowledged no-op.
func skip(evt *stripe.Event, err error) error {
	if errors.Is(err, errUnresolved) || errors.Is(err, ledger.ErrNotFound) {
		log.Printf("[Webhook] type=%s event=%s ignored: no booking payment\n", evt.Type, evt.ID)
		return nil
	}
	return err
}

// auxiliary charges are billed against a booking but never move its payment.
func auxiliary(meta map[string]string) bool {
	switch types.ChargeKind(meta[checkout.MetaChargeKind]) {
	case types.CHARGE_PLATFORM_FEE, types.CHARGE_CANCELLATION_FEE, types.CHARGE_TIP:
		return true
	}
	return false
}

func metaBookingID(meta map[string]string) (uuid.UUID, bool) {
	id, err := uuid.Parse(meta[checkout.MetaBookingID])
	return id, err == nil
}
