package webhooks

import (
	"bookpay/src/config"
	"bookpay/src/ledger"
	"bookpay/src/store"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	CheckoutSessionCompleted      stripe.EventType = "checkout.session.completed"
	CheckoutSessionExpired        stripe.EventType = "checkout.session.expired"
	PaymentIntentSucceeded        stripe.EventType = "payment_intent.succeeded"
	PaymentIntentAmountCapturable stripe.EventType = "payment_intent.amount_capturable_updated"
	PaymentIntentPaymentFailed    stripe.EventType = "payment_intent.payment_failed"
	PaymentIntentCanceled         stripe.EventType = "payment_intent.canceled"
	PaymentIntentRequiresAction   stripe.EventType = "payment_intent.requires_action"
	ChargeCaptured                stripe.EventType = "charge.captured"
	ChargeSucceeded               stripe.EventType = "charge.succeeded"
	ChargeRefunded                stripe.EventType = "charge.refunded"
	ChargeDisputeCreated          stripe.EventType = "charge.dispute.created"
	SetupIntentSucceeded          stripe.EventType = "setup_intent.succeeded"
	SetupIntentSetupFailed        stripe.EventType = "setup_intent.setup_failed"
	AccountUpdated                stripe.EventType = "account.updated"
	CapabilityUpdated             stripe.EventType = "capability.updated"
	PersonUpdated                 stripe.EventType = "person.updated"
	RefundCreated                 stripe.EventType = "refund.created"
	RefundUpdated                 stripe.EventType = "refund.updated"
	RefundFailed                  stripe.EventType = "refund.failed"
	PriceUpdated                  stripe.EventType = "price.updated"
)

// KnownEventTypes are the events the endpoint subscribes to. Each one must
// have a handler.
var KnownEventTypes = []stripe.EventType{
	CheckoutSessionCompleted,
	CheckoutSessionExpired,
	PaymentIntentSucceeded,
	PaymentIntentAmountCapturable,
	PaymentIntentPaymentFailed,
	PaymentIntentCanceled,
	PaymentIntentRequiresAction,
	ChargeCaptured,
	ChargeSucceeded,
	ChargeRefunded,
	ChargeDisputeCreated,
	SetupIntentSucceeded,
	SetupIntentSetupFailed,
	AccountUpdated,
	CapabilityUpdated,
	PersonUpdated,
	RefundCreated,
	RefundUpdated,
	RefundFailed,
	PriceUpdated,
}

var ErrEmptyPayload = errors.New("empty webhook payload")

type Emailer interface {
	SendBookingConfirmation(ctx context.Context, bookingID uuid.UUID, uncaptured bool) error
	SendPaymentConfirmation(ctx context.Context, bookingID uuid.UUID) error
}

type ActivityTracker interface {
	Track(ctx context.Context, event string, attrs map[string]string) error
}

// RefundDomain owns the refunds table. It returns the booking the refund
// belongs to, or uuid.Nil.
type RefundDomain interface {
	HandleRefund(ctx context.Context, eventType stripe.EventType, r *stripe.Refund) (uuid.UUID, error)
}

type SubscriptionDomain interface {
	CompleteCheckout(ctx context.Context, cs *stripe.CheckoutSession) error
	UpdatePrice(ctx context.Context, p *stripe.Price) error
}

type Revalidator interface {
	Revalidate(ctx context.Context, paths ...string) error
}

type ConnectResync interface {
	ResyncServices(ctx context.Context, professionalID uuid.UUID) error
}

type HoldPlacer interface {
	PlaceHold(ctx context.Context, paymentID uuid.UUID) error
}

type AccountFetcher interface {
	RetrieveAccount(ctx context.Context, accountID string) (*stripe.Account, error)
}

type Deps struct {
	Ledger        *ledger.Ledger
	Store         *store.Store
	Config        *config.Config
	Holds         HoldPlacer
	Emails        Emailer
	Activity      ActivityTracker
	Refunds       RefundDomain
	Subscriptions SubscriptionDomain
	Revalidator   Revalidator
	Resync        ConnectResync
	Accounts      AccountFetcher
	Clock         func() time.Time
}

type handlerFunc func(ctx context.Context, evt *stripe.Event) error

// Processor verifies processor events and applies them to the ledger.
type Processor struct {
	ledger        *ledger.Ledger
	store         *store.Store
	holds         HoldPlacer
	emails        Emailer
	activity      ActivityTracker
	refunds       RefundDomain
	subscriptions SubscriptionDomain
	revalidator   Revalidator
	resync        ConnectResync
	accounts      AccountFetcher

	secret  string
	timeout time.Duration
	now     func() time.Time
	sent    *sentTracker

	handlers map[stripe.EventType]handlerFunc
}

func NewProcessor(d Deps) *Processor {
	if d.Config == nil {
		d.Config = config.Load()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	p := &Processor{
		ledger:        d.Ledger,
		store:         d.Store,
		holds:         d.Holds,
		emails:        d.Emails,
		activity:      d.Activity,
		refunds:       d.Refunds,
		subscriptions: d.Subscriptions,
		revalidator:   d.Revalidator,
		resync:        d.Resync,
		accounts:      d.Accounts,
		secret:        d.Config.StripeWebhookSecret,
		timeout:       d.Config.WebhookTimeout,
		now:           d.Clock,
		sent:          newSentTracker(maxTrackedNotifications),
	}
	p.handlers = map[stripe.EventType]handlerFunc{
		CheckoutSessionCompleted:      p.onCheckoutCompleted,
		CheckoutSessionExpired:        p.onCheckoutExpired,
		PaymentIntentSucceeded:        p.onPaymentIntentSucceeded,
		PaymentIntentAmountCapturable: p.onAmountCapturable,
		PaymentIntentPaymentFailed:    p.onPaymentFailed,
		PaymentIntentCanceled:         p.onPaymentCanceled,
		PaymentIntentRequiresAction:   p.onRequiresAction,
		ChargeCaptured:                p.onChargeCaptured,
		ChargeSucceeded:               p.onChargeCaptured,
		ChargeRefunded:                p.onChargeRefunded,
		ChargeDisputeCreated:          p.onDisputeCreated,
		SetupIntentSucceeded:          p.onSetupSucceeded,
		SetupIntentSetupFailed:        p.onSetupFailed,
		AccountUpdated:                p.onAccountUpdated,
		CapabilityUpdated:             p.onConnectedObjectUpdated,
		PersonUpdated:                 p.onConnectedObjectUpdated,
		RefundCreated:                 p.onRefund,
		RefundUpdated:                 p.onRefund,
		RefundFailed:                  p.onRefund,
		PriceUpdated:                  p.onPriceUpdated,
	}
	for _, t := range KnownEventTypes {
		if _, ok := p.handlers[t]; !ok {
			panic(fmt.Sprintf("webhooks: no handler registered for %s", t))
		}
	}
	return p
}

// ConstructEvent checks the signature of a raw webhook body.
func (p *Processor) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if len(payload) == 0 {
		return stripe.Event{}, ErrEmptyPayload
	}
	return webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// Handle dispatches a verified event. A returned error means the event should
// be retried by the processor.
func (p *Processor) Handle(ctx context.Context, evt *stripe.Event) error {
	h, ok := p.handlers[evt.Type]
	if !ok {
		log.Printf("[Webhook] type=%s event=%s ignored: no handler\n", evt.Type, evt.ID)
		return nil
	}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return fmt.Errorf("event %s has no data", evt.ID)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := h(ctx, evt); err != nil {
		log.Printf("[Webhook] type=%s event=%s booking=%s error=%s\n", evt.Type, evt.ID, peek(evt.Data.Raw).bookingID(), err.Error())
		return err
	}
	return nil
}

func decode[T any](evt *stripe.Event) (*T, error) {
	var v T
	if err := json.Unmarshal(evt.Data.Raw, &v); err != nil {
		return nil, fmt.Errorf("could not parse %s payload: %w", evt.Type, err)
	}
	return &v, nil
}

func bestEffort(what string, err error) {
	if err != nil {
		log.Printf("[Webhook] %s failed: %s\n", what, err.Error())
	}
}
