package checkout

import (
	"bookpay/src/config"
	"bookpay/src/ledger"
	"bookpay/src/lib"
	"bookpay/src/store"
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotConnected           = errors.New("professional has no connected payout account")
	ErrOnboardingIncomplete   = errors.New("professional has not finished payout onboarding")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrAlreadyCaptured        = errors.New("payment already captured")
	ErrReconciliationRequired = errors.New("cancellation needs manual reconciliation")
	ErrForbidden              = errors.New("booking does not belong to caller")
	ErrBookingNotPending      = errors.New("booking is not awaiting payment")
	ErrAlreadyPaid            = errors.New("booking already has a payment")
	ErrNoPaymentMethod        = errors.New("no saved payment method")
	ErrNothingToCapture       = errors.New("payment has no authorized hold")
	ErrNotRefundable          = errors.New("payment cannot be refunded")
	ErrNotCancellable         = errors.New("payment cannot be cancelled")
	ErrSessionClosed          = errors.New("checkout session is no longer open")
)

// Gateway is the processor surface the orchestrator uses.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, in lib.CheckoutSessionInput) (*lib.CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (*lib.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, id string) error
	EnsureCustomer(ctx context.Context, in lib.CustomerInput) (string, error)
	CreateManualIntent(ctx context.Context, in lib.IntentInput) (*lib.Intent, error)
	CreateCharge(ctx context.Context, in lib.IntentInput) (*lib.Intent, error)
	Capture(ctx context.Context, intentID, idempotencyKey string) (*lib.Intent, error)
	PartialCapture(ctx context.Context, intentID string, amountCents int64, idempotencyKey string) (*lib.Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	CreateRefund(ctx context.Context, in lib.RefundInput) (string, error)
}

// Notifier sends the email telling a client a hold was placed for what they
// still owe.
type Notifier interface {
	SendBalanceNotification(ctx context.Context, bookingID uuid.UUID) error
}

type Deps struct {
	Gateway  Gateway
	Ledger   *ledger.Ledger
	Store    *store.Store
	Config   *config.Config
	Notifier Notifier
	Clock    func() time.Time
}

// Service runs the client-facing payment flows and the hold/capture steps
// shared by the workers and webhooks.
type Service struct {
	gw       Gateway
	ledger   *ledger.Ledger
	store    *store.Store
	cfg      *config.Config
	notifier Notifier
	now      func() time.Time
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Config == nil {
		d.Config = config.Load()
	}
	return &Service{
		gw:       d.Gateway,
		ledger:   d.Ledger,
		store:    d.Store,
		cfg:      d.Config,
		notifier: d.Notifier,
		now:      d.Clock,
	}
}

// processorCtx bounds a single processor round trip.
func (s *Service) processorCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProcessorTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
}

func bestEffort(what string, err error) {
	if err != nil {
		log.Printf("[Checkout] %s failed: %s\n", what, err.Error())
	}
}
