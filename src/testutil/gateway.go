package testutil

import (
	"bookpay/src/lib"
	"context"
	"fmt"
	"sync"

	"github.com/stripe/stripe-go/v82"
)

// FakeGateway records every processor call. FailOn makes the named method
// return the given error; intents it creates get IntentStatus.
type FakeGateway struct {
	mu sync.Mutex

	Calls    map[string]int
	FailOn   map[string]error
	Sessions []lib.CheckoutSessionInput
	Intents  []lib.IntentInput
	Captures []Capture
	Cancels  []string
	Refunds  []lib.RefundInput
	Expired  []string
	Accounts map[string]*stripe.Account

	IntentStatus  string
	SessionStatus string

	seq int
}

type Capture struct {
	IntentID       string
	AmountCents    int64
	IdempotencyKey string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Calls:         map[string]int{},
		FailOn:        map[string]error{},
		Accounts:      map[string]*stripe.Account{},
		SessionStatus: "open",
	}
}

func (f *FakeGateway) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *FakeGateway) record(method string) error {
	f.Calls[method]++
	f.seq++
	return f.FailOn[method]
}

func (f *FakeGateway) CreateCheckoutSession(ctx context.Context, in lib.CheckoutSessionInput) (*lib.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateCheckoutSession"); err != nil {
		return nil, err
	}
	f.Sessions = append(f.Sessions, in)
	id := fmt.Sprintf("cs_test_%d", f.seq)
	return &lib.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id, Status: "open"}, nil
}

func (f *FakeGateway) RetrieveCheckoutSession(ctx context.Context, id string) (*lib.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RetrieveCheckoutSession"); err != nil {
		return nil, err
	}
	return &lib.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id, Status: f.SessionStatus}, nil
}

func (f *FakeGateway) ExpireCheckoutSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ExpireCheckoutSession"); err != nil {
		return err
	}
	f.Expired = append(f.Expired, id)
	return nil
}

func (f *FakeGateway) EnsureCustomer(ctx context.Context, in lib.CustomerInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("EnsureCustomer"); err != nil {
		return "", err
	}
	return fmt.Sprintf("cus_test_%d", f.seq), nil
}

func (f *FakeGateway) CreateManualIntent(ctx context.Context, in lib.IntentInput) (*lib.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateManualIntent"); err != nil {
		return nil, err
	}
	f.Intents = append(f.Intents, in)
	status := f.IntentStatus
	if status == "" {
		status = string(stripe.PaymentIntentStatusRequiresCapture)
	}
	return &lib.Intent{
		ID:               fmt.Sprintf("pi_hold_%d", f.seq),
		Status:           status,
		AmountCents:      in.AmountCents,
		AmountCapturable: in.AmountCents,
	}, nil
}

func (f *FakeGateway) CreateCharge(ctx context.Context, in lib.IntentInput) (*lib.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateCharge"); err != nil {
		return nil, err
	}
	f.Intents = append(f.Intents, in)
	return &lib.Intent{
		ID:             fmt.Sprintf("pi_charge_%d", f.seq),
		Status:         string(stripe.PaymentIntentStatusSucceeded),
		AmountCents:    in.AmountCents,
		AmountReceived: in.AmountCents,
	}, nil
}

func (f *FakeGateway) Capture(ctx context.Context, intentID, key string) (*lib.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Capture"); err != nil {
		return nil, err
	}
	f.Captures = append(f.Captures, Capture{IntentID: intentID, IdempotencyKey: key})
	return &lib.Intent{ID: intentID, Status: string(stripe.PaymentIntentStatusSucceeded)}, nil
}

func (f *FakeGateway) PartialCapture(ctx context.Context, intentID string, amountCents int64, key string) (*lib.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PartialCapture"); err != nil {
		return nil, err
	}
	f.Captures = append(f.Captures, Capture{IntentID: intentID, AmountCents: amountCents, IdempotencyKey: key})
	return &lib.Intent{ID: intentID, Status: string(stripe.PaymentIntentStatusSucceeded), AmountReceived: amountCents}, nil
}

func (f *FakeGateway) CancelIntent(ctx context.Context, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CancelIntent"); err != nil {
		return err
	}
	f.Cancels = append(f.Cancels, intentID)
	return nil
}

func (f *FakeGateway) CreateRefund(ctx context.Context, in lib.RefundInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRefund"); err != nil {
		return "", err
	}
	f.Refunds = append(f.Refunds, in)
	return fmt.Sprintf("re_test_%d", f.seq), nil
}

func (f *FakeGateway) RetrieveAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RetrieveAccount"); err != nil {
		return nil, err
	}
	if acc, ok := f.Accounts[accountID]; ok {
		return acc, nil
	}
	return &stripe.Account{ID: accountID}, nil
}
