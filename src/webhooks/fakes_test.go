package webhooks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

type fakeEmails struct {
	mu           sync.Mutex
	confirmation []uuid.UUID
	uncaptured   []bool
	payment      []uuid.UUID
	err          error
}

func (f *fakeEmails) SendBookingConfirmation(ctx context.Context, bookingID uuid.UUID, uncaptured bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmation = append(f.confirmation, bookingID)
	f.uncaptured = append(f.uncaptured, uncaptured)
	return nil
}

func (f *fakeEmails) SendPaymentConfirmation(ctx context.Context, bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payment = append(f.payment, bookingID)
	return nil
}

type fakeActivity struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeActivity) Track(ctx context.Context, event string, attrs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeRevalidator struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeRevalidator) Revalidate(ctx context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, paths...)
	return nil
}

type fakeHolds struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeHolds) PlaceHold(ctx context.Context, paymentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, paymentID)
	return f.err
}

type fakeResync struct {
	calls []uuid.UUID
}

func (f *fakeResync) ResyncServices(ctx context.Context, professionalID uuid.UUID) error {
	f.calls = append(f.calls, professionalID)
	return nil
}

type fakeRefunds struct {
	events    []stripe.EventType
	bookingID uuid.UUID
	err       error
}

func (f *fakeRefunds) HandleRefund(ctx context.Context, eventType stripe.EventType, r *stripe.Refund) (uuid.UUID, error) {
	f.events = append(f.events, eventType)
	return f.bookingID, f.err
}

type fakeSubscriptions struct {
	sessions []string
	prices   []string
}

func (f *fakeSubscriptions) CompleteCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	f.sessions = append(f.sessions, cs.ID)
	return nil
}

func (f *fakeSubscriptions) UpdatePrice(ctx context.Context, p *stripe.Price) error {
	f.prices = append(f.prices, p.ID)
	return nil
}

type fakeAccounts struct {
	accounts map[string]*stripe.Account
	calls    int
}

func (f *fakeAccounts) RetrieveAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	f.calls++
	if a, ok := f.accounts[accountID]; ok {
		return a, nil
	}
	return &stripe.Account{ID: accountID}, nil
}
