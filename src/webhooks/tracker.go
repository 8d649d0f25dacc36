package webhooks

import (
	"bookpay/src/ledger"
	"context"
	"sync"
)

const maxTrackedNotifications = 4096

// sentTracker remembers the notifications this process has already claimed
// so repeats skip the database. It is not the guard: ClaimNotification is.
// It is emptied once it holds max keys.
type sentTracker struct {
	mu   sync.Mutex
	max  int
	keys map[string]struct{}
}

func newSentTracker(max int) *sentTracker {
	return &sentTracker{max: max, keys: map[string]struct{}{}}
}

func (t *sentTracker) has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[key]
	return ok
}

func (t *sentTracker) add(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.keys) >= t.max {
		t.keys = map[string]struct{}{}
	}
	t.keys[key] = struct{}{}
}

func (t *sentTracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.keys)
}

// notifyOnce runs send at most once per payment and notification, across
// processes and restarts. A failed send gives the claim back so a redelivery
// can retry it. Failures are logged.
func (p *Processor) notifyOnce(ctx context.Context, e *ledger.Entry, n ledger.Notification, send func(context.Context) error) {
	key := string(n) + ":" + e.ID.String()
	if p.sent.has(key) {
		return
	}
	claimed, err := p.ledger.ClaimNotification(ctx, e.ID, n, p.now())
	if err != nil {
		bestEffort("claim "+string(n), err)
		return
	}
	if !claimed {
		p.sent.add(key)
		return
	}
	if err := send(ctx); err != nil {
		bestEffort(string(n), err)
		_, err := p.ledger.ReleaseNotification(ctx, e.ID, n)
		bestEffort("release "+string(n), err)
		return
	}
	p.sent.add(key)
}

func (p *Processor) sendBookingConfirmation(ctx context.Context, e *ledger.Entry, uncaptured bool) {
	if p.emails == nil {
		return
	}
	p.notifyOnce(ctx, e, ledger.BOOKING_CONFIRMATION, func(ctx context.Context) error {
		return p.emails.SendBookingConfirmation(ctx, e.BookingID, uncaptured)
	})
}

func (p *Processor) sendPaymentConfirmation(ctx context.Context, e *ledger.Entry) {
	if p.emails == nil {
		return
	}
	p.notifyOnce(ctx, e, ledger.PAYMENT_CONFIRMATION, func(ctx context.Context) error {
		return p.emails.SendPaymentConfirmation(ctx, e.BookingID)
	})
}

func (p *Processor) track(ctx context.Context, event string, e *ledger.Entry) {
	if p.activity == nil {
		return
	}
	bestEffort("track "+event, p.activity.Track(ctx, event, map[string]string{
		"booking_id":         e.BookingID.String(),
		"booking_payment_id": e.ID.String(),
	}))
}

func (p *Processor) revalidate(ctx context.Context, paths ...string) {
	if p.revalidator == nil {
		return
	}
	bestEffort("revalidate", p.revalidator.Revalidate(ctx, paths...))
}
