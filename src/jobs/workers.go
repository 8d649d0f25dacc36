package jobs

import (
	"bookpay/src/checkout"
	"bookpay/src/ledger"
	"bookpay/src/lib"
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Payments is what the workers drive for every due row.
type Payments interface {
	PlaceHold(ctx context.Context, paymentID uuid.UUID) error
	Capture(ctx context.Context, paymentID uuid.UUID) error
}

// Workers place due pre-authorizations and capture held payments once the
// appointment is over.
type Workers struct {
	ledger    *ledger.Ledger
	payments  Payments
	batchSize int
	now       func() time.Time
}

// BatchResult counts what one run did. Failed rows are retried next run.
type BatchResult struct {
	Due       int
	Processed int
	Failed    int
}

func New(l *ledger.Ledger, payments Payments, batchSize int) *Workers {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Workers{ledger: l, payments: payments, batchSize: batchSize, now: time.Now}
}

func (w *Workers) RunPreAuth(ctx context.Context) (BatchResult, error) {
	due, err := w.ledger.DuePreAuthorizations(ctx, w.now(), w.batchSize)
	if err != nil {
		log.Printf("[PreAuth] Error listing due payments: %s\n", err.Error())
		return BatchResult{}, err
	}
	return w.each(ctx, "PreAuth", due, w.payments.PlaceHold), nil
}

func (w *Workers) RunCapture(ctx context.Context) (BatchResult, error) {
	due, err := w.ledger.DueCaptures(ctx, w.now(), w.batchSize)
	if err != nil {
		log.Printf("[Capture] Error listing due payments: %s\n", err.Error())
		return BatchResult{}, err
	}
	return w.each(ctx, "Capture", due, w.payments.Capture), nil
}

func (w *Workers) each(ctx context.Context, tag string, due []*ledger.Entry, fn func(context.Context, uuid.UUID) error) BatchResult {
	res := BatchResult{Due: len(due)}
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		// another process may have captured the row since it was listed
		if err := fn(ctx, e.ID); err != nil && !errors.Is(err, checkout.ErrAlreadyCaptured) {
			res.Failed++
			log.Printf("[%s] payment=%s booking=%s error=%s\n", tag, e.ID, e.BookingID, err.Error())
			continue
		}
		res.Processed++
	}
	if res.Due > 0 {
		log.Printf("[%s] due=%d processed=%d failed=%d\n", tag, res.Due, res.Processed, res.Failed)
	}
	return res
}

// Register schedules both workers. Runs of the same worker never overlap
// within a process.
func Register(s gocron.Scheduler, w *Workers, interval time.Duration) error {
	if _, err := lib.CreateCronJob(s, "pre-authorizations", interval, func() {
		w.RunPreAuth(context.Background())
	}); err != nil {
		return err
	}
	if _, err := lib.CreateCronJob(s, "captures", interval, func() {
		w.RunCapture(context.Background())
	}); err != nil {
		return err
	}
	return nil
}
