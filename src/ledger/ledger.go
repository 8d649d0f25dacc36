package ledger

import (
	"bookpay/src/models"
	"bookpay/src/models/scopes"
	"bookpay/src/payments"
	"bookpay/src/types"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("booking payment not found")
	ErrDuplicate = errors.New("booking already has a payment record")
)

// Notification names a once-only email guarded by a *_sent_at column.
type Notification string

const (
	BOOKING_CONFIRMATION Notification = "booking_confirmation_sent_at"
	PAYMENT_CONFIRMATION Notification = "payment_confirmation_sent_at"
	BALANCE_NOTIFICATION Notification = "balance_notification_sent_at"
)

// RefundPart names the column holding the refunded total of one charge.
// The balance part covers the entry's own intent, whatever its payment type.
type RefundPart string

const (
	REFUND_DEPOSIT RefundPart = "deposit_refunded_amount"
	REFUND_BALANCE RefundPart = "balance_refunded_amount"
)

// Ledger persists booking payments. Every state change is a single
// conditional UPDATE whose pre-state is part of the WHERE clause, so
// concurrent writers race on the row and exactly one of them wins.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

type Authorization struct {
	PaymentIntentID string
	PaymentMethodID string
	AmountCents     int64
	At              time.Time
	ExpiresAt       time.Time
}

type DepositPayment struct {
	PaymentIntentID string
	PaymentMethodID string
	CustomerID      string
	At              time.Time
}

type PaymentMethod struct {
	PaymentMethodID string
	CustomerID      string
	SetupIntentID   string
}

func (l *Ledger) Create(ctx context.Context, plan Plan) (*Entry, error) {
	m := plan.toModel()
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.
			Model(&models.BookingPayment{}).
			Scopes(scopes.WithBookingID(plan.BookingID)).
			Count(&count).
			Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return fromModel(m), nil
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return l.first(ctx, scopes.WithID(id))
}

func (l *Ledger) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Entry, error) {
	return l.first(ctx, scopes.WithBookingID(bookingID))
}

// GetByPaymentIntentID matches the current intent or the deposit intent.
func (l *Ledger) GetByPaymentIntentID(ctx context.Context, pi string) (*Entry, error) {
	if pi == "" {
		return nil, ErrNotFound
	}
	return l.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("stripe_payment_intent_id = ? OR deposit_payment_intent_id = ?", pi, pi)
	})
}

func (l *Ledger) GetByCheckoutSessionID(ctx context.Context, cs string) (*Entry, error) {
	if cs == "" {
		return nil, ErrNotFound
	}
	return l.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("stripe_checkout_session_id = ?", cs)
	})
}

func (l *Ledger) GetBySetupIntentID(ctx context.Context, si string) (*Entry, error) {
	if si == "" {
		return nil, ErrNotFound
	}
	return l.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("stripe_setup_intent_id = ?", si)
	})
}

func (l *Ledger) first(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*Entry, error) {
	var m models.BookingPayment
	err := l.db.WithContext(ctx).
		Model(&models.BookingPayment{}).
		Scopes(scope).
		First(&m).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromModel(&m), nil
}

// MarkAuthorized moves a pending entry to authorized once a hold exists.
func (l *Ledger) MarkAuthorized(ctx context.Context, id uuid.UUID, a Authorization) (bool, error) {
	values := map[string]any{
		"status":                   string(types.PAYMENT_AUTHORIZED),
		"stripe_payment_intent_id": a.PaymentIntentID,
		"authorized_amount":        FromCents(a.AmountCents),
		"pre_auth_placed_at":       a.At.UTC(),
		"authorization_expires_at": a.ExpiresAt.UTC(),
	}
	if a.PaymentMethodID != "" {
		values["stripe_payment_method_id"] = a.PaymentMethodID
	}
	return l.update(ctx, id, values, into(types.PAYMENT_AUTHORIZED))
}

// MarkCaptured completes an entry. It applies at most once.
func (l *Ledger) MarkCaptured(ctx context.Context, id uuid.UUID, pi string, at time.Time) (bool, error) {
	values := map[string]any{
		"status":      string(types.PAYMENT_COMPLETED),
		"captured_at": at.UTC(),
	}
	if pi != "" {
		values["stripe_payment_intent_id"] = pi
	}
	return l.update(ctx, id, values,
		into(types.PAYMENT_COMPLETED),
		scopes.WithNull("captured_at"),
	)
}

// MarkDepositPaid records the deposit and turns the entry into the balance
// phase: the outstanding amount becomes the balance and the deposit intent
// is kept apart from the intent that will hold the balance.
func (l *Ledger) MarkDepositPaid(ctx context.Context, id uuid.UUID, d DepositPayment) (bool, error) {
	values := map[string]any{
		"deposit_paid_at":           d.At.UTC(),
		"deposit_payment_intent_id": d.PaymentIntentID,
		"stripe_payment_intent_id":  gorm.Expr("NULL"),
		"payment_type":              string(types.PAYMENT_TYPE_BALANCE),
		"amount":                    gorm.Expr("balance_amount"),
	}
	if d.PaymentMethodID != "" {
		values["stripe_payment_method_id"] = d.PaymentMethodID
	}
	if d.CustomerID != "" {
		values["stripe_customer_id"] = d.CustomerID
	}
	return l.update(ctx, id, values,
		scopes.WithStatusIn(types.PAYMENT_PENDING),
		scopes.WithNull("deposit_paid_at"),
		func(db *gorm.DB) *gorm.DB {
			return db.Where("payment_type = ?", string(types.PAYMENT_TYPE_DEPOSIT))
		},
	)
}

func (l *Ledger) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return l.update(ctx, id, map[string]any{
		"status": string(types.PAYMENT_FAILED),
	}, into(types.PAYMENT_FAILED))
}

func (l *Ledger) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return l.update(ctx, id, map[string]any{
		"status": string(types.PAYMENT_CANCELLED),
	}, into(types.PAYMENT_CANCELLED))
}

// RecordChargeRefund stores the refunded total the processor reports for
// one charge of the entry and moves the entry to refunded. Each charge's
// total only ever rises and refunded_amount is their sum. moved reports
// whether this call made the move to refunded.
func (l *Ledger) RecordChargeRefund(ctx context.Context, id uuid.UUID, part RefundPart, refundedCents int64, at time.Time) (moved bool, err error) {
	other := REFUND_BALANCE
	switch part {
	case REFUND_DEPOSIT:
	case REFUND_BALANCE:
		other = REFUND_DEPOSIT
	default:
		return false, fmt.Errorf("unknown refund part %q", part)
	}
	amount := FromCents(refundedCents)
	refundable := append(payments.From(types.PAYMENT_REFUNDED), types.PAYMENT_REFUNDED)

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tl := New(tx)
		if _, err := tl.update(ctx, id, map[string]any{
			string(part):      amount,
			"refunded_amount": gorm.Expr(string(other)+" + ?", amount),
		}, scopes.WithStatusIn(refundable...), func(db *gorm.DB) *gorm.DB {
			return db.Where(string(part)+" < ?", amount)
		}); err != nil {
			return err
		}
		moved, err = tl.update(ctx, id, map[string]any{
			"status":      string(types.PAYMENT_REFUNDED),
			"refunded_at": at.UTC(),
		}, into(types.PAYMENT_REFUNDED))
		return err
	})
	return moved, err
}

func (l *Ledger) SavePaymentMethod(ctx context.Context, id uuid.UUID, pm PaymentMethod) (bool, error) {
	values := map[string]any{}
	if pm.PaymentMethodID != "" {
		values["stripe_payment_method_id"] = pm.PaymentMethodID
	}
	if pm.CustomerID != "" {
		values["stripe_customer_id"] = pm.CustomerID
	}
	if pm.SetupIntentID != "" {
		values["stripe_setup_intent_id"] = pm.SetupIntentID
	}
	if len(values) == 0 {
		return false, nil
	}
	return l.update(ctx, id, values, scopes.WithStatusIn(types.PAYMENT_PENDING, types.PAYMENT_AUTHORIZED))
}

// AttachPaymentIntent fills stripe_payment_intent_id when it is still empty.
func (l *Ledger) AttachPaymentIntent(ctx context.Context, id uuid.UUID, pi string) (bool, error) {
	return l.update(ctx, id, map[string]any{
		"stripe_payment_intent_id": pi,
	}, scopes.WithStatusIn(types.PAYMENT_PENDING), scopes.WithNull("stripe_payment_intent_id"))
}

func (l *Ledger) RecordRefundRequest(ctx context.Context, id uuid.UUID, refundID, reason string) (bool, error) {
	values := map[string]any{
		"refund_transaction_id": refundID,
	}
	if reason != "" {
		values["refund_reason"] = reason
	}
	return l.update(ctx, id, values, scopes.WithStatusIn(types.PAYMENT_COMPLETED, types.PAYMENT_REFUNDED))
}

func (l *Ledger) AddTip(ctx context.Context, id uuid.UUID, tipCents int64) (bool, error) {
	if tipCents <= 0 {
		return false, fmt.Errorf("tip must be positive: %d", tipCents)
	}
	return l.update(ctx, id, map[string]any{
		"tip_amount": gorm.Expr("tip_amount + ?", FromCents(tipCents)),
	}, scopes.WithStatusIn(types.PAYMENT_AUTHORIZED, types.PAYMENT_COMPLETED))
}

func validNotification(n Notification) error {
	switch n {
	case BOOKING_CONFIRMATION, PAYMENT_CONFIRMATION, BALANCE_NOTIFICATION:
		return nil
	}
	return fmt.Errorf("unknown notification %q", n)
}

// ClaimNotification sets the notification's sent-at column if it is still
// empty. Only the caller that gets true may send the email.
func (l *Ledger) ClaimNotification(ctx context.Context, id uuid.UUID, n Notification, at time.Time) (bool, error) {
	if err := validNotification(n); err != nil {
		return false, err
	}
	return l.update(ctx, id, map[string]any{
		string(n): at.UTC(),
	}, scopes.WithNull(string(n)))
}

// ReleaseNotification clears a claim whose email could not be sent so a
// later delivery may claim it again.
func (l *Ledger) ReleaseNotification(ctx context.Context, id uuid.UUID, n Notification) (bool, error) {
	if err := validNotification(n); err != nil {
		return false, err
	}
	return l.update(ctx, id, map[string]any{
		string(n): gorm.Expr("NULL"),
	}, func(db *gorm.DB) *gorm.DB {
		return db.Where(string(n) + " IS NOT NULL")
	})
}

// DuePreAuthorizations lists pending entries whose hold should be placed by now
// and that already have a saved card. Balances held right after their deposit
// are always due, so a hold that failed then is retried.
func (l *Ledger) DuePreAuthorizations(ctx context.Context, now time.Time, limit int) ([]*Entry, error) {
	return l.list(ctx, limit, "pre_auth_scheduled_for", func(db *gorm.DB) *gorm.DB {
		return db.
			Scopes(scopes.WithStatusIn(types.PAYMENT_PENDING), scopes.WithNull("pre_auth_placed_at")).
			Where("(pre_auth_scheduled_for <= ? OR hold_balance_on_deposit = ?)", now.UTC(), true).
			Where("stripe_payment_method_id IS NOT NULL").
			Where("payment_type <> ?", string(types.PAYMENT_TYPE_DEPOSIT))
	})
}

// DueCaptures lists authorized entries whose capture time has passed.
func (l *Ledger) DueCaptures(ctx context.Context, now time.Time, limit int) ([]*Entry, error) {
	return l.list(ctx, limit, "capture_scheduled_for", func(db *gorm.DB) *gorm.DB {
		return db.
			Scopes(scopes.WithStatusIn(types.PAYMENT_AUTHORIZED), scopes.WithNull("captured_at")).
			Where("capture_scheduled_for <= ?", now.UTC()).
			Where("stripe_payment_intent_id IS NOT NULL")
	})
}

func (l *Ledger) list(ctx context.Context, limit int, order string, scope func(*gorm.DB) *gorm.DB) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.BookingPayment
	if err := l.db.WithContext(ctx).
		Model(&models.BookingPayment{}).
		Scopes(scope).
		Order(order + " asc").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, fromModel(&rows[i]))
	}
	return entries, nil
}

func (l *Ledger) update(ctx context.Context, id uuid.UUID, values map[string]any, conds ...func(*gorm.DB) *gorm.DB) (bool, error) {
	res := l.db.WithContext(ctx).
		Model(&models.BookingPayment{}).
		Scopes(scopes.WithID(id)).
		Scopes(conds...).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// into is the pre-state of a move to status.
func into(status types.PaymentStatus) func(*gorm.DB) *gorm.DB {
	return scopes.WithStatusIn(payments.From(status)...)
}
