package store

import (
	"bookpay/src/ledger"
	"bookpay/src/models"
	"context"

	"gorm.io/gorm/clause"
)

// UpdatePlanPrice refreshes the display price of the plan sold under priceID.
func (s *Store) UpdatePlanPrice(ctx context.Context, priceID string, unitCents int64, currency string) (bool, error) {
	values := map[string]any{"price": ledger.FromCents(unitCents)}
	if currency != "" {
		values["currency"] = currency
	}
	res := s.db.WithContext(ctx).
		Model(&models.Plan{}).
		Where("stripe_price_id = ?", priceID).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "stripe_customer_id", "plan_id", "professional_id", "updated_at"}),
		}).
		Create(sub).
		Error
}

func (s *Store) UpsertRefund(ctx context.Context, r *models.Refund) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_refund_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "amount", "failure_reason", "booking_payment_id", "updated_at"}),
		}).
		Create(r).
		Error
}

func (s *Store) GetRefund(ctx context.Context, stripeRefundID string) (*models.Refund, error) {
	var r models.Refund
	if err := s.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("stripe_refund_id = ?", stripeRefundID).
		First(&r).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *Store) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *Store) GetPlanByPrice(ctx context.Context, priceID string) (*models.Plan, error) {
	var p models.Plan
	if err := s.db.WithContext(ctx).
		Model(&models.Plan{}).
		Where("stripe_price_id = ?", priceID).
		First(&p).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
