package common

import (
	"bookpay/src/checkout"
	"bookpay/src/models"
	"bookpay/src/store"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

// Subscriptions records professional plan subscriptions bought through
// checkout and keeps plan prices current.
type Subscriptions struct {
	store *store.Store
}

func NewSubscriptions(st *store.Store) *Subscriptions {
	return &Subscriptions{store: st}
}

func (s *Subscriptions) CompleteCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	if cs.Subscription == nil || cs.Subscription.ID == "" {
		log.Printf("[Subscription] session=%s has no subscription\n", cs.ID)
		return nil
	}
	sub := &models.Subscription{
		StripeSubscriptionID: cs.Subscription.ID,
		Status:               "active",
	}
	if cs.Customer != nil {
		sub.StripeCustomerID = cs.Customer.ID
	}
	if cs.Subscription.Status != "" {
		sub.Status = string(cs.Subscription.Status)
	}
	if id, err := uuid.Parse(cs.Metadata[checkout.MetaProfessionalID]); err == nil {
		sub.ProfessionalID = &id
	}
	planID, err := s.planFor(ctx, cs.Metadata["plan_id"], cs.Subscription)
	if err != nil {
		return err
	}
	sub.PlanID = planID
	if err := s.store.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("could not save subscription %s: %w", cs.Subscription.ID, err)
	}
	log.Printf("[Subscription] session=%s subscription=%s status=%s\n", cs.ID, sub.StripeSubscriptionID, sub.Status)
	return nil
}

func (s *Subscriptions) planFor(ctx context.Context, planID string, sub *stripe.Subscription) (*uuid.UUID, error) {
	if id, err := uuid.Parse(planID); err == nil {
		return &id, nil
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return nil, nil
	}
	plan, err := s.store.GetPlanByPrice(ctx, sub.Items.Data[0].Price.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan.ID, nil
}

func (s *Subscriptions) UpdatePrice(ctx context.Context, p *stripe.Price) error {
	updated, err := s.store.UpdatePlanPrice(ctx, p.ID, p.UnitAmount, string(p.Currency))
	if err != nil {
		return err
	}
	if !updated {
		log.Printf("[Subscription] price=%s matches no plan\n", p.ID)
	}
	return nil
}
