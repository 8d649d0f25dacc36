package webhooks

import (
	"bookpay/src/checkout"
	"bookpay/src/store"
	"bookpay/src/types"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

func (p *Processor) onAccountUpdated(ctx context.Context, evt *stripe.Event) error {
	acct, err := decode[stripe.Account](evt)
	if err != nil {
		return err
	}
	return p.syncAccount(ctx, acct)
}

// onConnectedObjectUpdated handles capability and person changes, which do
// not carry the account's onboarding flags.
func (p *Processor) onConnectedObjectUpdated(ctx context.Context, evt *stripe.Event) error {
	accountID := evt.Account
	if accountID == "" {
		accountID = peek(evt.Data.Raw).ref("account")
	}
	if accountID == "" || p.accounts == nil {
		log.Printf("[Webhook] type=%s event=%s ignored: no account\n", evt.Type, evt.ID)
		return nil
	}
	acct, err := p.accounts.RetrieveAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("could not retrieve account %s: %w", accountID, err)
	}
	return p.syncAccount(ctx, acct)
}

func (p *Processor) syncAccount(ctx context.Context, acct *stripe.Account) error {
	profID, err := p.professionalFor(ctx, acct)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[Webhook] account=%s ignored: no professional\n", acct.ID)
		return nil
	}
	if err != nil {
		return err
	}
	status := ConnectStatus(acct)
	changed, err := p.store.UpdateConnectStatus(ctx, profID, status)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	log.Printf("[Webhook] professional=%s account=%s connect status=%s\n", profID, acct.ID, status)
	if status == types.CONNECT_COMPLETE && p.resync != nil {
		bestEffort("resync services", p.resync.ResyncServices(ctx, profID))
	}
	p.revalidate(ctx, fmt.Sprintf("/professionals/%s", profID))
	return nil
}

func (p *Processor) professionalFor(ctx context.Context, acct *stripe.Account) (uuid.UUID, error) {
	if id, err := uuid.Parse(acct.Metadata[checkout.MetaProfessionalID]); err == nil {
		return id, nil
	}
	prof, err := p.store.GetProfessionalByAccount(ctx, acct.ID)
	if err != nil {
		return uuid.Nil, err
	}
	return prof.ID, nil
}

// ConnectStatus derives onboarding completeness from an account.
func ConnectStatus(acct *stripe.Account) types.ConnectStatus {
	switch {
	case acct.ChargesEnabled && acct.PayoutsEnabled:
		return types.CONNECT_COMPLETE
	case !acct.DetailsSubmitted:
		return types.CONNECT_NOT_CONNECTED
	default:
		return types.CONNECT_PENDING
	}
}

func (p *Processor) onPriceUpdated(ctx context.Context, evt *stripe.Event) error {
	if p.subscriptions == nil {
		return nil
	}
	price, err := decode[stripe.Price](evt)
	if err != nil {
		return err
	}
	return p.subscriptions.UpdatePrice(ctx, price)
}
