package lib

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v82"
)

const (
	ModePayment = "payment"
	ModeSetup   = "setup"
)

type GatewayConfig struct {
	Currency string
}

// StripeGateway is the only code that talks to the processor. Amounts are
// always minor units.
type StripeGateway struct {
	sc  *stripe.Client
	cfg GatewayConfig
}

func NewStripeGateway(sc *stripe.Client, cfg GatewayConfig) *StripeGateway {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{sc: sc, cfg: cfg}
}

type CheckoutSessionInput struct {
	Mode          string
	AmountCents   int64
	ProductName   string
	Destination   string
	TransferCents int64
	ManualCapture bool
	SaveCard      bool
	CustomerID    string
	CustomerEmail string
	SubmitMessage string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string

	IdempotencyKey string
}

type CheckoutSession struct {
	ID              string
	URL             string
	Status          string
	PaymentIntentID string
	SetupIntentID   string
}

type IntentInput struct {
	AmountCents     int64
	CustomerID      string
	PaymentMethodID string
	Destination     string
	TransferCents   int64
	ManualCapture   bool
	Description     string
	Metadata        map[string]string

	IdempotencyKey string
}

type Intent struct {
	ID               string
	Status           string
	AmountCents      int64
	AmountCapturable int64
	AmountReceived   int64
}

type RefundInput struct {
	PaymentIntentID string
	AmountCents     int64
	Reason          string
	Metadata        map[string]string

	IdempotencyKey string
}

type CustomerInput struct {
	Email    string
	Name     string
	Metadata map[string]string

	IdempotencyKey string
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	if in.Mode == ModePayment && in.AmountCents <= 0 {
		return nil, fmt.Errorf("checkout amount must be positive, got %d", in.AmountCents)
	}
	params := checkoutSessionParams(in, g.cfg.Currency)
	cs, err := g.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] CreateCheckoutSession failed: %s\n", DescribeStripeError(err))
		return nil, err
	}
	return toCheckoutSession(cs), nil
}

func (g *StripeGateway) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	cs, err := g.sc.V1CheckoutSessions.Retrieve(ctx, id, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		log.Printf("[Stripe] RetrieveCheckoutSession %s failed: %s\n", id, DescribeStripeError(err))
		return nil, err
	}
	return toCheckoutSession(cs), nil
}

func (g *StripeGateway) ExpireCheckoutSession(ctx context.Context, id string) error {
	if _, err := g.sc.V1CheckoutSessions.Expire(ctx, id, &stripe.CheckoutSessionExpireParams{}); err != nil {
		log.Printf("[Stripe] ExpireCheckoutSession %s failed: %s\n", id, DescribeStripeError(err))
		return err
	}
	return nil
}

// EnsureCustomer creates a processor customer so saved cards can be charged
// off-session later.
func (g *StripeGateway) EnsureCustomer(ctx context.Context, in CustomerInput) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email:    stripe.String(in.Email),
		Metadata: in.Metadata,
	}
	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	cus, err := g.sc.V1Customers.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] EnsureCustomer failed: %s\n", DescribeStripeError(err))
		return "", err
	}
	return cus.ID, nil
}

// CreateManualIntent places an off-session hold on a saved payment method.
func (g *StripeGateway) CreateManualIntent(ctx context.Context, in IntentInput) (*Intent, error) {
	in.ManualCapture = true
	return g.createIntent(ctx, in)
}

// CreateCharge charges a saved payment method off-session and captures it
// immediately.
func (g *StripeGateway) CreateCharge(ctx context.Context, in IntentInput) (*Intent, error) {
	in.ManualCapture = false
	return g.createIntent(ctx, in)
}

func (g *StripeGateway) createIntent(ctx context.Context, in IntentInput) (*Intent, error) {
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("intent amount must be positive, got %d", in.AmountCents)
	}
	if in.PaymentMethodID == "" {
		return nil, errors.New("no saved payment method")
	}
	pi, err := g.sc.V1PaymentIntents.Create(ctx, intentParams(in, g.cfg.Currency))
	if err != nil {
		log.Printf("[Stripe] CreatePaymentIntent failed: %s\n", DescribeStripeError(err))
		return nil, err
	}
	return toIntent(pi), nil
}

// Capture captures everything the intent authorized.
func (g *StripeGateway) Capture(ctx context.Context, intentID, idempotencyKey string) (*Intent, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	pi, err := g.sc.V1PaymentIntents.Capture(ctx, intentID, params)
	if err != nil {
		log.Printf("[Stripe] Capture %s failed: %s\n", intentID, DescribeStripeError(err))
		return nil, err
	}
	return toIntent(pi), nil
}

// PartialCapture captures amountCents of an authorization. The processor
// releases the remainder back to the payer.
func (g *StripeGateway) PartialCapture(ctx context.Context, intentID string, amountCents int64, idempotencyKey string) (*Intent, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("capture amount must be positive, got %d", amountCents)
	}
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(amountCents),
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	pi, err := g.sc.V1PaymentIntents.Capture(ctx, intentID, params)
	if err != nil {
		log.Printf("[Stripe] PartialCapture %s failed: %s\n", intentID, DescribeStripeError(err))
		return nil, err
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}
	if _, err := g.sc.V1PaymentIntents.Cancel(ctx, intentID, params); err != nil {
		log.Printf("[Stripe] CancelIntent %s failed: %s\n", intentID, DescribeStripeError(err))
		return err
	}
	return nil
}

// CreateRefund refunds a captured intent and pulls the matching share back
// from the connected account.
func (g *StripeGateway) CreateRefund(ctx context.Context, in RefundInput) (string, error) {
	r, err := g.sc.V1Refunds.Create(ctx, refundParams(in))
	if err != nil {
		log.Printf("[Stripe] CreateRefund %s failed: %s\n", in.PaymentIntentID, DescribeStripeError(err))
		return "", err
	}
	return r.ID, nil
}

func (g *StripeGateway) RetrieveAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	acc, err := g.sc.V1Accounts.GetByID(ctx, accountID, nil)
	if err != nil {
		log.Printf("[Stripe] RetrieveAccount %s failed: %s\n", accountID, DescribeStripeError(err))
		return nil, err
	}
	return acc, nil
}

func checkoutSessionParams(in CheckoutSessionInput, currency string) *stripe.CheckoutSessionCreateParams {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(in.Mode),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		Metadata:   in.Metadata,
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	if in.SubmitMessage != "" {
		params.CustomText = &stripe.CheckoutSessionCreateCustomTextParams{
			Submit: &stripe.CheckoutSessionCreateCustomTextSubmitParams{
				Message: stripe.String(in.SubmitMessage),
			},
		}
	}

	switch in.Mode {
	case ModeSetup:
		params.Currency = stripe.String(currency)
		params.SetupIntentData = &stripe.CheckoutSessionCreateSetupIntentDataParams{
			Metadata: in.Metadata,
		}
		if in.Destination != "" {
			params.SetupIntentData.OnBehalfOf = stripe.String(in.Destination)
		}
	default:
		params.LineItems = []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(in.AmountCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(in.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
		pi := &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: in.Metadata,
		}
		if in.ManualCapture {
			pi.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
		}
		if in.SaveCard {
			pi.SetupFutureUsage = stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession))
			if in.CustomerID == "" {
				params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
			}
		}
		if in.Destination != "" {
			pi.OnBehalfOf = stripe.String(in.Destination)
			if in.TransferCents > 0 {
				pi.TransferData = &stripe.CheckoutSessionCreatePaymentIntentDataTransferDataParams{
					Amount:      stripe.Int64(in.TransferCents),
					Destination: stripe.String(in.Destination),
				}
			}
		}
		params.PaymentIntentData = pi
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	return params
}

func intentParams(in IntentInput, currency string) *stripe.PaymentIntentCreateParams {
	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(in.AmountCents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(in.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		Metadata:      in.Metadata,
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.ManualCapture {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	} else {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic))
	}
	if in.Destination != "" {
		params.OnBehalfOf = stripe.String(in.Destination)
		if in.TransferCents > 0 {
			params.TransferData = &stripe.PaymentIntentCreateTransferDataParams{
				Amount:      stripe.Int64(in.TransferCents),
				Destination: stripe.String(in.Destination),
			}
		}
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	return params
}

func refundParams(in RefundInput) *stripe.RefundCreateParams {
	params := &stripe.RefundCreateParams{
		PaymentIntent:   stripe.String(in.PaymentIntentID),
		ReverseTransfer: stripe.Bool(true),
		Metadata:        in.Metadata,
	}
	if in.AmountCents > 0 {
		params.Amount = stripe.Int64(in.AmountCents)
	}
	if in.Reason != "" {
		params.Reason = stripe.String(in.Reason)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	return params
}

func toCheckoutSession(cs *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:     cs.ID,
		URL:    cs.URL,
		Status: string(cs.Status),
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.SetupIntent != nil {
		out.SetupIntentID = cs.SetupIntent.ID
	}
	return out
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:               pi.ID,
		Status:           string(pi.Status),
		AmountCents:      pi.Amount,
		AmountCapturable: pi.AmountCapturable,
		AmountReceived:   pi.AmountReceived,
	}
}

// DescribeStripeError renders processor errors with their request id and
// code so failures can be traced in the dashboard.
func DescribeStripeError(err error) string {
	if err == nil {
		return ""
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Sprintf("stripe %s (code=%s request=%s status=%d): %s", se.Type, se.Code, se.RequestID, se.HTTPStatusCode, se.Msg)
	}
	return err.Error()
}
