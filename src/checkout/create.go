package checkout

import (
	"bookpay/src/ledger"
	"bookpay/src/lib"
	"bookpay/src/models"
	"bookpay/src/payments"
	"bookpay/src/store"
	"bookpay/src/types"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

type CreatePaymentInput struct {
	BookingID  uuid.UUID
	CustomerID uuid.UUID
	Method     types.PaymentMethod
	TipCents   int64
}

// CreateBookingPayment opens the checkout for a freshly created booking and
// writes its payment record. Errors come back in the result.
func (s *Service) CreateBookingPayment(ctx context.Context, in CreatePaymentInput) (res types.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Checkout] booking=%s panic=%v\n", in.BookingID, r)
			res = types.Fail(errors.New("could not create checkout"))
		}
	}()
	res, err := s.createBookingPayment(ctx, in)
	if err != nil {
		log.Printf("[Checkout] booking=%s error=%s\n", in.BookingID, err.Error())
		return types.Fail(err)
	}
	return res
}

func (s *Service) createBookingPayment(ctx context.Context, in CreatePaymentInput) (types.Result, error) {
	if in.TipCents < 0 {
		return types.Result{}, ErrInvalidAmount
	}
	b, err := s.store.GetBooking(ctx, in.BookingID)
	if errors.Is(err, store.ErrNotFound) {
		return types.Result{}, fmt.Errorf("booking %s not found", in.BookingID)
	}
	if err != nil {
		return types.Result{}, err
	}
	if b.CustomerID != in.CustomerID {
		return types.Result{}, ErrForbidden
	}

	existing, err := s.ledger.GetByBookingID(ctx, b.ID)
	switch {
	case err == nil:
		return s.resume(ctx, existing)
	case !errors.Is(err, ledger.ErrNotFound):
		return types.Result{}, err
	}
	if b.Status != types.BOOKING_PENDING_PAYMENT {
		return types.Result{}, ErrBookingNotPending
	}

	prof := b.Professional
	if prof == nil || prof.StripeAccountID == nil || *prof.StripeAccountID == "" {
		return types.Result{}, ErrNotConnected
	}
	if prof.StripeConnectStatus != types.CONNECT_COMPLETE {
		return types.Result{}, ErrOnboardingIncomplete
	}

	method := in.Method
	if method == "" {
		method = b.PaymentMethod
	}
	if method != types.METHOD_ONLINE && method != types.METHOD_OFFLINE {
		return types.Result{}, fmt.Errorf("unknown payment method %q", method)
	}

	fee, err := s.store.ServiceFeeCents(ctx, s.cfg.ServiceFee)
	if err != nil {
		return types.Result{}, err
	}
	total := ledger.ToCents(b.TotalPrice) + in.TipCents
	if total <= 0 || total < fee {
		return types.Result{}, ErrInvalidAmount
	}

	split := payments.Calculate(payments.CalculatorInput{
		TotalCents:      total,
		TipCents:        in.TipCents,
		ServiceFeeCents: fee,
		Policy: payments.DepositPolicy{
			Required: prof.RequiresDeposit,
			Type:     prof.DepositType,
			Value:    prof.DepositValue,
		},
	})
	sched := payments.PlanSchedule(b.Appointment.StartTime, b.Appointment.EndTime, s.now())
	sp := buildPlan(b, method, split, sched, uuid.New(), s.cfg.AppHost)

	if method != b.PaymentMethod {
		if err := s.store.SetBookingPaymentMethod(ctx, b.ID, method); err != nil {
			return types.Result{}, err
		}
	}
	customerID, err := s.ensureCustomer(ctx, b)
	if err != nil {
		return types.Result{}, err
	}
	sp.session.CustomerID = customerID
	sp.plan.CustomerID = customerID

	pctx, cancel := s.processorCtx(ctx)
	cs, err := s.gw.CreateCheckoutSession(pctx, sp.session)
	cancel()
	if err != nil {
		return types.Result{}, fmt.Errorf("could not create checkout session: %s", lib.DescribeStripeError(err))
	}

	sp.plan.CheckoutSessionID = cs.ID
	if _, err := s.ledger.Create(ctx, sp.plan); err != nil {
		bestEffort("expire checkout session "+cs.ID, s.gw.ExpireCheckoutSession(ctx, cs.ID))
		return types.Result{}, err
	}
	log.Printf("[Checkout] booking=%s scenario=%s session=%s amount=%d\n", b.ID, sp.scenario, cs.ID, sp.plan.AmountCents)
	return types.Result{
		Success:   true,
		URL:       cs.URL,
		SessionID: cs.ID,
		Scenario:  sp.scenario,
	}, nil
}

// resume hands back the open session of a checkout that was started but not
// finished.
func (s *Service) resume(ctx context.Context, e *ledger.Entry) (types.Result, error) {
	unpaid := e.Status == types.PAYMENT_PENDING &&
		e.CheckoutSessionID != "" &&
		e.PaymentIntentID == "" &&
		e.PaymentMethodID == "" &&
		e.DepositPaidAt == nil
	if !unpaid {
		return types.Result{}, ErrAlreadyPaid
	}
	url, err := s.CheckoutURL(ctx, e.CheckoutSessionID)
	if err != nil {
		return types.Result{}, err
	}
	return types.Result{Success: true, URL: url, SessionID: e.CheckoutSessionID}, nil
}

// CheckoutURL returns the URL of a session that can still be completed.
func (s *Service) CheckoutURL(ctx context.Context, sessionID string) (string, error) {
	pctx, cancel := s.processorCtx(ctx)
	defer cancel()
	cs, err := s.gw.RetrieveCheckoutSession(pctx, sessionID)
	if err != nil {
		return "", err
	}
	if cs.Status != "open" || cs.URL == "" {
		return "", ErrSessionClosed
	}
	return cs.URL, nil
}

func (s *Service) ensureCustomer(ctx context.Context, b *models.Booking) (string, error) {
	c := b.Customer
	if c == nil {
		return "", nil
	}
	if c.StripeCustomerID != nil && *c.StripeCustomerID != "" {
		return *c.StripeCustomerID, nil
	}
	pctx, cancel := s.processorCtx(ctx)
	defer cancel()
	id, err := s.gw.EnsureCustomer(pctx, lib.CustomerInput{
		Email:          c.Email,
		Name:           c.Name,
		Metadata:       map[string]string{MetaCustomerID: c.ID.String()},
		IdempotencyKey: "customer:" + c.ID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("could not create processor customer: %s", lib.DescribeStripeError(err))
	}
	if err := s.store.SetStripeCustomerID(ctx, c.ID, id); err != nil {
		return "", err
	}
	return id, nil
}

type scenarioPlan struct {
	scenario types.Scenario
	plan     ledger.Plan
	session  lib.CheckoutSessionInput
}

// buildPlan decides the scenario and derives both the ledger record and the
// checkout session from one split and one schedule.
func buildPlan(b *models.Booking, method types.PaymentMethod, split payments.Split, sched payments.Schedule, paymentID uuid.UUID, appHost string) scenarioPlan {
	acct := *b.Professional.StripeAccountID
	cash := method == types.METHOD_OFFLINE
	capture := sched.CaptureAt

	sp := scenarioPlan{
		plan: ledger.Plan{
			ID:                  paymentID,
			BookingID:           b.ID,
			ServiceFeeCents:     split.ServiceFeeCents,
			TipCents:            split.TipCents,
			CaptureScheduledFor: &capture,
		},
		session: lib.CheckoutSessionInput{
			Destination:    acct,
			SuccessURL:     fmt.Sprintf("%s/bookings/%s/confirmation?session_id={CHECKOUT_SESSION_ID}", appHost, b.ID),
			CancelURL:      fmt.Sprintf("%s/bookings/%s/checkout?canceled=1", appHost, b.ID),
			IdempotencyKey: "checkout:" + paymentID.String(),
		},
	}
	if b.Customer != nil {
		sp.session.CustomerEmail = b.Customer.Email
	}
	msg := payments.MessageInput{
		FarTerm:       sched.IsFarTerm(),
		Method:        method,
		HasDeposit:    split.RequiresDeposit,
		DepositCents:  split.DepositCents,
		BalanceCents:  split.BalanceCents,
		InPersonCents: split.InPersonCents(),
		PreAuthAt:     sched.PreAuthAt,
		AppointmentAt: b.Appointment.StartTime,
	}

	charge := split.TotalCents
	if cash {
		charge = split.ServiceFeeCents
	}
	kind := types.CHARGE_BOOKING

	switch {
	case split.RequiresDeposit:
		sp.scenario = types.SCENARIO_DEPOSIT
		kind = types.CHARGE_DEPOSIT
		processorBalance := !cash && split.RequiresBalancePayment
		sp.plan.AmountCents = split.DepositCents
		sp.plan.DepositCents = split.DepositCents
		sp.plan.BalanceCents = split.BalanceCents
		sp.plan.RequiresBalance = split.RequiresBalancePayment
		sp.plan.PaymentType = types.PAYMENT_TYPE_DEPOSIT
		sp.plan.CaptureMethod = types.CAPTURE_AUTOMATIC
		switch {
		case processorBalance && sched.IsFarTerm():
			preAuth := sched.PreAuthAt
			sp.plan.PreAuthScheduledFor = &preAuth
		case processorBalance:
			sp.plan.HoldBalanceOnDeposit = true
		}
		sp.session.Mode = lib.ModePayment
		sp.session.AmountCents = split.DepositCents
		sp.session.ProductName = "Booking deposit"
		sp.session.TransferCents = payments.Transfer(split.DepositCents, split.ServiceFeeCents)
		sp.session.SaveCard = processorBalance
		msg.ChargeCents = split.DepositCents

	case sched.IsFarTerm():
		sp.scenario = types.SCENARIO_SETUP
		preAuth := sched.PreAuthAt
		sp.plan.AmountCents = charge
		sp.plan.PaymentType = types.PAYMENT_TYPE_FULL
		sp.plan.CaptureMethod = types.CAPTURE_MANUAL
		sp.plan.PreAuthScheduledFor = &preAuth
		sp.session.Mode = lib.ModeSetup
		msg.ChargeCents = charge

	default:
		sp.scenario = types.SCENARIO_MANUAL_HOLD
		sp.plan.AmountCents = charge
		sp.plan.PaymentType = types.PAYMENT_TYPE_FULL
		sp.plan.CaptureMethod = types.CAPTURE_MANUAL
		sp.session.Mode = lib.ModePayment
		sp.session.AmountCents = charge
		sp.session.ManualCapture = true
		sp.session.SaveCard = true
		if cash {
			sp.session.ProductName = "Service fee"
			sp.session.Destination = ""
		} else {
			sp.session.ProductName = "Booking"
			sp.session.TransferCents = payments.Transfer(charge, split.ServiceFeeCents)
		}
		msg.ChargeCents = charge
	}

	if !split.RequiresDeposit {
		if cash {
			sp.plan.BalanceCents = split.InPersonCents()
		} else {
			sp.plan.BalanceCents = split.BalanceCents
		}
		sp.plan.RequiresBalance = sp.plan.BalanceCents > 0
	}

	meta := metadata(b.ID, paymentID, kind)
	meta[MetaCustomerID] = b.CustomerID.String()
	meta[MetaProfessionalID] = b.ProfessionalID.String()
	meta[MetaScenario] = string(sp.scenario)
	sp.session.Metadata = meta
	sp.session.SubmitMessage = payments.SubmitMessage(msg)
	return sp
}
