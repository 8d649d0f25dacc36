package payments

import (
	"bookpay/src/types"

	"github.com/shopspring/decimal"
)

// MinimumDepositCents is the smallest deposit ever requested, before the
// service fee is added.
const MinimumDepositCents int64 = 100

type DepositPolicy struct {
	Required bool
	Type     types.DepositType
	// Value is a percentage for DEPOSIT_PERCENTAGE and currency units for
	// DEPOSIT_FIXED.
	Value decimal.Decimal
}

type CalculatorInput struct {
	TotalCents      int64
	TipCents        int64
	ServiceFeeCents int64
	Policy          DepositPolicy
}

// Split is the outcome of a payment calculation, in minor units.
type Split struct {
	TotalCents       int64
	ServiceFeeCents  int64
	TipCents         int64
	ServiceCents     int64
	DepositCents     int64
	DepositBaseCents int64
	BalanceCents     int64

	RequiresDeposit        bool
	RequiresBalancePayment bool
	IsFullPayment          bool
}

// Calculate splits a booking total into deposit and balance. The service fee
// is folded into the deposit; the balance is what remains of the total after
// the fee-less part of the deposit.
func Calculate(in CalculatorInput) Split {
	s := Split{
		TotalCents:      in.TotalCents,
		ServiceFeeCents: in.ServiceFeeCents,
		TipCents:        in.TipCents,
		ServiceCents:    in.TotalCents - in.ServiceFeeCents - in.TipCents,
	}
	if s.ServiceCents < 0 {
		s.ServiceCents = 0
	}

	if !in.Policy.Required || in.Policy.Value.IsZero() {
		s.BalanceCents = in.TotalCents
		s.IsFullPayment = true
		s.RequiresBalancePayment = s.BalanceCents > 0
		return s
	}

	var base int64
	switch in.Policy.Type {
	case types.DEPOSIT_FIXED:
		base = in.Policy.Value.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	default:
		base = decimal.NewFromInt(s.ServiceCents).
			Mul(in.Policy.Value).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	}
	if base < MinimumDepositCents {
		base = MinimumDepositCents
	}
	if base > s.ServiceCents {
		base = s.ServiceCents
	}

	s.RequiresDeposit = true
	s.DepositBaseCents = base
	s.DepositCents = base + in.ServiceFeeCents
	s.BalanceCents = in.TotalCents - base
	s.RequiresBalancePayment = s.BalanceCents > 0
	s.IsFullPayment = base >= s.ServiceCents
	return s
}

// InPersonCents is what a cash client still owes the professional directly.
func (s Split) InPersonCents() int64 {
	v := s.TotalCents - s.ServiceFeeCents
	if v < 0 {
		return 0
	}
	return v
}

// Transfer returns the part of a charge that belongs to the professional,
// given how much of the charge is the platform fee.
func Transfer(chargeCents, feePortionCents int64) int64 {
	v := chargeCents - feePortionCents
	if v < 0 {
		return 0
	}
	return v
}
