package payments

import (
	"bookpay/src/types"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type MessageInput struct {
	FarTerm       bool
	Method        types.PaymentMethod
	HasDeposit    bool
	ChargeCents   int64
	DepositCents  int64
	BalanceCents  int64
	InPersonCents int64
	PreAuthAt     time.Time
	AppointmentAt time.Time
}

// SubmitMessage is the text shown under the checkout button. It tells the
// client what is charged now and what happens later.
func SubmitMessage(in MessageInput) string {
	appt := in.AppointmentAt.UTC().Format("Mon, Jan 2")
	hold := in.PreAuthAt.UTC().Format("Mon, Jan 2")
	cash := in.Method == types.METHOD_OFFLINE

	switch {
	case in.HasDeposit && cash && in.FarTerm:
		return fmt.Sprintf("You pay a %s deposit today. The remaining %s is paid in person at your appointment on %s.",
			money(in.DepositCents), money(in.BalanceCents), appt)
	case in.HasDeposit && cash:
		return fmt.Sprintf("You pay a %s deposit today. Bring %s to pay in person at your appointment.",
			money(in.DepositCents), money(in.BalanceCents))
	case in.HasDeposit && in.FarTerm:
		return fmt.Sprintf("You pay a %s deposit today and your card is saved. We place a hold for the remaining %s on %s and charge it after your appointment.",
			money(in.DepositCents), money(in.BalanceCents), hold)
	case in.HasDeposit:
		return fmt.Sprintf("You pay a %s deposit today and your card is saved. The remaining %s is held shortly and charged after your appointment.",
			money(in.DepositCents), money(in.BalanceCents))
	case cash && in.FarTerm:
		return fmt.Sprintf("Nothing is charged today. We save your card and hold the %s service fee on %s. Pay %s in person at your appointment.",
			money(in.ChargeCents), hold, money(in.InPersonCents))
	case cash:
		return fmt.Sprintf("We hold the %s service fee on your card now. Pay %s in person at your appointment.",
			money(in.ChargeCents), money(in.InPersonCents))
	case in.FarTerm:
		return fmt.Sprintf("Nothing is charged today. We save your card, place a hold of %s on %s and charge it after your appointment on %s.",
			money(in.ChargeCents), hold, appt)
	default:
		return fmt.Sprintf("We place a hold of %s on your card now. You are only charged after your appointment on %s.",
			money(in.ChargeCents), appt)
	}
}

func money(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}
