package payments

import "bookpay/src/types"

// statuses in lifecycle order, so derived lists are stable.
var statuses = []types.PaymentStatus{
	types.PAYMENT_PENDING,
	types.PAYMENT_AUTHORIZED,
	types.PAYMENT_COMPLETED,
	types.PAYMENT_FAILED,
	types.PAYMENT_CANCELLED,
	types.PAYMENT_REFUNDED,
}

var transitions = map[types.PaymentStatus][]types.PaymentStatus{
	types.PAYMENT_PENDING:    {types.PAYMENT_AUTHORIZED, types.PAYMENT_COMPLETED, types.PAYMENT_FAILED, types.PAYMENT_CANCELLED, types.PAYMENT_REFUNDED},
	types.PAYMENT_AUTHORIZED: {types.PAYMENT_COMPLETED, types.PAYMENT_FAILED, types.PAYMENT_CANCELLED, types.PAYMENT_REFUNDED},
	types.PAYMENT_COMPLETED:  {types.PAYMENT_REFUNDED},
}

func canTransition(from, to types.PaymentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// From lists the statuses a booking payment may move to `to` from. Statuses
// only move forward; completed may still be refunded. The ledger uses the
// result as the pre-state of its conditional updates.
func From(to types.PaymentStatus) []types.PaymentStatus {
	var from []types.PaymentStatus
	for _, s := range statuses {
		if canTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}
