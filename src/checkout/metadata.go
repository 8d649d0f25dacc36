package checkout

import (
	"bookpay/src/types"

	"github.com/google/uuid"
)

// Metadata keys written on sessions and intents.
const (
	MetaBookingID        = "booking_id"
	MetaBookingPaymentID = "booking_payment_id"
	MetaCustomerID       = "customer_id"
	MetaProfessionalID   = "professional_id"
	MetaChargeKind       = "charge_kind"
	MetaScenario         = "scenario"
)

func metadata(bookingID, paymentID uuid.UUID, kind types.ChargeKind) map[string]string {
	return map[string]string{
		MetaBookingID:        bookingID.String(),
		MetaBookingPaymentID: paymentID.String(),
		MetaChargeKind:       string(kind),
	}
}
