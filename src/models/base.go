package models

import "github.com/google/uuid"

// newID assigns a primary key before insert. Ids are generated in Go so the
// same models migrate on postgres and sqlite.
func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every table owned by this service, in migration order.
func All() []any {
	return []any{
		&Customer{},
		&ProfessionalProfile{},
		&Service{},
		&Booking{},
		&Appointment{},
		&BookingPayment{},
		&Setting{},
		&Conversation{},
		&Message{},
		&SupportRequest{},
		&Plan{},
		&Subscription{},
		&Refund{},
	}
}
