package common

import (
	"bookpay/src/ledger"
	"bookpay/src/lib"
	"bookpay/src/lib/mailer"
	"bookpay/src/models"
	"bookpay/src/store"
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const dateLayout = "Mon, Jan 2 2006 at 3:04 PM MST"

// BookingMailer sends the booking emails to both sides of a booking. The
// client and professional messages go out concurrently and one failing does
// not stop the other.
type BookingMailer struct {
	store   *store.Store
	ledger  *ledger.Ledger
	mailer  mailer.Mailer
	appHost string
}

func NewBookingMailer(st *store.Store, l *ledger.Ledger, m mailer.Mailer, appHost string) *BookingMailer {
	return &BookingMailer{store: st, ledger: l, mailer: m, appHost: strings.TrimRight(appHost, "/")}
}

func (m *BookingMailer) SendBookingConfirmation(ctx context.Context, bookingID uuid.UUID, uncaptured bool) error {
	b, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	when := b.Appointment.StartTime.Format(dateLayout)
	clientBody := fmt.Sprintf("<p>Your booking with %s on %s is confirmed.</p>", professionalName(b), when)
	if uncaptured {
		clientBody += "<p>Your card has been authorized. You will only be charged after the appointment.</p>"
	}
	clientBody += m.link(b.ID)
	return m.sendBoth(ctx, b,
		&lib.SendMailInput{Subject: "Booking confirmed", Body: clientBody, Html: true},
		&lib.SendMailInput{
			Subject: "New booking",
			Body:    fmt.Sprintf("<p>%s booked you for %s.</p>%s", customerName(b), when, m.link(b.ID)),
			Html:    true,
		},
	)
}

func (m *BookingMailer) SendPaymentConfirmation(ctx context.Context, bookingID uuid.UUID) error {
	b, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	e, err := m.ledger.GetByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}
	amount, what := e.AmountCents, "payment"
	if e.DepositPaidAt != nil && e.CapturedAt == nil {
		amount, what = e.DepositCents, "deposit"
	}
	paid := "$" + ledger.FromCents(amount).StringFixed(2)
	return m.sendBoth(ctx, b,
		&lib.SendMailInput{
			Subject: "Payment received",
			Body:    fmt.Sprintf("<p>We received your %s of %s for your booking with %s.</p>%s", what, paid, professionalName(b), m.link(b.ID)),
			Html:    true,
		},
		&lib.SendMailInput{
			Subject: "Payment received",
			Body:    fmt.Sprintf("<p>%s paid a %s of %s.</p>%s", customerName(b), what, paid, m.link(b.ID)),
			Html:    true,
		},
	)
}

// SendBalanceNotification tells the client a hold was placed for the rest of
// the price. Only the client is emailed.
func (m *BookingMailer) SendBalanceNotification(ctx context.Context, bookingID uuid.UUID) error {
	b, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	e, err := m.ledger.GetByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Customer == nil || b.Customer.Email == "" {
		return fmt.Errorf("booking %s has no customer email", bookingID)
	}
	return m.mailer.Send(ctx, &lib.SendMailInput{
		To:      []string{b.Customer.Email},
		Subject: "Upcoming appointment: card authorized",
		Body: fmt.Sprintf("<p>We placed a hold of $%s on your card for your appointment on %s. It is charged after the appointment.</p>%s",
			ledger.FromCents(e.AuthorizedCents).StringFixed(2),
			b.Appointment.StartTime.Format(dateLayout),
			m.link(b.ID)),
		Html: true,
	})
}

func (m *BookingMailer) sendBoth(ctx context.Context, b *models.Booking, client, professional *lib.SendMailInput) error {
	var g errgroup.Group
	if b.Customer != nil && b.Customer.Email != "" {
		client.To = []string{b.Customer.Email}
		g.Go(func() error { return m.send(ctx, b.ID, client) })
	}
	if b.Professional != nil && b.Professional.Email != "" {
		professional.To = []string{b.Professional.Email}
		g.Go(func() error { return m.send(ctx, b.ID, professional) })
	}
	return g.Wait()
}

func (m *BookingMailer) send(ctx context.Context, bookingID uuid.UUID, input *lib.SendMailInput) error {
	if err := m.mailer.Send(ctx, input); err != nil {
		log.Printf("[Mail] booking=%s to=%s subject=%q error=%s\n", bookingID, strings.Join(input.To, ","), input.Subject, err.Error())
		return err
	}
	return nil
}

func (m *BookingMailer) link(bookingID uuid.UUID) string {
	url := fmt.Sprintf("%s/bookings/%s", m.appHost, bookingID)
	return fmt.Sprintf(`<p><a href="%s">View booking</a></p>`, url)
}

func customerName(b *models.Booking) string {
	if b.Customer == nil {
		return "A client"
	}
	return html.EscapeString(b.Customer.Name)
}

func professionalName(b *models.Booking) string {
	if b.Professional == nil {
		return "your professional"
	}
	return html.EscapeString(b.Professional.Name)
}
