package testutil

import (
	"bookpay/src/models"
	"bookpay/src/types"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

const ConnectedAccount = "acct_test_professional"

type Fixture struct {
	Customer     *models.Customer
	Professional *models.ProfessionalProfile
	Booking      *models.Booking
	Appointment  *models.Appointment
}

type FixtureOption func(*Fixture)

func WithDeposit(kind types.DepositType, value string) FixtureOption {
	return func(f *Fixture) {
		f.Professional.RequiresDeposit = true
		f.Professional.DepositType = kind
		f.Professional.DepositValue = decimal.RequireFromString(value)
	}
}

func WithoutConnectedAccount() FixtureOption {
	return func(f *Fixture) {
		f.Professional.StripeAccountID = nil
		f.Professional.StripeConnectStatus = types.CONNECT_NOT_CONNECTED
	}
}

func WithConnectStatus(status types.ConnectStatus) FixtureOption {
	return func(f *Fixture) {
		f.Professional.StripeConnectStatus = status
	}
}

func WithPaymentMethod(method types.PaymentMethod) FixtureOption {
	return func(f *Fixture) {
		f.Booking.PaymentMethod = method
	}
}

func WithStripeCustomer(id string) FixtureOption {
	return func(f *Fixture) {
		f.Customer.StripeCustomerID = &id
	}
}

func WithBookingStatus(status types.BookingStatus) FixtureOption {
	return func(f *Fixture) {
		f.Booking.Status = status
	}
}

// SeedBooking inserts a customer, a connected professional, and a one-hour
// booking starting at start with the given total price.
func SeedBooking(t *testing.T, db *gorm.DB, start time.Time, total string, opts ...FixtureOption) *Fixture {
	t.Helper()
	account := ConnectedAccount + "_" + uuid.NewString()[:8]
	f := &Fixture{
		Customer: &models.Customer{
			Name:  "Casey Client",
			Email: "client@example.com",
		},
		Professional: &models.ProfessionalProfile{
			Name:                "Pat Professional",
			Email:               "pro@example.com",
			StripeAccountID:     &account,
			StripeConnectStatus: types.CONNECT_COMPLETE,
		},
		Booking: &models.Booking{
			Status:        types.BOOKING_PENDING_PAYMENT,
			TotalPrice:    decimal.RequireFromString(total),
			PaymentMethod: types.METHOD_ONLINE,
		},
		Appointment: &models.Appointment{
			StartTime: start.UTC(),
			EndTime:   start.Add(time.Hour).UTC(),
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	require.NoError(t, db.Create(f.Customer).Error)
	require.NoError(t, db.Create(f.Professional).Error)
	f.Booking.CustomerID = f.Customer.ID
	f.Booking.ProfessionalID = f.Professional.ID
	require.NoError(t, db.Omit("Appointment", "Customer", "Professional", "Payment").Create(f.Booking).Error)
	f.Appointment.BookingID = f.Booking.ID
	require.NoError(t, db.Create(f.Appointment).Error)
	return f
}
