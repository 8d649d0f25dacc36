package store

import (
	"bookpay/src/config"
	"bookpay/src/ledger"
	"bookpay/src/models"
	"bookpay/src/models/scopes"
	"bookpay/src/types"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetBooking loads a booking with its appointment, customer and professional.
func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Preload("Appointment").
		Preload("Customer").
		Preload("Professional").
		Scopes(scopes.WithID(id)).
		First(&b).
		Error
	if err != nil {
		return nil, notFound(err)
	}
	if b.Appointment == nil {
		return nil, fmt.Errorf("booking %s has no appointment", id)
	}
	return &b, nil
}

func (s *Store) ConfirmBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.setBookingStatus(ctx, id, types.BOOKING_CONFIRMED, types.BOOKING_PENDING_PAYMENT)
}

func (s *Store) CancelBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.setBookingStatus(ctx, id, types.BOOKING_CANCELLED, types.BOOKING_PENDING_PAYMENT, types.BOOKING_CONFIRMED)
}

func (s *Store) CompleteBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.setBookingStatus(ctx, id, types.BOOKING_COMPLETED, types.BOOKING_CONFIRMED)
}

func (s *Store) setBookingStatus(ctx context.Context, id uuid.UUID, to types.BookingStatus, from ...types.BookingStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithID(id), scopes.WithStatusIn(from...)).
		Update("status", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeletePendingBooking removes a booking that never got paid, together with
// its appointment and payment record. Bookings past pending_payment are kept.
func (s *Store) DeletePendingBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.
			Model(&models.Booking{}).
			Scopes(scopes.WithID(id), scopes.WithStatusIn(types.BOOKING_PENDING_PAYMENT)).
			First(&b).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.
			Scopes(scopes.WithBookingID(id)).
			Delete(&models.BookingPayment{}).
			Error; err != nil {
			return err
		}
		if err := tx.
			Unscoped().
			Scopes(scopes.WithBookingID(id)).
			Delete(&models.Appointment{}).
			Error; err != nil {
			return err
		}
		res := tx.
			Scopes(scopes.WithID(id), scopes.WithStatusIn(types.BOOKING_PENDING_PAYMENT)).
			Delete(&models.Booking{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (s *Store) AddBookingTip(ctx context.Context, id uuid.UUID, tipCents int64) error {
	return s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithID(id)).
		Update("tip_amount", gorm.Expr("tip_amount + ?", ledger.FromCents(tipCents))).
		Error
}

// ServiceFeeCents reads the platform service fee from the settings table,
// falling back to fallback (currency units) when it is not configured.
func (s *Store) ServiceFeeCents(ctx context.Context, fallback string) (int64, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).
		Model(&models.Setting{}).
		Where("setting_key = ?", config.SERVICE_FEE_KEY).
		First(&setting).
		Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	if err == nil {
		if c, perr := ledger.ParseCents(setting.SettingValue); perr == nil && c >= 0 {
			return c, nil
		}
	}
	return ledger.ParseCents(fallback)
}

func (s *Store) SetStripeCustomerID(ctx context.Context, customerID uuid.UUID, stripeID string) error {
	return s.db.WithContext(ctx).
		Model(&models.Customer{}).
		Scopes(scopes.WithID(customerID)).
		Update("stripe_customer_id", stripeID).
		Error
}

func (s *Store) SetBookingPaymentMethod(ctx context.Context, id uuid.UUID, method types.PaymentMethod) error {
	return s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithID(id)).
		Update("payment_method", string(method)).
		Error
}
