package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Env string

const (
	Local      Env = "local"
	Test       Env = "test"
	Production Env = "production"
)

type PaymentStatus string

const (
	PAYMENT_PENDING    PaymentStatus = "pending"
	PAYMENT_AUTHORIZED PaymentStatus = "authorized"
	PAYMENT_COMPLETED  PaymentStatus = "completed"
	PAYMENT_FAILED     PaymentStatus = "failed"
	PAYMENT_CANCELLED  PaymentStatus = "cancelled"
	PAYMENT_REFUNDED   PaymentStatus = "refunded"
)

type PaymentType string

const (
	PAYMENT_TYPE_FULL    PaymentType = "full"
	PAYMENT_TYPE_DEPOSIT PaymentType = "deposit"
	PAYMENT_TYPE_BALANCE PaymentType = "balance"
)

type CaptureMethod string

const (
	CAPTURE_AUTOMATIC CaptureMethod = "automatic"
	CAPTURE_MANUAL    CaptureMethod = "manual"
)

type PaymentMethod string

const (
	METHOD_ONLINE  PaymentMethod = "online"
	METHOD_OFFLINE PaymentMethod = "offline"
)

type BookingStatus string

const (
	BOOKING_PENDING_PAYMENT BookingStatus = "pending_payment"
	BOOKING_CONFIRMED       BookingStatus = "confirmed"
	BOOKING_COMPLETED       BookingStatus = "completed"
	BOOKING_CANCELLED       BookingStatus = "cancelled"
)

type DepositType string

const (
	DEPOSIT_PERCENTAGE DepositType = "percentage"
	DEPOSIT_FIXED      DepositType = "fixed"
)

type ConnectStatus string

const (
	CONNECT_NOT_CONNECTED ConnectStatus = "not_connected"
	CONNECT_PENDING       ConnectStatus = "pending"
	CONNECT_COMPLETE      ConnectStatus = "complete"
)

type SupportRequestStatus string

const (
	SUPPORT_OPEN        SupportRequestStatus = "open"
	SUPPORT_IN_PROGRESS SupportRequestStatus = "in_progress"
	SUPPORT_RESOLVED    SupportRequestStatus = "resolved"
)

// Scenario names the checkout flow chosen for a booking.
type Scenario string

const (
	SCENARIO_DEPOSIT     Scenario = "deposit"
	SCENARIO_SETUP       Scenario = "setup"
	SCENARIO_MANUAL_HOLD Scenario = "manual_hold"
)

// ChargeKind is written to processor metadata so webhook handlers can tell
// booking charges apart from auxiliary ones.
type ChargeKind string

const (
	CHARGE_BOOKING          ChargeKind = "booking"
	CHARGE_DEPOSIT          ChargeKind = "deposit"
	CHARGE_BALANCE          ChargeKind = "balance"
	CHARGE_PLATFORM_FEE     ChargeKind = "platform_fee"
	CHARGE_CANCELLATION_FEE ChargeKind = "cancellation_fee"
	CHARGE_TIP              ChargeKind = "tip"
	CHARGE_SUBSCRIPTION     ChargeKind = "subscription"
)

// Result is what client-facing payment actions return instead of raising.
type Result struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	URL       string   `json:"url,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Scenario  Scenario `json:"scenario,omitempty"`
}

func Fail(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type BookingURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type SessionURIParams struct {
	ID string `uri:"id" binding:"required"`
}

type CreateCheckoutRequestBody struct {
	PaymentMethod string `json:"payment_method" binding:"required,paymentmethod"`
	Tip           int64  `json:"tip,omitempty" binding:"omitempty,min=0"`
}

type RefundRequestBody struct {
	Amount int64  `json:"amount,omitempty" binding:"omitempty,min=1"`
	Reason string `json:"reason,omitempty"`
}

type TipRequestBody struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

type CancelBookingRequestBody struct {
	CancellationFee int64 `json:"cancellation_fee,omitempty" binding:"omitempty,min=0"`
}
