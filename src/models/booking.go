package models

import (
	"bookpay/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Booking struct {
	ID             uuid.UUID           `gorm:"primarykey;type:uuid" json:"id"`
	CustomerID     uuid.UUID           `gorm:"type:uuid;index" json:"customer_id"`
	ProfessionalID uuid.UUID           `gorm:"type:uuid;index" json:"professional_id"`
	ServiceID      *uuid.UUID          `gorm:"type:uuid" json:"service_id,omitempty"`
	Status         types.BookingStatus `gorm:"default:'pending_payment';index" json:"status"`
	TotalPrice     decimal.Decimal     `gorm:"type:numeric(10,2)" json:"total_price"`
	TipAmount      decimal.Decimal     `gorm:"type:numeric(10,2);default:0" json:"tip_amount"`
	PaymentMethod  types.PaymentMethod `gorm:"default:'online'" json:"payment_method"`

	Appointment  *Appointment         `gorm:"foreignKey:BookingID" json:"appointment,omitempty"`
	Customer     *Customer            `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Professional *ProfessionalProfile `gorm:"foreignKey:ProfessionalID" json:"professional,omitempty"`
	Payment      *BookingPayment      `gorm:"foreignKey:BookingID" json:"payment,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	newID(&b.ID)
	return nil
}

type Appointment struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"booking_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	types.Timestamps
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	newID(&a.ID)
	return nil
}
