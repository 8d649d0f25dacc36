package models

import (
	"bookpay/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Plan struct {
	ID            uuid.UUID       `gorm:"primarykey;type:uuid" json:"id"`
	Name          string          `json:"name"`
	StripePriceID string          `gorm:"uniqueIndex" json:"-"`
	Price         decimal.Decimal `gorm:"type:numeric(10,2)" json:"price"`
	Currency      string          `gorm:"default:'usd'" json:"currency"`
	Interval      string          `json:"interval,omitempty"`

	types.Timestamps
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}

type Subscription struct {
	ID                   uuid.UUID  `gorm:"primarykey;type:uuid" json:"id"`
	ProfessionalID       *uuid.UUID `gorm:"type:uuid;index" json:"professional_id,omitempty"`
	PlanID               *uuid.UUID `gorm:"type:uuid" json:"plan_id,omitempty"`
	StripeSubscriptionID string     `gorm:"uniqueIndex" json:"-"`
	StripeCustomerID     string     `json:"-"`
	Status               string     `json:"status"`

	types.Timestamps
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}
