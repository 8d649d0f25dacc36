package models

import (
	"bookpay/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Customer struct {
	ID               uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	Name             string    `json:"name"`
	Email            string    `gorm:"index" json:"email"`
	StripeCustomerID *string   `json:"-"`

	types.Timestamps
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}
