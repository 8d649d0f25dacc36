package models

import (
	"bookpay/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProfessionalProfile struct {
	ID                  uuid.UUID           `gorm:"primarykey;type:uuid" json:"id"`
	Name                string              `json:"name"`
	Email               string              `json:"email"`
	RequiresDeposit     bool                `json:"requires_deposit"`
	DepositType         types.DepositType   `json:"deposit_type,omitempty"`
	DepositValue        decimal.Decimal     `gorm:"type:numeric(10,2);default:0" json:"deposit_value"`
	StripeAccountID     *string             `gorm:"uniqueIndex" json:"-"`
	StripeConnectStatus types.ConnectStatus `gorm:"default:'not_connected'" json:"stripe_connect_status"`

	Services []Service `gorm:"foreignKey:ProfessionalID" json:"services,omitempty"`

	types.Timestamps
}

func (p *ProfessionalProfile) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}

type Service struct {
	ID             uuid.UUID       `gorm:"primarykey;type:uuid" json:"id"`
	ProfessionalID uuid.UUID       `gorm:"type:uuid;index" json:"professional_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `gorm:"type:numeric(10,2)" json:"price"`
	Bookable       bool            `gorm:"default:false" json:"bookable"`

	types.Timestamps
}

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}
