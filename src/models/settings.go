package models

import (
	"bookpay/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Setting struct {
	ID           uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	SettingKey   string    `gorm:"uniqueIndex:name" json:"setting_key"`
	SettingValue string    `gorm:"type:text" json:"setting_value"`
	Group        string    `gorm:"uniqueIndex:name" json:"group,omitempty"`

	types.Timestamps
}

func (s *Setting) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}
