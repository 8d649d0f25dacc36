package models

import (
	"bookpay/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupportRequest struct {
	ID             uuid.UUID                  `gorm:"primarykey;type:uuid" json:"id"`
	BookingID      uuid.UUID                  `gorm:"type:uuid;index" json:"booking_id"`
	ConversationID *uuid.UUID                 `gorm:"type:uuid" json:"conversation_id,omitempty"`
	Subject        string                     `json:"subject"`
	Status         types.SupportRequestStatus `gorm:"default:'open';index" json:"status"`

	types.Timestamps
}

func (s *SupportRequest) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}

type Conversation struct {
	ID        uuid.UUID  `gorm:"primarykey;type:uuid" json:"id"`
	BookingID *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`

	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`

	types.Timestamps
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}

type Message struct {
	ID             uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;index" json:"conversation_id"`
	SenderType     string    `json:"sender_type"`
	Body           string    `gorm:"type:text" json:"body"`

	types.Timestamps
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	newID(&m.ID)
	return nil
}
