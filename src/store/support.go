package store

import (
	"bookpay/src/models"
	"bookpay/src/models/scopes"
	"bookpay/src/types"
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const SenderSystem = "system"

// InProgressSupportRequest returns the in-progress request for a booking, or
// nil when there is none.
func (s *Store) InProgressSupportRequest(ctx context.Context, bookingID uuid.UUID) (*models.SupportRequest, error) {
	var r models.SupportRequest
	err := s.db.WithContext(ctx).
		Model(&models.SupportRequest{}).
		Scopes(scopes.WithBookingID(bookingID), scopes.WithStatusIn(types.SUPPORT_IN_PROGRESS)).
		Order("created_at desc").
		First(&r).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ResolveSupportRequest moves an in-progress request to resolved. Only one
// caller ever gets true for a given request.
func (s *Store) ResolveSupportRequest(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.SupportRequest{}).
		Scopes(scopes.WithID(id), scopes.WithStatusIn(types.SUPPORT_IN_PROGRESS)).
		Update("status", string(types.SUPPORT_RESOLVED))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) PostSystemMessage(ctx context.Context, conversationID uuid.UUID, body string) error {
	return s.db.WithContext(ctx).Create(&models.Message{
		ConversationID: conversationID,
		SenderType:     SenderSystem,
		Body:           body,
	}).Error
}

func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&msgs).
		Error
	return msgs, err
}
