package store

import (
	"bookpay/src/models"
	"bookpay/src/models/scopes"
	"bookpay/src/types"
	"context"

	"github.com/google/uuid"
)

func (s *Store) GetProfessional(ctx context.Context, id uuid.UUID) (*models.ProfessionalProfile, error) {
	var p models.ProfessionalProfile
	if err := s.db.WithContext(ctx).
		Model(&models.ProfessionalProfile{}).
		Scopes(scopes.WithID(id)).
		First(&p).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) GetProfessionalByAccount(ctx context.Context, accountID string) (*models.ProfessionalProfile, error) {
	var p models.ProfessionalProfile
	if err := s.db.WithContext(ctx).
		Model(&models.ProfessionalProfile{}).
		Where("stripe_account_id = ?", accountID).
		First(&p).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// UpdateConnectStatus stores a new onboarding status and reports whether it
// changed.
func (s *Store) UpdateConnectStatus(ctx context.Context, id uuid.UUID, status types.ConnectStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.ProfessionalProfile{}).
		Scopes(scopes.WithID(id)).
		Where("stripe_connect_status <> ? OR stripe_connect_status IS NULL", string(status)).
		Update("stripe_connect_status", string(status))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// EnableServices marks every service of a professional bookable.
func (s *Store) EnableServices(ctx context.Context, professionalID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Service{}).
		Where("professional_id = ?", professionalID).
		Where("bookable = ?", false).
		Update("bookable", true)
	return res.RowsAffected, res.Error
}
