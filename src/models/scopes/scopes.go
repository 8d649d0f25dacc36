package scopes

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func WithID(id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func WithBookingID(id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("booking_id = ?", id)
	}
}

// WithStatusIn restricts a statement to rows whose status is one of statuses.
func WithStatusIn[T ~string](statuses ...T) func(db *gorm.DB) *gorm.DB {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status IN ?", values)
	}
}

func WithNull(column string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column + " IS NULL")
	}
}
