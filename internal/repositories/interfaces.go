package repositories

import (
	"context"

	"fieldsync/internal/models"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// RecordRepository defines record access for any registered record type.
// Lookups that match nothing return gorm.ErrRecordNotFound.
type RecordRepository interface {
	Create(ctx context.Context, rt *models.RecordType, record models.Record) error
	GetByID(ctx context.Context, rt *models.RecordType, id string) (models.Record, error)
	FindFirst(ctx context.Context, rt *models.RecordType, filter map[string]interface{}) (models.Record, error)
	UpdateField(ctx context.Context, rt *models.RecordType, record models.Record, field *models.Field) error
}
