package services

import (
	"context"
	"time"

	"fieldsync/internal/models"
)

// FieldService reads and writes single fields of registered record types
type FieldService interface {
	LoadRecord(ctx context.Context, loc models.Locator) (*models.RecordRef, error)
	ReadField(ctx context.Context, ref *models.RecordRef, field string) (interface{}, error)
	WriteField(ctx context.Context, loc models.Locator, ref *models.RecordRef, field string, value interface{}) (interface{}, error)
	ResolveRecord(ctx context.Context, collection, recordType string, query map[string]interface{}) (string, error)
}

// AuthenticationService issues and verifies signed bearer tokens
type AuthenticationService interface {
	GenerateJWT(ctx context.Context, user *models.User) (string, error)
	ValidateJWT(ctx context.Context, token string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	TokenTTL() time.Duration
}
