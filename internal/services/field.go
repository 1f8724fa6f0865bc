package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"fieldsync/internal/logger"
	"fieldsync/internal/models"
	"fieldsync/internal/push"
	"fieldsync/internal/repositories"

	"gorm.io/gorm"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrUnknownRecordType = models.ErrUnknownRecordType
	ErrUnknownField      = models.ErrUnknownField
	ErrEmptyValue        = errors.New("field value cannot be empty")
	ErrInvalidValue      = errors.New("invalid field value")
)

// fieldService implements FieldService
type fieldService struct {
	logger  *logger.Logger
	schema  *models.Schema
	records repositories.RecordRepository
	broker  push.Broker
}

// NewFieldService creates a new field service
func NewFieldService(
	logger *logger.Logger,
	schema *models.Schema,
	records repositories.RecordRepository,
	broker push.Broker,
) FieldService {
	return &fieldService{
		logger:  logger,
		schema:  schema,
		records: records,
		broker:  broker,
	}
}

// LoadRecord finds the record a locator points at
func (s *fieldService) LoadRecord(ctx context.Context, loc models.Locator) (*models.RecordRef, error) {
	rt, err := s.schema.Lookup(loc.Collection, loc.RecordType)
	if err != nil {
		return nil, err
	}

	record, err := s.records.GetByID(ctx, rt, loc.RecordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, loc)
		}
		return nil, fmt.Errorf("failed to load %s: %w", loc, err)
	}

	return &models.RecordRef{Type: rt, Record: record}, nil
}

// ReadField returns the current typed value of a field
func (s *fieldService) ReadField(ctx context.Context, ref *models.RecordRef, field string) (interface{}, error) {
	f, ok := ref.Type.Field(field)
	if !ok {
		return nil, ref.Type.ValidateFields(field)
	}
	return f.Get(ref.Record), nil
}

// WriteField coerces value, persists that one column and publishes the new value
func (s *fieldService) WriteField(ctx context.Context, loc models.Locator, ref *models.RecordRef, field string, value interface{}) (interface{}, error) {
	if value == nil || value == "" {
		return nil, ErrEmptyValue
	}

	f, ok := ref.Type.Field(field)
	if !ok {
		return nil, ref.Type.ValidateFields(field)
	}

	if err := f.Set(ref.Record, value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	if err := s.records.UpdateField(ctx, ref.Type, ref.Record, f); err != nil {
		return nil, fmt.Errorf("failed to update %s.%s: %w", loc, field, err)
	}

	current := f.Get(ref.Record)

	if err := s.broker.Publish(ctx, push.TopicFor(loc, field), models.FormatValue(current)); err != nil {
		s.logger.WithRecord(loc.Collection, loc.RecordType, loc.RecordID).
			WithField("field", field).
			WithError(err).Warn("Failed to publish field change")
	}

	return current, nil
}

// ResolveRecord returns the id of the first record matching query, or "" when nothing matches
func (s *fieldService) ResolveRecord(ctx context.Context, collection, recordType string, query map[string]interface{}) (string, error) {
	rt, err := s.schema.Lookup(collection, recordType)
	if err != nil {
		return "", err
	}

	record, err := s.records.FindFirst(ctx, rt, query)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}

	return strconv.FormatUint(uint64(record.GetID()), 10), nil
}
