package repositories

import (
	"context"
	"fmt"
	"strconv"

	"fieldsync/internal/database"
	"fieldsync/internal/models"

	"gorm.io/gorm"
)

// recordRepository implements RecordRepository on top of gorm
type recordRepository struct {
	db *database.Connection
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *database.Connection) RecordRepository {
	return &recordRepository{db: db}
}

// Create inserts a record
func (r *recordRepository) Create(ctx context.Context, rt *models.RecordType, record models.Record) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID loads a record by primary key. Ids that are not unsigned integers match nothing.
func (r *recordRepository) GetByID(ctx context.Context, rt *models.RecordType, id string) (models.Record, error) {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil || pk == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	record := rt.New()
	if err := r.db.WithContext(ctx).First(record, pk).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindFirst returns the record with the lowest primary key matching every
// filter entry. Filter keys are field names and values are coerced to the field kind.
func (r *recordRepository) FindFirst(ctx context.Context, rt *models.RecordType, filter map[string]interface{}) (models.Record, error) {
	conditions := make(map[string]interface{}, len(filter))
	for name, value := range filter {
		field, ok := rt.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownField, name)
		}
		coerced, err := field.Coerce(value)
		if err != nil {
			return nil, err
		}
		conditions[field.Column] = coerced
	}

	record := rt.New()
	if err := r.db.WithContext(ctx).Where(conditions).First(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateField persists a single column of an already loaded record
func (r *recordRepository) UpdateField(ctx context.Context, rt *models.RecordType, record models.Record, field *models.Field) error {
	return r.db.WithContext(ctx).Model(record).Update(field.Column, field.Get(record)).Error
}
