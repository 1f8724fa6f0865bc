package database

import (
	"context"
	"errors"
	"fmt"
	"io"

	"fieldsync/internal/models"

	"gopkg.in/yaml.v2"
	"gorm.io/gorm"
)

// Fixtures is the YAML document accepted by Seed
type Fixtures struct {
	Users   []models.User   `yaml:"users" validate:"dive"`
	Records []RecordFixture `yaml:"records" validate:"dive"`
}

// RecordFixture describes one record to insert or overwrite
type RecordFixture struct {
	Collection string                 `yaml:"collection" validate:"required"`
	RecordType string                 `yaml:"record_type" validate:"required"`
	ID         uint                   `yaml:"id"`
	Fields     map[string]interface{} `yaml:"fields"`
}

// SeedResult counts what Seed wrote
type SeedResult struct {
	Users   int
	Records int
}

// Seeder loads fixtures into the database
type Seeder struct {
	db        *Connection
	schema    *models.Schema
	validator *models.ValidationService
}

// NewSeeder creates a new seeder
func NewSeeder(db *Connection, schema *models.Schema, validator *models.ValidationService) *Seeder {
	return &Seeder{db: db, schema: schema, validator: validator}
}

// Seed parses YAML fixtures from r and upserts users by username and records by id
func (s *Seeder) Seed(ctx context.Context, r io.Reader) (*SeedResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	var fixtures Fixtures
	if err := yaml.UnmarshalStrict(raw, &fixtures); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	if err := s.validator.ValidateStruct(&fixtures); err != nil {
		return nil, err
	}

	result := &SeedResult{}
	db := s.db.WithContext(ctx)

	for i := range fixtures.Users {
		if err := s.upsertUser(db, &fixtures.Users[i]); err != nil {
			return result, err
		}
		result.Users++
	}

	for _, fixture := range fixtures.Records {
		if err := s.upsertRecord(db, fixture); err != nil {
			return result, err
		}
		result.Records++
	}

	return result, nil
}

func (s *Seeder) upsertUser(db *gorm.DB, user *models.User) error {
	if user.Password != "" {
		if err := user.SetPassword(user.Password); err != nil {
			return fmt.Errorf("failed to hash password of user %s: %w", user.Username, err)
		}
	}

	var existing models.User
	err := db.Where("username = ?", user.Username).First(&existing).Error
	switch {
	case err == nil:
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
		if user.Token == "" {
			user.Token = existing.Token
		}
		if user.PasswordHash == "" {
			user.PasswordHash = existing.PasswordHash
		}
		if err := db.Save(user).Error; err != nil {
			return fmt.Errorf("failed to update user %s: %w", user.Username, err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user %s: %w", user.Username, err)
		}
	default:
		return fmt.Errorf("failed to look up user %s: %w", user.Username, err)
	}
	return nil
}

func (s *Seeder) upsertRecord(db *gorm.DB, fixture RecordFixture) error {
	rt, err := s.schema.Lookup(fixture.Collection, fixture.RecordType)
	if err != nil {
		return err
	}

	record := rt.New()
	record.SetID(fixture.ID)
	for name, value := range fixture.Fields {
		field, ok := rt.Field(name)
		if !ok {
			return fmt.Errorf("%w: %s/%s.%s", models.ErrUnknownField, fixture.Collection, fixture.RecordType, name)
		}
		if err := field.Set(record, value); err != nil {
			return err
		}
	}

	if fixture.ID == 0 {
		err = db.Create(record).Error
	} else {
		err = db.Save(record).Error
	}
	if err != nil {
		return fmt.Errorf("failed to write %s/%s record: %w", fixture.Collection, fixture.RecordType, err)
	}
	return nil
}
