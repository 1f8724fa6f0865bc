package database

import (
	"fieldsync/internal/models"
)

// Migrator handles database migrations
type Migrator struct {
	db     *Connection
	schema *models.Schema
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *Connection, schema *models.Schema) *Migrator {
	return &Migrator{db: db, schema: schema}
}

// Up creates or updates the users table and one table per record type
func (m *Migrator) Up() error {
	tables := append([]interface{}{&models.User{}}, m.schema.Records()...)
	return m.db.AutoMigrate(tables...)
}

// Down drops every table Up manages
func (m *Migrator) Down() error {
	tables := append(m.schema.Records(), &models.User{})
	return m.db.Migrator().DropTable(tables...)
}

// Status reports which managed tables exist
func (m *Migrator) Status() map[string]bool {
	status := map[string]bool{
		models.User{}.TableName(): m.db.Migrator().HasTable(&models.User{}),
	}
	for _, rt := range m.schema.Types() {
		status[rt.Key()] = m.db.Migrator().HasTable(rt.New())
	}
	return status
}
