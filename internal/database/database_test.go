package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T) (*Connection, *models.Schema) {
	t.Helper()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema := models.DefaultSchema()
	require.NoError(t, NewMigrator(db, schema).Up())
	return db, schema
}

const fixturesYAML = `
users:
  - username: alice
    token: alice-token
    password: correct-horse
    is_active: true
records:
  - collection: game
    record_type: Player
    id: 7
    fields:
      name: Ada
      score: 10
      online: true
  - collection: notes
    record_type: note
    fields:
      title: hello
`

func TestNewConnection_UnsupportedDriver(t *testing.T) {
	_, err := NewConnection(&config.Config{Database: config.DatabaseConfig{Driver: "oracle"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestMigrator(t *testing.T) {
	db, schema := newTestConnection(t)
	migrator := NewMigrator(db, schema)

	status := migrator.Status()
	assert.True(t, status["users"])
	assert.True(t, status["game/player"])
	assert.True(t, status["notes/note"])

	require.NoError(t, migrator.Down())
	status = migrator.Status()
	assert.False(t, status["users"])
	assert.False(t, status["game/player"])
}

func TestSeeder(t *testing.T) {
	ctx := context.Background()
	db, schema := newTestConnection(t)
	seeder := NewSeeder(db, schema, models.NewValidationService())

	t.Run("loads users and records", func(t *testing.T) {
		result, err := seeder.Seed(ctx, strings.NewReader(fixturesYAML))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Users)
		assert.Equal(t, 2, result.Records)

		var player models.Player
		require.NoError(t, db.First(&player, 7).Error)
		assert.Equal(t, "Ada", player.Name)
		assert.Equal(t, int64(10), player.Score)
		assert.True(t, player.Online)

		var user models.User
		require.NoError(t, db.First(&user, "username = ?", "alice").Error)
		assert.Equal(t, "alice-token", user.Token)
		assert.Len(t, user.ID, 26)
		assert.NotEqual(t, "correct-horse", user.PasswordHash)
		assert.True(t, user.CheckPassword("correct-horse"))
	})

	t.Run("seeding twice overwrites instead of duplicating", func(t *testing.T) {
		var before models.User
		require.NoError(t, db.First(&before, "username = ?", "alice").Error)

		_, err := seeder.Seed(ctx, strings.NewReader(fixturesYAML))
		require.NoError(t, err)

		var users []models.User
		require.NoError(t, db.Find(&users).Error)
		require.Len(t, users, 1)
		assert.Equal(t, before.ID, users[0].ID)

		var count int64
		require.NoError(t, db.Model(&models.Player{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		_, err := seeder.Seed(ctx, strings.NewReader(`
records:
  - collection: game
    record_type: Player
    id: 8
    fields:
      rank: 1
`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrUnknownField))
	})

	t.Run("rejects unknown record types", func(t *testing.T) {
		_, err := seeder.Seed(ctx, strings.NewReader(`
records:
  - collection: game
    record_type: Dragon
`))
		assert.True(t, errors.Is(err, models.ErrUnknownRecordType))
	})

	t.Run("validates users", func(t *testing.T) {
		_, err := seeder.Seed(ctx, strings.NewReader(`
users:
  - username: al
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
}
