package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fieldsync/internal/models"
	"fieldsync/internal/push"
)

// MockRecordRepository is a mock implementation of RecordRepository for testing
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Create(ctx context.Context, rt *models.RecordType, record models.Record) error {
	args := m.Called(ctx, rt, record)
	return args.Error(0)
}

func (m *MockRecordRepository) GetByID(ctx context.Context, rt *models.RecordType, id string) (models.Record, error) {
	args := m.Called(ctx, rt, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Record), args.Error(1)
}

func (m *MockRecordRepository) FindFirst(ctx context.Context, rt *models.RecordType, filter map[string]interface{}) (models.Record, error) {
	args := m.Called(ctx, rt, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Record), args.Error(1)
}

func (m *MockRecordRepository) UpdateField(ctx context.Context, rt *models.RecordType, record models.Record, field *models.Field) error {
	args := m.Called(ctx, rt, record, field)
	return args.Error(0)
}

// MockBroker is a mock implementation of push.Broker for testing
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(ctx context.Context, topic push.Topic, value string) error {
	args := m.Called(ctx, topic, value)
	return args.Error(0)
}

func (m *MockBroker) Subscribe(ctx context.Context, topic push.Topic) (push.Subscription, error) {
	args := m.Called(ctx, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(push.Subscription), args.Error(1)
}

func (m *MockBroker) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var player7 = models.Locator{Collection: "game", RecordType: "Player", RecordID: "7"}

func newFieldServiceForTest() (FieldService, *MockRecordRepository, *MockBroker) {
	repo := &MockRecordRepository{}
	broker := &MockBroker{}
	return NewFieldService(createTestLogger(), models.DefaultSchema(), repo, broker), repo, broker
}

func TestFieldService_LoadRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("loads the typed record", func(t *testing.T) {
		svc, repo, _ := newFieldServiceForTest()
		player := &models.Player{Base: models.Base{ID: 7}, Score: 10}
		repo.On("GetByID", ctx, models.PlayerType, "7").Return(player, nil)

		ref, err := svc.LoadRecord(ctx, player7)
		require.NoError(t, err)
		assert.Same(t, models.PlayerType, ref.Type)
		assert.Same(t, player, ref.Record)
	})

	t.Run("maps missing rows to ErrRecordNotFound", func(t *testing.T) {
		svc, repo, _ := newFieldServiceForTest()
		repo.On("GetByID", ctx, models.PlayerType, "7").Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.LoadRecord(ctx, player7)
		assert.True(t, errors.Is(err, ErrRecordNotFound))
	})

	t.Run("rejects unknown record types without touching storage", func(t *testing.T) {
		svc, repo, _ := newFieldServiceForTest()

		_, err := svc.LoadRecord(ctx, models.Locator{Collection: "game", RecordType: "Dragon", RecordID: "1"})
		assert.True(t, errors.Is(err, ErrUnknownRecordType))
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("passes other storage failures through", func(t *testing.T) {
		svc, repo, _ := newFieldServiceForTest()
		boom := errors.New("connection reset")
		repo.On("GetByID", ctx, models.PlayerType, "7").Return(nil, boom)

		_, err := svc.LoadRecord(ctx, player7)
		assert.True(t, errors.Is(err, boom))
		assert.False(t, errors.Is(err, ErrRecordNotFound))
	})
}

func TestFieldService_ReadField(t *testing.T) {
	svc, _, _ := newFieldServiceForTest()
	ref := &models.RecordRef{Type: models.PlayerType, Record: &models.Player{Name: "Ada", Score: 10}}

	value, err := svc.ReadField(context.Background(), ref, "score")
	require.NoError(t, err)
	assert.Equal(t, int64(10), value)

	_, err = svc.ReadField(context.Background(), ref, "rank")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestFieldService_WriteField(t *testing.T) {
	ctx := context.Background()
	scoreField, _ := models.PlayerType.Field("score")

	t.Run("persists, publishes and returns the typed value", func(t *testing.T) {
		svc, repo, broker := newFieldServiceForTest()
		player := &models.Player{Base: models.Base{ID: 7}, Score: 10}
		ref := &models.RecordRef{Type: models.PlayerType, Record: player}

		repo.On("UpdateField", ctx, models.PlayerType, player, scoreField).Return(nil)
		broker.On("Publish", ctx, push.TopicFor(player7, "score"), "15").Return(nil)

		value, err := svc.WriteField(ctx, player7, ref, "score", json.Number("15"))
		require.NoError(t, err)
		assert.Equal(t, int64(15), value)
		assert.Equal(t, int64(15), player.Score)
		repo.AssertExpectations(t)
		broker.AssertExpectations(t)
	})

	t.Run("empty and null values are rejected before any write", func(t *testing.T) {
		svc, repo, broker := newFieldServiceForTest()
		ref := &models.RecordRef{Type: models.PlayerType, Record: &models.Player{Score: 10}}

		for _, value := range []interface{}{nil, ""} {
			_, err := svc.WriteField(ctx, player7, ref, "score", value)
			assert.True(t, errors.Is(err, ErrEmptyValue))
		}
		repo.AssertNotCalled(t, "UpdateField", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		broker.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		svc, repo, _ := newFieldServiceForTest()
		ref := &models.RecordRef{Type: models.PlayerType, Record: &models.Player{}}

		_, err := svc.WriteField(ctx, player7, ref, "rank", "1")
		assert.True(t, errors.Is(err, ErrUnknownField))
		repo.AssertNotCalled(t, "UpdateField", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("uncoercible values are rejected", func(t *testing.T) {
		svc, _, _ := newFieldServiceForTest()
		player := &models.Player{Score: 10}
		ref := &models.RecordRef{Type: models.PlayerType, Record: player}

		_, err := svc.WriteField(ctx, player7, ref, "score", "lots")
		assert.True(t, errors.Is(err, ErrInvalidValue))
		assert.Equal(t, int64(10), player.Score)
	})

	t.Run("publish failures do not fail the write", func(t *testing.T) {
		svc, repo, broker := newFieldServiceForTest()
		player := &models.Player{Base: models.Base{ID: 7}}
		ref := &models.RecordRef{Type: models.PlayerType, Record: player}

		repo.On("UpdateField", ctx, models.PlayerType, player, scoreField).Return(nil)
		broker.On("Publish", ctx, mock.Anything, "3").Return(errors.New("redis down"))

		value, err := svc.WriteField(ctx, player7, ref, "score", "3")
		require.NoError(t, err)
		assert.Equal(t, int64(3), value)
	})
}

func TestFieldService_ResolveRecord(t *testing.T) {
	ctx := context.Background()
	query := map[string]interface{}{"name": "Ada"}

	t.Run("returns the id of the first match", func(t *testing.T) {
		svc, repo, _ := newFieldServiceForTest()
		repo.On("FindFirst", ctx, models.PlayerType, query).Return(&models.Player{Base: models.Base{ID: 7}}, nil)

		id, err := svc.ResolveRecord(ctx, "game", "Player", query)
		require.NoError(t, err)
		assert.Equal(t, "7", id)
	})

	t.Run("returns an empty id when nothing matches", func(t *testing.T) {
		svc, repo, _ := newFieldServiceForTest()
		repo.On("FindFirst", ctx, models.PlayerType, query).Return(nil, gorm.ErrRecordNotFound)

		id, err := svc.ResolveRecord(ctx, "game", "Player", query)
		require.NoError(t, err)
		assert.Equal(t, "", id)
	})
}
