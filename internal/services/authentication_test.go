package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fieldsync/internal/config"
	"fieldsync/internal/logger"
	"fieldsync/internal/models"
)

// createTestLogger creates a logger for testing
func createTestLogger() *logger.Logger {
	return &logger.Logger{Logger: logrus.New()}
}

// MockUserRepository is a mock implementation of UserRepository for testing
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func testAuthConfig(secret string) *config.Config {
	return &config.Config{Auth: config.AuthConfig{
		Enabled:   true,
		JWTSecret: secret,
		Issuer:    "fieldsync",
		TokenTTL:  1,
	}}
}

func TestAuthenticationService_GenerateAndValidate(t *testing.T) {
	ctx := context.Background()
	repo := &MockUserRepository{}
	svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), repo)

	user := &models.User{ID: "01HZX", Username: "ada", Token: "tok-ada", IsActive: true}
	repo.On("GetByToken", ctx, "tok-ada").Return(user, nil)

	token, err := svc.GenerateJWT(ctx, user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := svc.ValidateJWT(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
	repo.AssertExpectations(t)
}

func TestAuthenticationService_ValidateJWT_Rejections(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: "01HZX", Username: "ada", Token: "tok-ada", IsActive: true}

	t.Run("empty token", func(t *testing.T) {
		svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), &MockUserRepository{})
		_, err := svc.ValidateJWT(ctx, "")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("garbage token", func(t *testing.T) {
		svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), &MockUserRepository{})
		_, err := svc.ValidateJWT(ctx, "not.a.jwt")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("signed with another secret", func(t *testing.T) {
		other := NewAuthenticationService(testAuthConfig("other"), createTestLogger(), &MockUserRepository{})
		token, err := other.GenerateJWT(ctx, user)
		require.NoError(t, err)

		repo := &MockUserRepository{}
		svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), repo)
		_, err = svc.ValidateJWT(ctx, token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
		repo.AssertNotCalled(t, "GetByToken", mock.Anything, mock.Anything)
	})

	t.Run("non HS256 algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, JWTClaims{Token: "tok-ada"}).SignedString([]byte("secret"))
		require.NoError(t, err)

		svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), &MockUserRepository{})
		_, err = svc.ValidateJWT(ctx, token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired token", func(t *testing.T) {
		claims := JWTClaims{
			Token: "tok-ada",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), &MockUserRepository{})
		_, err = svc.ValidateJWT(ctx, token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("token claim missing", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{}).SignedString([]byte("secret"))
		require.NoError(t, err)

		svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), &MockUserRepository{})
		_, err = svc.ValidateJWT(ctx, token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := &MockUserRepository{}
		svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), repo)
		token, err := svc.GenerateJWT(ctx, user)
		require.NoError(t, err)

		repo.On("GetByToken", ctx, "tok-ada").Return(nil, gorm.ErrRecordNotFound)
		_, err = svc.ValidateJWT(ctx, token)
		assert.True(t, errors.Is(err, ErrUserNotFound))
	})

	t.Run("inactive user", func(t *testing.T) {
		repo := &MockUserRepository{}
		svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), repo)
		token, err := svc.GenerateJWT(ctx, user)
		require.NoError(t, err)

		inactive := *user
		inactive.IsActive = false
		repo.On("GetByToken", ctx, "tok-ada").Return(&inactive, nil)
		_, err = svc.ValidateJWT(ctx, token)
		assert.True(t, errors.Is(err, ErrUnauthorized))
	})
}

func TestAuthenticationService_Login(t *testing.T) {
	ctx := context.Background()
	repo := &MockUserRepository{}
	svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), repo)
	assert.Equal(t, time.Hour, svc.TokenTTL())

	ada := &models.User{ID: "01HADA", Username: "ada", Token: "tok-ada", IsActive: true}
	require.NoError(t, ada.SetPassword("correct-horse"))
	inactive := &models.User{ID: "01HBOB", Username: "bob", Token: "tok-bob"}
	require.NoError(t, inactive.SetPassword("correct-horse"))

	repo.On("GetByUsername", ctx, "ada").Return(ada, nil)
	repo.On("GetByUsername", ctx, "bob").Return(inactive, nil)
	repo.On("GetByUsername", ctx, "eve").Return(nil, gorm.ErrRecordNotFound)
	repo.On("GetByToken", ctx, "tok-ada").Return(ada, nil)

	token, err := svc.Login(ctx, "ada", "correct-horse")
	require.NoError(t, err)
	user, err := svc.ValidateJWT(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)

	for _, tc := range []struct{ username, password string }{
		{"ada", "wrong"},
		{"bob", "correct-horse"},
		{"eve", "correct-horse"},
	} {
		_, err := svc.Login(ctx, tc.username, tc.password)
		assert.True(t, errors.Is(err, ErrInvalidCredentials), tc.username)
	}
}

func TestProperty_TokenClaimSurvivesSigning(t *testing.T) {
	properties := gopter.NewProperties(nil)
	svc := NewAuthenticationService(testAuthConfig("secret"), createTestLogger(), &MockUserRepository{}).(*authenticationService)

	properties.Property("the token claim identifies the user it was issued for", prop.ForAll(
		func(token string) bool {
			signed, err := svc.GenerateJWT(context.Background(), &models.User{ID: "u", Token: token})
			if err != nil {
				return false
			}
			claims := &JWTClaims{}
			_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
				return []byte("secret"), nil
			})
			return err == nil && claims.Token == token && claims.Subject == "u"
		},
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
