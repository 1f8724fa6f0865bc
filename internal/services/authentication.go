package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fieldsync/internal/config"
	"fieldsync/internal/logger"
	"fieldsync/internal/models"
	"fieldsync/internal/repositories"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
	ErrUnauthorized = errors.New("unauthorized access")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

// JWTClaims represents the JWT token claims.
// Token carries the user's token attribute, which identifies the user.
type JWTClaims struct {
	Token string `json:"token"`
	jwt.RegisteredClaims
}

// authenticationService implements AuthenticationService
type authenticationService struct {
	logger    *logger.Logger
	userRepo  repositories.UserRepository
	jwtSecret []byte
	issuer    string
	ttl       time.Duration
}

// NewAuthenticationService creates a new authentication service
func NewAuthenticationService(
	cfg *config.Config,
	logger *logger.Logger,
	userRepo repositories.UserRepository,
) AuthenticationService {
	return &authenticationService{
		logger:    logger,
		userRepo:  userRepo,
		jwtSecret: []byte(cfg.Auth.JWTSecret),
		issuer:    cfg.Auth.Issuer,
		ttl:       time.Duration(cfg.Auth.TokenTTL) * time.Hour,
	}
}

// GenerateJWT generates a signed token for a user
func (s *authenticationService) GenerateJWT(ctx context.Context, user *models.User) (string, error) {
	s.logger.WithUser(user.ID).Info("Generating JWT token")

	now := time.Now()
	claims := JWTClaims{
		Token: user.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   user.ID,
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.WithUser(user.ID).WithError(err).Error("Failed to sign JWT token")
		return "", err
	}

	return tokenString, nil
}

// ValidateJWT verifies a HS256 token and returns the active user it identifies
func (s *authenticationService) ValidateJWT(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		s.logger.WithError(err).Warn("Failed to parse JWT token")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Token == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByToken(ctx, claims.Token)
	if err != nil {
		s.logger.WithError(err).Warn("User not found for JWT token")
		return nil, ErrUserNotFound
	}

	if !user.IsActive {
		return nil, ErrUnauthorized
	}

	return user, nil
}

// Login checks a username and password and issues a token for the user.
// Unknown users, inactive users and wrong passwords are indistinguishable.
func (s *authenticationService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		s.logger.WithField("username", username).Warn("Login for unknown user")
		return "", ErrInvalidCredentials
	}

	if !user.IsActive || !user.CheckPassword(password) {
		s.logger.WithUser(user.ID).Warn("Rejected login")
		return "", ErrInvalidCredentials
	}

	return s.GenerateJWT(ctx, user)
}

// TokenTTL is the lifetime of issued tokens, zero when they never expire
func (s *authenticationService) TokenTTL() time.Duration {
	return s.ttl
}
