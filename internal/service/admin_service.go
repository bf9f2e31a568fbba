package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minimarket/internal/domain"
	"minimarket/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// Default token lifetimes
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour
)

var (
	ErrInvalidPIN      = errors.New("invalid admin pin")
	ErrPINNotSet       = errors.New("admin pin is not configured")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token has expired")
	ErrMissingPINInput = errors.New("admin pin or pin hash is required")
)

// AdminService guards the catalog management endpoints behind the admin PIN
type AdminService interface {
	Login(ctx context.Context, pin string) (accessToken, refreshToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the JWT claims
type Claims struct {
	SessionID uuid.UUID `json:"session_id"`
	Role      string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenSettings controls signing and token lifetimes
type TokenSettings struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type adminService struct {
	sessions repository.AdminSessionRepository
	pinHash  string
	tokens   TokenSettings
}

// NewAdminService creates an admin gate that checks PINs against pinHash
func NewAdminService(sessions repository.AdminSessionRepository, pinHash string, tokens TokenSettings) AdminService {
	if tokens.AccessExpiry <= 0 {
		tokens.AccessExpiry = AccessTokenExpiration
	}
	if tokens.RefreshExpiry <= 0 {
		tokens.RefreshExpiry = RefreshTokenExpiration
	}

	return &adminService{
		sessions: sessions,
		pinHash:  pinHash,
		tokens:   tokens,
	}
}

// ResolvePINHash returns the configured hash, or hashes the plain PIN
func ResolvePINHash(pin, pinHash string) (string, error) {
	if pinHash != "" {
		if _, err := bcrypt.Cost([]byte(pinHash)); err != nil {
			return "", fmt.Errorf("invalid admin pin hash: %w", err)
		}
		return pinHash, nil
	}
	if pin == "" {
		return "", ErrMissingPINInput
	}
	return HashPIN(pin)
}

// HashPIN hashes a PIN using bcrypt
func HashPIN(pin string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(pin), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// Login checks the PIN and opens an admin session
func (s *adminService) Login(ctx context.Context, pin string) (accessToken, refreshToken string, err error) {
	if s.pinHash == "" {
		return "", "", ErrPINNotSet
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.pinHash), []byte(pin)); err != nil {
		return "", "", ErrInvalidPIN
	}

	session := &domain.AdminSession{
		ID:        uuid.New(),
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(s.tokens.RefreshExpiry),
		CreatedAt: time.Now(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", "", fmt.Errorf("failed to create admin session: %w", err)
	}

	accessToken, err = s.generateAccessToken(session.ID)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, session.Token, nil
}

// Logout revokes the refresh token
func (s *adminService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrAdminSessionNotFound) {
			// already gone
			return nil
		}
		return fmt.Errorf("failed to revoke admin session: %w", err)
	}
	return nil
}

// RefreshToken issues a new access token for a live admin session
func (s *adminService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	session, err := s.sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrAdminSessionNotFound) || errors.Is(err, repository.ErrAdminSessionRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find admin session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		return "", ErrTokenExpired
	}

	accessToken, err := s.generateAccessToken(session.ID)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *adminService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokens.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *adminService) generateAccessToken(sessionID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		Role:      domain.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.tokens.Secret))
}
