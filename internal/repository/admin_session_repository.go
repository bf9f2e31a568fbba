package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"minimarket/internal/domain"
)

var (
	ErrAdminSessionNotFound = errors.New("admin session not found")
	ErrAdminSessionRevoked  = errors.New("admin session has been revoked")
)

// AdminSessionRepository stores refresh tokens issued to the admin panel
type AdminSessionRepository interface {
	Create(ctx context.Context, session *domain.AdminSession) error
	FindByToken(ctx context.Context, token string) (*domain.AdminSession, error)
	Revoke(ctx context.Context, token string) error
}

type adminSessionRepository struct {
	db *sql.DB
}

// NewAdminSessionRepository creates a new instance of AdminSessionRepository
func NewAdminSessionRepository(db *sql.DB) AdminSessionRepository {
	return &adminSessionRepository{db: db}
}

// Create inserts a new admin session
func (r *adminSessionRepository) Create(ctx context.Context, session *domain.AdminSession) error {
	query := `
		INSERT INTO admin_sessions (id, token, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.Token,
		session.ExpiresAt,
		session.CreatedAt,
		session.Revoked,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin session: %w", err)
	}

	return nil
}

// FindByToken retrieves a live admin session by its refresh token
func (r *adminSessionRepository) FindByToken(ctx context.Context, token string) (*domain.AdminSession, error) {
	query := `
		SELECT id, token, expires_at, created_at, revoked
		FROM admin_sessions
		WHERE token = $1
	`

	session := &domain.AdminSession{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.ID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminSessionNotFound
		}
		return nil, fmt.Errorf("failed to find admin session: %w", err)
	}

	if session.Revoked {
		return nil, ErrAdminSessionRevoked
	}

	return session, nil
}

// Revoke marks an admin session as revoked
func (r *adminSessionRepository) Revoke(ctx context.Context, token string) error {
	query := `UPDATE admin_sessions SET revoked = TRUE WHERE token = $1`

	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to revoke admin session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAdminSessionNotFound
	}

	return nil
}
