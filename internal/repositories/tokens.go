package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/watchclub/backend/internal/auth"
	"github.com/watchclub/backend/internal/db"
	"github.com/watchclub/backend/internal/models"
)

// PostgresTokenRepository persists one-time email tokens to PostgreSQL.
type PostgresTokenRepository struct {
	pool db.Pool
}

// NewPostgresTokenRepository constructs a token repository backed by PostgreSQL.
func NewPostgresTokenRepository(pool db.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

// Save stores a token, replacing any earlier token of the same kind for the
// same user so a re-issued code invalidates its predecessor.
func (r *PostgresTokenRepository) Save(ctx context.Context, token models.OneTimeToken) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO one_time_tokens (value, kind, user_id, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, kind)
        DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
    `, token.Value, token.Kind, token.UserID, token.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert one-time token: %w", err)
	}

	return nil
}

// FindValid resolves an unexpired token by kind and value.
func (r *PostgresTokenRepository) FindValid(ctx context.Context, kind, value string, now time.Time) (models.OneTimeToken, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.OneTimeToken{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT value, kind, user_id, expires_at
        FROM one_time_tokens
        WHERE kind = $1 AND value = $2 AND expires_at > $3
    `, kind, value, now.UTC())

	var token models.OneTimeToken
	var expiresAt time.Time
	if err := row.Scan(&token.Value, &token.Kind, &token.UserID, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OneTimeToken{}, auth.ErrTokenNotFound
		}
		return models.OneTimeToken{}, fmt.Errorf("select one-time token: %w", err)
	}

	token.ExpiresAt = expiresAt.UTC()
	return token, nil
}

// Consume deletes a redeemed token so it cannot be used twice.
func (r *PostgresTokenRepository) Consume(ctx context.Context, value string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM one_time_tokens WHERE value = $1`, value)
	if err != nil {
		return fmt.Errorf("delete one-time token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrTokenNotFound
	}

	return nil
}

var _ auth.TokenStore = (*PostgresTokenRepository)(nil)
