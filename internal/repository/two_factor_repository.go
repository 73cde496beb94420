package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"devicegalaxy/internal/database"
)

type TwoFactorRepository struct {
	db database.DBTX
}

func NewTwoFactorRepository(db database.DBTX) *TwoFactorRepository {
	return &TwoFactorRepository{db: db}
}

// SaveSecret replaces any pending or active secret for the user.
func (r *TwoFactorRepository) SaveSecret(ctx context.Context, userID string, secret string) error {
	const query = `
		INSERT INTO two_factor (user_id, secret, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET secret = EXCLUDED.secret, created_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, userID, secret)
	return err
}

func (r *TwoFactorRepository) GetSecret(ctx context.Context, userID string) (string, error) {
	var secret string
	err := r.db.QueryRow(ctx, `SELECT secret FROM two_factor WHERE user_id = $1`, userID).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSecretNotFound
	}
	return secret, err
}
