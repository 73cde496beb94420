package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"devicegalaxy/internal/database"
	"devicegalaxy/internal/models"
)

type CooldownRepository struct {
	db database.DBTX
}

func NewCooldownRepository(db database.DBTX) *CooldownRepository {
	return &CooldownRepository{db: db}
}

// Stamp is a single conditional UPDATE, so two concurrent requests for the
// same class cannot both pass.
func (r *CooldownRepository) Stamp(ctx context.Context, userID string, class models.ActionClass, now time.Time, interval time.Duration) (bool, time.Time, error) {
	const ensure = `INSERT INTO cooldowns (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, ensure, userID); err != nil {
		return false, time.Time{}, fmt.Errorf("ensure cooldown row: %w", err)
	}

	column := class.Column()
	stamp := fmt.Sprintf(`
		UPDATE cooldowns SET %[1]s = $2
		WHERE user_id = $1 AND (%[1]s IS NULL OR %[1]s <= $3)
		RETURNING %[1]s
	`, column)

	var stamped time.Time
	err := r.db.QueryRow(ctx, stamp, userID, now, now.Add(-interval)).Scan(&stamped)
	if err == nil {
		return true, stamped, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, time.Time{}, fmt.Errorf("stamp cooldown: %w", err)
	}

	var last time.Time
	read := fmt.Sprintf(`SELECT %s FROM cooldowns WHERE user_id = $1`, column)
	if err := r.db.QueryRow(ctx, read, userID).Scan(&last); err != nil {
		return false, time.Time{}, fmt.Errorf("read cooldown: %w", err)
	}
	return false, last, nil
}
