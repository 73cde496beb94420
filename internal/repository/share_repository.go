package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"devicegalaxy/internal/database"
	"devicegalaxy/internal/models"
)

type ShareRepository struct {
	db database.DBTX
}

func NewShareRepository(db database.DBTX) *ShareRepository {
	return &ShareRepository{db: db}
}

const shareColumns = `id, user_id, type, shared_device, shared_tags, internal, created_at`

func scanShare(row scanner) (models.Share, error) {
	var (
		share        models.Share
		shareType    int16
		sharedDevice *int64
		sharedTags   []int64
	)
	err := row.Scan(
		&share.ID,
		&share.UserID,
		&shareType,
		&sharedDevice,
		&sharedTags,
		&share.Internal,
		&share.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Share{}, ErrShareNotFound
	}
	if err != nil {
		return models.Share{}, err
	}

	share.Visibility, err = models.DecodeVisibility(models.ShareType(shareType), sharedDevice, sharedTags)
	if err != nil {
		return models.Share{}, fmt.Errorf("share %s: %w", share.ID, err)
	}
	return share, nil
}

func (r *ShareRepository) Get(ctx context.Context, id string) (models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE id = $1`
	return scanShare(r.db.QueryRow(ctx, query, id))
}

// Insert reports ErrShareIDTaken when the id exists. The conflict is
// absorbed by ON CONFLICT so an enclosing transaction stays usable.
func (r *ShareRepository) Insert(ctx context.Context, share models.Share) (models.Share, error) {
	const query = `
		INSERT INTO shares (id, user_id, type, shared_device, shared_tags, internal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`
	shareType, sharedDevice, sharedTags := models.EncodeVisibility(share.Visibility)
	err := r.db.QueryRow(ctx, query,
		share.ID,
		share.UserID,
		int16(shareType),
		sharedDevice,
		nonNilInts(sharedTags),
		share.Internal,
	).Scan(&share.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Share{}, ErrShareIDTaken
	}
	if err != nil {
		return models.Share{}, fmt.Errorf("insert share: %w", err)
	}
	return share, nil
}

// ListVisible returns the user's shares except the one backing the subdomain.
func (r *ShareRepository) ListVisible(ctx context.Context, userID string) ([]models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares
		WHERE user_id = $1 AND NOT internal
		ORDER BY created_at DESC, id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shares := make([]models.Share, 0)
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

func (r *ShareRepository) DeleteVisible(ctx context.Context, userID string, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM shares WHERE user_id = $1 AND id = $2 AND NOT internal`,
		userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShareNotFound
	}
	return nil
}

func (r *ShareRepository) DeleteAllVisible(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM shares WHERE user_id = $1 AND NOT internal`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ShareRepository) GetInternal(ctx context.Context, userID string) (models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE user_id = $1 AND internal`
	return scanShare(r.db.QueryRow(ctx, query, userID))
}

func (r *ShareRepository) DeleteInternal(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM shares WHERE user_id = $1 AND internal`, userID)
	return err
}
