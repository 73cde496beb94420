package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"devicegalaxy/internal/database"
	"devicegalaxy/internal/models"
)

type TagRepository struct {
	db database.DBTX
}

func NewTagRepository(db database.DBTX) *TagRepository {
	return &TagRepository{db: db}
}

const tagColumns = `id, user_id, name, color, text_color, created_at, updated_at`

func scanTag(row scanner) (models.Tag, error) {
	var tag models.Tag
	err := row.Scan(
		&tag.ID,
		&tag.UserID,
		&tag.Name,
		&tag.Color,
		&tag.TextColor,
		&tag.CreatedAt,
		&tag.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tag{}, ErrTagNotFound
	}
	return tag, err
}

func (r *TagRepository) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tags WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (r *TagRepository) Get(ctx context.Context, userID string, id int64) (models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE user_id = $1 AND id = $2`
	return scanTag(r.db.QueryRow(ctx, query, userID, id))
}

func (r *TagRepository) ListByUser(ctx context.Context, userID string) ([]models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE user_id = $1 ORDER BY lower(name), id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]models.Tag, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *TagRepository) FilterOwned(ctx context.Context, userID string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id FROM tags WHERE user_id = $1 AND id = ANY($2) ORDER BY id`,
		userID, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *TagRepository) Insert(ctx context.Context, tag models.Tag) (models.Tag, error) {
	const query = `
		INSERT INTO tags (user_id, name, color, text_color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, tag.UserID, tag.Name, tag.Color, tag.TextColor).
		Scan(&tag.ID, &tag.CreatedAt, &tag.UpdatedAt)
	if err != nil {
		return models.Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return tag, nil
}

func (r *TagRepository) Update(ctx context.Context, tag models.Tag) error {
	const query = `
		UPDATE tags
		SET name = $3, color = $4, text_color = $5, updated_at = NOW()
		WHERE user_id = $1 AND id = $2
	`
	res, err := r.db.Exec(ctx, query, tag.UserID, tag.ID, tag.Name, tag.Color, tag.TextColor)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrTagNotFound
	}
	return nil
}

func (r *TagRepository) Delete(ctx context.Context, userID string, id int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM tags WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrTagNotFound
	}
	return nil
}
