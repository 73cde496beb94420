package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"devicegalaxy/internal/database"
	"devicegalaxy/internal/models"
)

type AttributeRepository struct {
	db database.DBTX
}

func NewAttributeRepository(db database.DBTX) *AttributeRepository {
	return &AttributeRepository{db: db}
}

func scanAttribute(row scanner) (models.Attribute, error) {
	var attr models.Attribute
	err := row.Scan(&attr.ID, &attr.UserID, &attr.Kind, &attr.Value, &attr.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Attribute{}, ErrAttributeNotFound
	}
	return attr, err
}

// FindOrCreate relies on the (user_id, kind, value) key: a concurrent
// insert of the same value loses the race and reads the winner's row.
func (r *AttributeRepository) FindOrCreate(ctx context.Context, userID string, kind models.AttributeKind, value string, displayName string) (models.Attribute, error) {
	const insert = `
		INSERT INTO attributes (user_id, kind, value, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, kind, value) DO NOTHING
		RETURNING id, user_id, kind, value, display_name
	`
	attr, err := scanAttribute(r.db.QueryRow(ctx, insert, userID, kind, value, displayName))
	if err == nil {
		return attr, nil
	}
	if !errors.Is(err, ErrAttributeNotFound) {
		return models.Attribute{}, fmt.Errorf("insert attribute: %w", err)
	}

	const read = `
		SELECT id, user_id, kind, value, display_name
		FROM attributes
		WHERE user_id = $1 AND kind = $2 AND value = $3
	`
	return scanAttribute(r.db.QueryRow(ctx, read, userID, kind, value))
}

func (r *AttributeRepository) Delete(ctx context.Context, userID string, kind models.AttributeKind, id int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM attributes WHERE user_id = $1 AND kind = $2 AND id = $3`,
		userID, kind, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttributeNotFound
	}
	return nil
}

func (r *AttributeRepository) ListByUser(ctx context.Context, userID string) ([]models.Attribute, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, kind, value, display_name
		FROM attributes
		WHERE user_id = $1
		ORDER BY kind, lower(display_name), id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attrs := make([]models.Attribute, 0)
	for rows.Next() {
		attr, err := scanAttribute(rows)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, rows.Err()
}

// Filters lists, per kind, the attributes referenced by at least one of
// the user's devices together with the number of referencing devices.
func (r *AttributeRepository) Filters(ctx context.Context, userID string) (map[models.AttributeKind][]models.FilterOption, error) {
	const query = `
		SELECT a.kind, a.id, a.display_name, COUNT(d.id)
		FROM attributes a
		JOIN devices d ON d.user_id = a.user_id AND CASE a.kind
			WHEN 'cpu' THEN d.cpu_id
			WHEN 'gpu' THEN d.gpu_id
			WHEN 'memory' THEN d.memory_id
			WHEN 'storage' THEN d.storage_id
			WHEN 'os' THEN d.os_id
			WHEN 'brand' THEN d.brand_id
		END = a.id
		WHERE a.user_id = $1
		GROUP BY a.kind, a.id, a.display_name
		ORDER BY a.kind, lower(a.display_name), a.id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	filters := make(map[models.AttributeKind][]models.FilterOption, len(models.AttributeKinds))
	for _, kind := range models.AttributeKinds {
		filters[kind] = []models.FilterOption{}
	}
	for rows.Next() {
		var (
			kind   models.AttributeKind
			option models.FilterOption
		)
		if err := rows.Scan(&kind, &option.ID, &option.DisplayName, &option.Count); err != nil {
			return nil, err
		}
		filters[kind] = append(filters[kind], option)
	}
	return filters, rows.Err()
}

// DeleteOrphans removes every attribute no device of its owner references.
func (r *AttributeRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	const query = `
		DELETE FROM attributes a
		WHERE NOT EXISTS (
			SELECT 1 FROM devices d
			WHERE d.user_id = a.user_id
			  AND a.id IN (d.cpu_id, d.gpu_id, d.memory_id, d.storage_id, d.os_id, d.brand_id)
		)
	`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
