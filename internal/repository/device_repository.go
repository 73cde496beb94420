package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"devicegalaxy/internal/database"
	"devicegalaxy/internal/models"
)

type DeviceRepository struct {
	db database.DBTX
}

func NewDeviceRepository(db database.DBTX) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `
	id, user_id, name, description, additional,
	cpu_id, gpu_id, memory_id, storage_id, os_id, brand_id,
	tag_ids, internal_images, external_images, created_at, updated_at`

func scanDevice(row scanner) (models.Device, error) {
	var device models.Device
	err := row.Scan(
		&device.ID,
		&device.UserID,
		&device.Name,
		&device.Description,
		&device.Additional,
		&device.Attributes.CPU,
		&device.Attributes.GPU,
		&device.Attributes.Memory,
		&device.Attributes.Storage,
		&device.Attributes.OS,
		&device.Attributes.Brand,
		&device.TagIDs,
		&device.InternalImages,
		&device.ExternalImages,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Device{}, ErrDeviceNotFound
	}
	return device, err
}

func collectDevices(rows pgx.Rows) ([]models.Device, error) {
	defer rows.Close()

	devices := make([]models.Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

func (r *DeviceRepository) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (r *DeviceRepository) Get(ctx context.Context, userID string, id int64) (models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = $1 AND id = $2`
	return scanDevice(r.db.QueryRow(ctx, query, userID, id))
}

func (r *DeviceRepository) Insert(ctx context.Context, device models.Device) (models.Device, error) {
	const query = `
		INSERT INTO devices (
			user_id, name, description, additional,
			cpu_id, gpu_id, memory_id, storage_id, os_id, brand_id,
			tag_ids, internal_images, external_images, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW()
		)
		RETURNING id, created_at, updated_at
	`

	device.TagIDs = nonNilInts(device.TagIDs)
	device.InternalImages = nonNilStrings(device.InternalImages)
	device.ExternalImages = nonNilStrings(device.ExternalImages)

	err := r.db.QueryRow(ctx, query,
		device.UserID,
		device.Name,
		device.Description,
		device.Additional,
		device.Attributes.CPU,
		device.Attributes.GPU,
		device.Attributes.Memory,
		device.Attributes.Storage,
		device.Attributes.OS,
		device.Attributes.Brand,
		device.TagIDs,
		device.InternalImages,
		device.ExternalImages,
	).Scan(&device.ID, &device.CreatedAt, &device.UpdatedAt)
	if err != nil {
		return models.Device{}, fmt.Errorf("insert device: %w", err)
	}
	return device, nil
}

// Update rewrites every editable column of an owned device.
func (r *DeviceRepository) Update(ctx context.Context, device models.Device) error {
	const query = `
		UPDATE devices SET
			name = $3,
			description = $4,
			additional = $5,
			cpu_id = $6,
			gpu_id = $7,
			memory_id = $8,
			storage_id = $9,
			os_id = $10,
			brand_id = $11,
			tag_ids = $12,
			internal_images = $13,
			external_images = $14,
			updated_at = NOW()
		WHERE user_id = $1 AND id = $2
	`

	tag, err := r.db.Exec(ctx, query,
		device.UserID,
		device.ID,
		device.Name,
		device.Description,
		device.Additional,
		device.Attributes.CPU,
		device.Attributes.GPU,
		device.Attributes.Memory,
		device.Attributes.Storage,
		device.Attributes.OS,
		device.Attributes.Brand,
		nonNilInts(device.TagIDs),
		nonNilStrings(device.InternalImages),
		nonNilStrings(device.ExternalImages),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) SetInternalImages(ctx context.Context, id int64, images []string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE devices SET internal_images = $2 WHERE id = $1`,
		id, nonNilStrings(images))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) SetTags(ctx context.Context, id int64, tagIDs []int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE devices SET tag_ids = $2 WHERE id = $1`,
		id, nonNilInts(tagIDs))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) Delete(ctx context.Context, userID string, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM devices WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) List(ctx context.Context, userID string, q models.DeviceQuery) (models.DevicePage, error) {
	where, args := deviceWhere(userID, q.Filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM devices WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return models.DevicePage{}, fmt.Errorf("count devices: %w", err)
	}

	listQuery := `SELECT ` + deviceColumns + ` FROM devices WHERE ` + where +
		` ORDER BY ` + deviceOrder(q.Sort)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		listQuery += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		listQuery += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return models.DevicePage{}, fmt.Errorf("list devices: %w", err)
	}
	devices, err := collectDevices(rows)
	if err != nil {
		return models.DevicePage{}, err
	}
	return models.DevicePage{Devices: devices, Total: total}, nil
}

// deviceWhere builds the predicate for a filtered listing. Attribute kinds
// are AND-ed, values within one kind and tag ids are OR-ed.
func deviceWhere(userID string, f models.DeviceFilter) (string, []any) {
	args := []any{userID}
	clauses := []string{"user_id = $1"}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, kind := range models.AttributeKinds {
		ids := f.Attributes[kind]
		if len(ids) == 0 {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = ANY(%s)", kind.Column(), next(ids)))
	}

	if name := strings.TrimSpace(f.Name); name != "" {
		clauses = append(clauses, fmt.Sprintf(`name ILIKE %s ESCAPE '\'`, next("%"+escapeLike(name)+"%")))
	}

	if len(f.TagIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf(
			"tag_ids @> ANY (ARRAY(SELECT jsonb_build_array(t) FROM unnest(%s::bigint[]) AS t))",
			next(f.TagIDs)))
	}

	if f.DeviceIDs != nil {
		if len(f.DeviceIDs) == 0 {
			clauses = append(clauses, "FALSE")
		} else {
			clauses = append(clauses, fmt.Sprintf("id = ANY(%s)", next(f.DeviceIDs)))
		}
	}

	return strings.Join(clauses, " AND "), args
}

func deviceOrder(sort models.DeviceSort) string {
	switch sort {
	case models.SortNameDesc:
		return "lower(name) DESC, id DESC"
	case models.SortDateAsc:
		return "created_at ASC, id ASC"
	case models.SortDateDesc:
		return "created_at DESC, id DESC"
	case models.SortUpdatedDesc:
		return "updated_at DESC, id DESC"
	default:
		return "lower(name) ASC, id ASC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *DeviceRepository) ListByTag(ctx context.Context, userID string, tagID int64) ([]models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE user_id = $1 AND tag_ids @> jsonb_build_array($2::bigint)
		ORDER BY id`
	rows, err := r.db.Query(ctx, query, userID, tagID)
	if err != nil {
		return nil, err
	}
	return collectDevices(rows)
}

func (r *DeviceRepository) IDsByUser(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM devices WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *DeviceRepository) ReferencesAttribute(ctx context.Context, userID string, kind models.AttributeKind, attributeID int64) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM devices WHERE user_id = $1 AND %s = $2)`,
		kind.Column())
	var exists bool
	err := r.db.QueryRow(ctx, query, userID, attributeID).Scan(&exists)
	return exists, err
}
