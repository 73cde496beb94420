package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"devicegalaxy/internal/database"
	"devicegalaxy/internal/models"
)

type UserRepository struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, email, password_hash, name, role, status, banned, ban_reason, suspend_reason,
	description, image, subdomain, subdomain_share_id, discord_verify_token,
	two_factor_enabled, created_at, updated_at`

func scanUser(row scanner) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Status,
		&user.Banned,
		&user.BanReason,
		&user.SuspendReason,
		&user.Description,
		&user.Image,
		&user.Subdomain,
		&user.SubdomainShareID,
		&user.DiscordVerifyToken,
		&user.TwoFactorEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, name, role, status, description, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.Status,
		user.Description,
	)
	if database.IsUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// FindBySubdomain matches the stored subdomain exactly.
func (r *UserRepository) FindBySubdomain(ctx context.Context, subdomain string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE subdomain = $1`
	return scanUser(r.db.QueryRow(ctx, query, subdomain))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, name string, description string) error {
	const query = `UPDATE users SET name = $2, description = $3, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, name, description)
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id string, email string) error {
	const query = `UPDATE users SET email = $2, updated_at = NOW() WHERE id = $1`
	err := r.exec(ctx, query, id, email)
	if database.IsUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, passwordHash)
}

func (r *UserRepository) UpdateImage(ctx context.Context, id string, image *string) error {
	const query = `UPDATE users SET image = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, image)
}

func (r *UserRepository) SetSubdomain(ctx context.Context, id string, subdomain *string, shareID *string) error {
	const query = `
		UPDATE users
		SET subdomain = $2,
		    subdomain_share_id = $3,
		    discord_verify_token = CASE WHEN $2::text IS NULL THEN NULL ELSE discord_verify_token END,
		    updated_at = NOW()
		WHERE id = $1
	`
	err := r.exec(ctx, query, id, subdomain, shareID)
	if database.IsUniqueViolation(err, "users_subdomain_key") {
		return ErrSubdomainTaken
	}
	return err
}

func (r *UserRepository) SetDiscordToken(ctx context.Context, id string, token *string) error {
	const query = `UPDATE users SET discord_verify_token = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, token)
}

func (r *UserRepository) SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error {
	const query = `UPDATE users SET two_factor_enabled = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, enabled)
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus, reason *string) error {
	const query = `UPDATE users SET status = $2, suspend_reason = $3, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, status, reason)
}

func (r *UserRepository) SetBanned(ctx context.Context, id string, banned bool, reason *string) error {
	const query = `UPDATE users SET banned = $2, ban_reason = $3, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, banned, reason)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}
