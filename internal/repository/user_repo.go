package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"callcenter-ops/internal/model"
)

const userColumns = `id, email, name, password_hash, role, is_password_changed, team_id,
	token_generation, reset_token_hash, reset_token_expiry, reset_token_attempts,
	created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsPasswordChanged,
		&u.TeamID, &u.TokenGeneration, &u.ResetTokenHash, &u.ResetTokenExpiry,
		&u.ResetTokenAttempts, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email)))
}

func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, role, is_password_changed, team_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 RETURNING `+userColumns,
		u.Email, u.Name, u.PasswordHash, u.Role, u.IsPasswordChanged, u.TeamID, now)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.User{}, model.ErrUserAlreadyExists
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// UpdatePassword sets a new hash, marks the password as changed and bumps
// the token generation so outstanding refresh credentials stop resolving.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $2, is_password_changed = true,
		     token_generation = token_generation + 1, updated_at = $3
		 WHERE id = $1`,
		userID, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// SetResetToken stores the reset triple, overwriting any prior request.
// At most one reset is outstanding per user.
func (r *UserRepository) SetResetToken(ctx context.Context, userID int64, tokenHash string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET reset_token_hash = $2, reset_token_expiry = $3, reset_token_attempts = 0, updated_at = $4
		 WHERE id = $1`,
		userID, tokenHash, expiry.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ClearResetToken(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET reset_token_hash = NULL, reset_token_expiry = NULL, reset_token_attempts = 0, updated_at = $2
		 WHERE id = $1`,
		userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

// IncrementResetAttempts is a single atomic statement so concurrent failed
// consume attempts never lose increments.
func (r *UserRepository) IncrementResetAttempts(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET reset_token_attempts = reset_token_attempts + 1, updated_at = $2
		 WHERE id = $1`,
		userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment reset attempts: %w", err)
	}
	return nil
}

// ConsumeResetToken atomically installs the new password hash and clears
// the reset triple. The WHERE guard makes concurrent consumes for the same
// user mutually exclusive: only the statement that still sees an active
// reset wins, everyone else observes zero rows.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, userID int64, passwordHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $2, is_password_changed = true,
		     reset_token_hash = NULL, reset_token_expiry = NULL, reset_token_attempts = 0,
		     token_generation = token_generation + 1, updated_at = $3
		 WHERE id = $1 AND reset_token_hash IS NOT NULL`,
		userID, passwordHash, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("consume reset token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role model.Role) ([]model.PublicUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, role, is_password_changed, team_id
		 FROM users WHERE role = $1 ORDER BY name`, role)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	users := make([]model.PublicUser, 0)
	for rows.Next() {
		var u model.PublicUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsPasswordChanged, &u.TeamID); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
