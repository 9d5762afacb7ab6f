package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lecternhq/lectern/internal/database"
	"github.com/lecternhq/lectern/internal/models"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, role, status,
		email_verified, must_change_password, failed_attempts, locked_until,
		last_login_at, last_activity_at, password_changed_at, created_at, updated_at`

type UserRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var username, passwordHash *string
	var lockedUntil, lastLoginAt, lastActivityAt, passwordChangedAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &username, &passwordHash,
		&user.FirstName, &user.LastName, &user.Role, &user.Status,
		&user.EmailVerified, &user.MustChangePassword, &user.FailedAttempts, &lockedUntil,
		&lastLoginAt, &lastActivityAt, &passwordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.Username = username
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.LockedUntil = lockedUntil
	user.LastLoginAt = lastLoginAt
	user.LastActivityAt = lastActivityAt
	user.PasswordChangedAt = passwordChangedAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

// GetByEmailOrUsername resolves a login identifier against either unique column.
func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, identifier))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	if user.Status == "" {
		user.Status = models.StatusPendingVerification
	}

	query := `
		INSERT INTO users (id, email, username, password_hash, first_name, last_name, role, status,
			email_verified, must_change_password, failed_attempts, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + userColumns

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, passwordHash,
		user.FirstName, user.LastName, user.Role, user.Status,
		user.EmailVerified, user.MustChangePassword, user.FailedAttempts,
		user.PasswordChangedAt, user.CreatedAt, user.UpdatedAt,
	))
}

// Update persists profile and status fields. Secret and lockout fields have
// dedicated write paths.
func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, role = $3, status = $4,
			email_verified = $5, must_change_password = $6, updated_at = $7
		WHERE id = $8
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.FirstName, user.LastName, user.Role, user.Status,
		user.EmailVerified, user.MustChangePassword, user.UpdatedAt, id,
	))
}

// GetByIdentifierForUpdate loads the credential row inside tx with a row lock,
// so concurrent login attempts for the same identity serialize on it.
func (r *UserRepository) GetByIdentifierForUpdate(ctx context.Context, tx pgx.Tx, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $1 FOR UPDATE`
	return scanUserRow(tx.QueryRow(ctx, query, identifier))
}

// SaveAuthState writes the lockout and activity fields mutated by login
// outcomes. Must run inside the same transaction that locked the row.
func (r *UserRepository) SaveAuthState(ctx context.Context, tx pgx.Tx, user *models.User) error {
	query := `
		UPDATE users
		SET failed_attempts = $1, locked_until = $2, last_login_at = $3,
			last_activity_at = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := tx.Exec(ctx, query,
		user.FailedAttempts, user.LockedUntil, user.LastLoginAt,
		user.LastActivityAt, time.Now(), user.ID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the password hash and stamps the change time.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, must_change_password = false,
			password_changed_at = $2, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Unlock clears the lockout counters (admin unlock).
func (r *UserRepository) Unlock(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, locked_until = NULL, updated_at = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetStatus changes the account lifecycle status. Users are soft-deactivated
// with StatusInactive, never deleted.
func (r *UserRepository) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// List returns users ordered by creation time, most recent first.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}
