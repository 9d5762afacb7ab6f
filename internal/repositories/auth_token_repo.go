package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/lecternhq/lectern/internal/database"
	"github.com/lecternhq/lectern/internal/models"
)

const authTokenColumns = `id, user_id, token_type, token_hash, expires_at, used_at,
		meta_email, meta_name, meta_prefix, meta_scopes, created_at`

// AuthTokenRepository handles persistence for hashed opaque tokens of every type.
type AuthTokenRepository struct {
	pool *pgxpool.Pool
}

func NewAuthTokenRepository(db *database.DB) *AuthTokenRepository {
	return &AuthTokenRepository{pool: db.Pool}
}

// scanAuthTokenRow handles nullable fields and populates an AuthToken model from a database row
func scanAuthTokenRow(scanner rowScanner) (*models.AuthToken, error) {
	var token models.AuthToken
	var tokenType string
	var usedAt *time.Time
	var metaEmail, metaName, metaPrefix *string

	err := scanner.Scan(
		&token.ID, &token.UserID, &tokenType, &token.TokenHash,
		&token.ExpiresAt, &usedAt,
		&metaEmail, &metaName, &metaPrefix, pq.Array(&token.Metadata.Scopes),
		&token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	token.Type = models.TokenType(tokenType)
	token.UsedAt = usedAt
	if metaEmail != nil {
		token.Metadata.Email = *metaEmail
	}
	if metaName != nil {
		token.Metadata.Name = *metaName
	}
	if metaPrefix != nil {
		token.Metadata.Prefix = *metaPrefix
	}

	return &token, nil
}

func scanAuthTokenRows(rows pgx.Rows) ([]*models.AuthToken, error) {
	defer rows.Close()

	tokens := make([]*models.AuthToken, 0)
	for rows.Next() {
		token, err := scanAuthTokenRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auth token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token rows: %w", err)
	}

	return tokens, nil
}

// Insert persists a new token row. Each issuance is an independent insert.
func (r *AuthTokenRepository) Insert(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error) {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO auth_tokens (id, user_id, token_type, token_hash, expires_at,
			meta_email, meta_name, meta_prefix, meta_scopes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + authTokenColumns

	var metaEmail, metaName, metaPrefix *string
	if token.Metadata.Email != "" {
		metaEmail = &token.Metadata.Email
	}
	if token.Metadata.Name != "" {
		metaName = &token.Metadata.Name
	}
	if token.Metadata.Prefix != "" {
		metaPrefix = &token.Metadata.Prefix
	}

	return scanAuthTokenRow(r.pool.QueryRow(ctx, query,
		token.ID, token.UserID, string(token.Type), token.TokenHash, token.ExpiresAt,
		metaEmail, metaName, metaPrefix, pq.Array(token.Metadata.Scopes), token.CreatedAt,
	))
}

// GetValidByTypeAndOwner returns the live tokens of one type for one owner.
func (r *AuthTokenRepository) GetValidByTypeAndOwner(ctx context.Context, tokenType models.TokenType, userID string) ([]*models.AuthToken, error) {
	query := `
		SELECT ` + authTokenColumns + `
		FROM auth_tokens
		WHERE token_type = $1 AND user_id = $2 AND used_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, string(tokenType), userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanAuthTokenRows(rows)
}

// GetAllValidByType returns every live token of a type system-wide. This feeds
// the hash-verification scan: salted hashes cannot be looked up by equality.
func (r *AuthTokenRepository) GetAllValidByType(ctx context.Context, tokenType models.TokenType) ([]*models.AuthToken, error) {
	query := `
		SELECT ` + authTokenColumns + `
		FROM auth_tokens
		WHERE token_type = $1 AND used_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, string(tokenType))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanAuthTokenRows(rows)
}

// ListByTypeAndOwner returns all tokens of a type for an owner, including
// consumed and expired ones. Used for API token listings.
func (r *AuthTokenRepository) ListByTypeAndOwner(ctx context.Context, tokenType models.TokenType, userID string) ([]*models.AuthToken, error) {
	query := `
		SELECT ` + authTokenColumns + `
		FROM auth_tokens
		WHERE token_type = $1 AND user_id = $2
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, string(tokenType), userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanAuthTokenRows(rows)
}

// MarkUsed transitions a token to consumed. The transition is irreversible;
// a token already consumed is reported as ErrNotFound.
func (r *AuthTokenRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	query := `UPDATE auth_tokens SET used_at = $1 WHERE id = $2 AND used_at IS NULL`

	result, err := r.pool.Exec(ctx, query, usedAt, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// MarkAllUsedForOwner revokes every outstanding token for an owner, optionally
// restricted to one type. Used for security resets and the single-outstanding
// policy on verification and reset tokens.
func (r *AuthTokenRepository) MarkAllUsedForOwner(ctx context.Context, userID string, tokenType *models.TokenType, usedAt time.Time) (int64, error) {
	query := `
		UPDATE auth_tokens SET used_at = $1
		WHERE user_id = $2 AND used_at IS NULL AND expires_at > NOW()
	`
	args := []interface{}{usedAt, userID}

	if tokenType != nil {
		query += ` AND token_type = $3`
		args = append(args, string(*tokenType))
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// DeleteExpired removes tokens whose expiry is before the cutoff. Idempotent.
func (r *AuthTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM auth_tokens WHERE expires_at < $1`

	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// DeleteUsed removes consumed tokens older than the retention cutoff. Idempotent.
func (r *AuthTokenRepository) DeleteUsed(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM auth_tokens WHERE used_at IS NOT NULL AND used_at < $1`

	result, err := r.pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
