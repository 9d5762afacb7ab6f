package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lecternhq/lectern/internal/database"
	"github.com/lecternhq/lectern/internal/models"
	"github.com/lecternhq/lectern/internal/repositories"
	pkgauth "github.com/lecternhq/lectern/pkg/auth"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("lectern"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Suppress goose logs
	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs a stdlib DB connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"auth_tokens",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (*repositories.UserRepository, *repositories.AuthTokenRepository) {
	return repositories.NewUserRepository(db), repositories.NewAuthTokenRepository(db)
}

// SeedUser inserts an active, verified user with a hashed password
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password, role string) (*models.User, error) {
	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (email, password_hash, role, status, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, NOW(), NOW())
		RETURNING id, email, role, status, email_verified, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, email, hashedPassword, role, models.StatusActive).Scan(
		&user.ID,
		&user.Email,
		&user.Role,
		&user.Status,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	user.PasswordHash = hashedPassword

	return &user, nil
}

// SeedToken inserts a hashed opaque token for a user and returns the plaintext
func SeedToken(ctx context.Context, pool *pgxpool.Pool, userID string, tokenType models.TokenType, ttl time.Duration) (string, error) {
	plaintext := fmt.Sprintf("seed-%s-%s", tokenType, userID)
	hash, err := pkgauth.HashSecret(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}

	query := `
		INSERT INTO auth_tokens (user_id, token_type, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`

	var id string
	if err := pool.QueryRow(ctx, query, userID, tokenType, hash, time.Now().Add(ttl)).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert token: %w", err)
	}

	return plaintext, nil
}

// SeedExpiredToken inserts a token whose expiry is already in the past
func SeedExpiredToken(ctx context.Context, pool *pgxpool.Pool, userID string, tokenType models.TokenType) (string, error) {
	return SeedToken(ctx, pool, userID, tokenType, -time.Hour)
}

// LockAccount sets failed attempts and a lockout window directly in the database
func LockAccount(ctx context.Context, pool *pgxpool.Pool, userID string, until time.Time) error {
	query := `UPDATE users SET failed_attempts = 5, locked_until = $1 WHERE id = $2`
	if _, err := pool.Exec(ctx, query, until, userID); err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}
	return nil
}
