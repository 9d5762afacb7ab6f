package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/models"
	pkgauth "github.com/lecternhq/lectern/pkg/auth"
	pkglogger "github.com/lecternhq/lectern/pkg/logger"
)

// AuthTokenRepository defines the interface for token persistence operations
type AuthTokenRepository interface {
	Insert(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error)
	GetValidByTypeAndOwner(ctx context.Context, tokenType models.TokenType, userID string) ([]*models.AuthToken, error)
	GetAllValidByType(ctx context.Context, tokenType models.TokenType) ([]*models.AuthToken, error)
	ListByTypeAndOwner(ctx context.Context, tokenType models.TokenType, userID string) ([]*models.AuthToken, error)
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
	MarkAllUsedForOwner(ctx context.Context, userID string, tokenType *models.TokenType, usedAt time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	DeleteUsed(ctx context.Context, olderThan time.Time) (int64, error)
}

// MFACodeLength is the number of digits in an MFA challenge code.
const MFACodeLength = 6

// TokenService manages the lifecycle of opaque security tokens: issuance,
// validation, consumption, revocation and retention sweeps. Plaintext tokens
// exist only in transit; storage only ever sees their salted hashes.
type TokenService struct {
	repo   AuthTokenRepository
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

// NewTokenService creates a new TokenService
func NewTokenService(repo AuthTokenRepository, logger *slog.Logger, audit *pkglogger.AuditLogger) *TokenService {
	return &TokenService{
		repo:   repo,
		logger: logger,
		audit:  audit,
	}
}

// Issue creates a token of the given type for the owner and returns the
// plaintext once. A zero ttl selects the type's default. For types with the
// single-outstanding policy, previously live tokens are invalidated first.
func (s *TokenService) Issue(ctx context.Context, ownerID string, tokenType models.TokenType, ttl time.Duration, metadata models.TokenMetadata) (string, *models.AuthToken, error) {
	if !tokenType.IsKnown() {
		return "", nil, fmt.Errorf("unknown token type: %s", tokenType)
	}

	var plaintext string
	var err error
	switch tokenType {
	case models.TokenTypeMFA:
		plaintext, err = auth.GenerateNumericCode(MFACodeLength)
	case models.TokenTypeAPI:
		plaintext, err = auth.GenerateAPIToken()
	default:
		plaintext, err = auth.GenerateOpaqueToken()
	}
	if err != nil {
		s.logger.Error("failed to generate token", slog.String("type", string(tokenType)), slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	return s.issuePlaintext(ctx, ownerID, tokenType, plaintext, ttl, metadata)
}

func (s *TokenService) issuePlaintext(ctx context.Context, ownerID string, tokenType models.TokenType, plaintext string, ttl time.Duration, metadata models.TokenMetadata) (string, *models.AuthToken, error) {
	if ttl <= 0 {
		ttl = tokenType.DefaultTTL()
	}

	if tokenType.SingleOutstanding() {
		if _, err := s.repo.MarkAllUsedForOwner(ctx, ownerID, &tokenType, time.Now()); err != nil {
			s.logger.Error("failed to invalidate outstanding tokens",
				slog.String("user_id", ownerID),
				slog.String("type", string(tokenType)),
				slog.Any("error", err))
			return "", nil, translateStoreError(err)
		}
	}

	tokenHash, err := pkgauth.HashSecret(plaintext)
	if err != nil {
		s.logger.Error("failed to hash token", slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	if tokenType == models.TokenTypeAPI {
		metadata.Prefix = auth.TokenDisplayPrefix(plaintext)
	}

	token := &models.AuthToken{
		UserID:    ownerID,
		Type:      tokenType,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(ttl),
		Metadata:  metadata,
	}

	created, err := s.repo.Insert(ctx, token)
	if err != nil {
		s.logger.Error("failed to persist token",
			slog.String("user_id", ownerID),
			slog.String("type", string(tokenType)),
			slog.Any("error", err))
		return "", nil, translateStoreError(err)
	}

	s.logger.Info("token issued",
		slog.String("user_id", ownerID),
		slog.String("type", string(tokenType)),
		slog.String("token_id", created.ID))
	s.audit.LogTokenEvent("token_issued", ownerID, string(tokenType), 0)

	return plaintext, created, nil
}

// Validate resolves a plaintext token to its stored row, scoped to one type.
// Stored hashes are salted and non-deterministic, so there is no equality
// lookup: every live token of the type is verified in turn until one matches.
// Cost grows with the live set of that type; see the repository scan query.
func (s *TokenService) Validate(ctx context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error) {
	if plaintext == "" {
		return nil, models.ErrInvalidToken
	}

	candidates, err := s.repo.GetAllValidByType(ctx, tokenType)
	if err != nil {
		s.logger.Error("failed to load candidate tokens",
			slog.String("type", string(tokenType)),
			slog.Any("error", err))
		return nil, translateStoreError(err)
	}

	for _, candidate := range candidates {
		if pkgauth.CompareSecret(candidate.TokenHash, plaintext) {
			return candidate, nil
		}
	}

	// Not found, wrong type, expired and already-used all collapse into the
	// same result so callers cannot enumerate token state.
	return nil, models.ErrInvalidToken
}

// Consume validates the token, checks it belongs to the expected owner, and
// marks it used. The transition is irreversible and succeeds exactly once;
// a concurrent consume loses the race and reports ErrInvalidToken. Nothing is
// mutated on failure.
func (s *TokenService) Consume(ctx context.Context, plaintext string, tokenType models.TokenType, expectedOwnerID string) error {
	token, err := s.Validate(ctx, plaintext, tokenType)
	if err != nil {
		return err
	}

	if token.UserID != expectedOwnerID {
		s.logger.Warn("token consume rejected: owner mismatch",
			slog.String("token_id", token.ID),
			slog.String("type", string(tokenType)))
		return models.ErrInvalidToken
	}

	return s.markConsumed(ctx, token)
}

// Redeem validates and consumes a token without an owner precondition,
// returning the resolved token. Used by flows where the owner is unknown
// until the token itself identifies it (email verification, password reset).
func (s *TokenService) Redeem(ctx context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error) {
	token, err := s.Validate(ctx, plaintext, tokenType)
	if err != nil {
		return nil, err
	}

	if err := s.markConsumed(ctx, token); err != nil {
		return nil, err
	}

	return token, nil
}

func (s *TokenService) markConsumed(ctx context.Context, token *models.AuthToken) error {
	if err := s.repo.MarkUsed(ctx, token.ID, time.Now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Lost the race against another consume of the same token.
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to mark token used",
			slog.String("token_id", token.ID),
			slog.Any("error", err))
		return translateStoreError(err)
	}

	s.logger.Info("token consumed",
		slog.String("token_id", token.ID),
		slog.String("type", string(token.Type)),
		slog.String("user_id", token.UserID))
	s.audit.LogTokenEvent("token_consumed", token.UserID, string(token.Type), 0)

	return nil
}

// RevokeAllForOwner marks every outstanding token for the owner as used,
// optionally filtered to a single type. Used for security resets.
func (s *TokenService) RevokeAllForOwner(ctx context.Context, ownerID string, tokenType *models.TokenType) (int64, error) {
	revoked, err := s.repo.MarkAllUsedForOwner(ctx, ownerID, tokenType, time.Now())
	if err != nil {
		s.logger.Error("failed to revoke tokens",
			slog.String("user_id", ownerID),
			slog.Any("error", err))
		return 0, translateStoreError(err)
	}

	if revoked > 0 {
		revokedType := "all"
		if tokenType != nil {
			revokedType = string(*tokenType)
		}
		s.audit.LogTokenEvent("tokens_revoked", ownerID, revokedType, revoked)
	}

	return revoked, nil
}

// SweepExpired deletes tokens past expiry as of now. Idempotent; safe to run
// concurrently with live issuance and validation.
func (s *TokenService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, translateStoreError(err)
	}
	if deleted > 0 {
		s.audit.LogTokenEvent("tokens_swept_expired", "", "", deleted)
	}
	return deleted, nil
}

// SweepUsed deletes consumed tokens older than the cutoff. Idempotent.
func (s *TokenService) SweepUsed(ctx context.Context, olderThan time.Time) (int64, error) {
	deleted, err := s.repo.DeleteUsed(ctx, olderThan)
	if err != nil {
		return 0, translateStoreError(err)
	}
	if deleted > 0 {
		s.audit.LogTokenEvent("tokens_swept_used", "", "", deleted)
	}
	return deleted, nil
}

// CreateAPIToken issues a long-lived API token with a label and scopes.
// The plaintext is returned once; listings only ever show the prefix.
func (s *TokenService) CreateAPIToken(ctx context.Context, ownerID, name string, scopes []string, ttl time.Duration) (string, *models.APITokenSummary, error) {
	if name == "" {
		return "", nil, models.NewValidationError("name", "this field is required")
	}

	plaintext, token, err := s.Issue(ctx, ownerID, models.TokenTypeAPI, ttl, models.TokenMetadata{
		Name:   name,
		Scopes: scopes,
	})
	if err != nil {
		return "", nil, err
	}

	return plaintext, token.APISummary(), nil
}

// ListAPITokens returns the owner's API tokens, revoked ones included.
func (s *TokenService) ListAPITokens(ctx context.Context, ownerID string) ([]*models.APITokenSummary, error) {
	tokens, err := s.repo.ListByTypeAndOwner(ctx, models.TokenTypeAPI, ownerID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	summaries := make([]*models.APITokenSummary, 0, len(tokens))
	for _, token := range tokens {
		summaries = append(summaries, token.APISummary())
	}

	return summaries, nil
}

// RevokeAPIToken revokes one of the owner's API tokens by row id.
func (s *TokenService) RevokeAPIToken(ctx context.Context, ownerID, tokenID string) error {
	tokens, err := s.repo.ListByTypeAndOwner(ctx, models.TokenTypeAPI, ownerID)
	if err != nil {
		return translateStoreError(err)
	}

	for _, token := range tokens {
		if token.ID == tokenID {
			if token.IsUsed() {
				return models.ErrInvalidToken
			}
			return s.markConsumed(ctx, token)
		}
	}

	return models.ErrNotFound
}

