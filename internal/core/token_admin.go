package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
)

// TokenAdminService lists and revokes live tokens on behalf of an operator.
type TokenAdminService struct {
	store store.Store
	now   func() time.Time
}

func NewTokenAdminService(st store.Store, now func() time.Time) *TokenAdminService {
	return &TokenAdminService{store: st, now: now}
}

// List returns live tokens matching filter, newest first.
func (s *TokenAdminService) List(ctx context.Context, filter store.TokenFilter) ([]model.TokenSummary, error) {
	tokens, err := s.store.ListActiveTokens(ctx, filter, s.now())
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	return tokens, nil
}

// Revoke revokes a single token. Revoking an unknown or already revoked
// token is not an error.
func (s *TokenAdminService) Revoke(ctx context.Context, kind model.TokenKind, id string) error {
	var err error
	switch kind {
	case model.TokenKindAccess:
		err = s.store.RevokeAccessToken(ctx, id, s.now())
	case model.TokenKindRefresh:
		err = s.store.RevokeRefreshToken(ctx, id, s.now())
	default:
		return fmt.Errorf("%w: token kind must be access or refresh", ErrInvalidInput)
	}
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("kind", string(kind)).Str("token_id", id).Msg("token revoked by operator")
	return nil
}

// RevokeUser revokes every live token held by the user across all clients.
func (s *TokenAdminService) RevokeUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	n, err := s.store.RevokeUserTokens(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("user_id", userID).Int64("revoked", n).Msg("user tokens revoked by operator")
	return n, nil
}
