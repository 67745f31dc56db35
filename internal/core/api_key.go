package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/store"
)

type APIKeyService struct {
	store  store.APIKeyStore
	hasher crypto.Hasher
	now    func() time.Time
}

func NewAPIKeyService(st store.APIKeyStore, hasher crypto.Hasher, now func() time.Time) *APIKeyService {
	return &APIKeyService{store: st, hasher: hasher, now: now}
}

// Create issues a key for ownerID and returns the record with the raw key.
// The raw key is shown once and only its slow hash is stored.
func (s *APIKeyService) Create(ctx context.Context, ownerID, name string, scopes []string, expiresAt *time.Time) (*model.APIKey, string, error) {
	if ownerID == "" {
		return nil, "", fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	normalized := scope.Normalize(scopes)
	if len(normalized) == 0 || len(normalized) != len(scopes) {
		return nil, "", fmt.Errorf("%w: scopes must be a non-empty subset of %v", ErrInvalidInput, scope.Known)
	}
	now := s.now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, "", fmt.Errorf("%w: expires_at must be in the future", ErrInvalidInput)
	}

	raw, err := crypto.NewToken(crypto.APIKeyPrefix)
	if err != nil {
		return nil, "", err
	}
	hash, err := s.hasher.Hash(raw)
	if err != nil {
		return nil, "", fmt.Errorf("hash api key: %w", err)
	}

	key := &model.APIKey{
		ID:         crypto.NewID(),
		Name:       name,
		Prefix:     crypto.APIKeyLookup(raw),
		SecretHash: hash,
		Scopes:     normalized,
		OwnerID:    ownerID,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("create api key: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("owner_id", ownerID).Str("key_id", key.ID).Msg("api key created")
	return key, raw, nil
}

func (s *APIKeyService) List(ctx context.Context, ownerID string) ([]model.APIKey, error) {
	return s.store.ListAPIKeys(ctx, ownerID)
}

// Revoke revokes one of ownerID's keys. Keys of other owners are reported as
// store.ErrNotFound.
func (s *APIKeyService) Revoke(ctx context.Context, ownerID, id string) error {
	if err := s.store.RevokeAPIKey(ctx, ownerID, id, s.now()); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("owner_id", ownerID).Str("key_id", id).Msg("api key revoked")
	return nil
}
