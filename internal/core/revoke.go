package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/oauth"
	"github.com/edvin/authcore/internal/store"
)

// Token type hints from RFC 7009 section 2.1.
const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"
)

type RevokeRequest struct {
	Token         string
	TokenTypeHint string
	ClientID      string
	ClientSecret  string
}

// RevocationService implements RFC 7009 token revocation.
type RevocationService struct {
	store   store.Store
	clients *ClientRegistry
	now     func() time.Time
}

func NewRevocationService(st store.Store, clients *ClientRegistry, now func() time.Time) *RevocationService {
	return &RevocationService{store: st, clients: clients, now: now}
}

// Revoke invalidates the token if the authenticated client owns it. Unknown
// tokens and tokens of other clients succeed silently so the endpoint cannot
// be used to test whether a token exists.
func (s *RevocationService) Revoke(ctx context.Context, req RevokeRequest) error {
	if req.Token == "" {
		return oauth.InvalidRequest("token is required")
	}
	client, err := s.clients.Authenticate(ctx, req.ClientID, req.ClientSecret, false)
	if err != nil {
		return err
	}

	hash := crypto.LookupHash(req.Token)
	order := []string{HintAccessToken, HintRefreshToken}
	if req.TokenTypeHint == HintRefreshToken {
		order = []string{HintRefreshToken, HintAccessToken}
	}

	for _, kind := range order {
		var found bool
		switch kind {
		case HintAccessToken:
			found, err = s.revokeAccess(ctx, client.ID, hash)
		case HintRefreshToken:
			found, err = s.revokeRefresh(ctx, client.ID, hash)
		}
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	return nil
}

func (s *RevocationService) revokeAccess(ctx context.Context, clientID, hash string) (bool, error) {
	at, err := s.store.GetAccessToken(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get access token: %w", err)
	}
	if !crypto.Equal(at.ClientID, clientID) {
		return true, nil
	}
	if err := s.store.RevokeAccessToken(ctx, at.ID, s.now()); err != nil {
		return true, fmt.Errorf("revoke access token: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("client_id", clientID).Str("token_id", at.ID).Msg("access token revoked")
	return true, nil
}

func (s *RevocationService) revokeRefresh(ctx context.Context, clientID, hash string) (bool, error) {
	rt, err := s.store.GetRefreshToken(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get refresh token: %w", err)
	}
	if !crypto.Equal(rt.ClientID, clientID) {
		return true, nil
	}
	now := s.now()
	if err := s.store.RevokeRefreshToken(ctx, rt.ID, now); err != nil {
		return true, fmt.Errorf("revoke refresh token: %w", err)
	}
	if rt.AccessTokenID != "" {
		if err := s.store.RevokeAccessToken(ctx, rt.AccessTokenID, now); err != nil {
			return true, fmt.Errorf("revoke paired access token: %w", err)
		}
	}
	zerolog.Ctx(ctx).Info().Str("client_id", clientID).Str("token_id", rt.ID).Msg("refresh token revoked")
	return true, nil
}
