package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
)

type ConsentService struct {
	store store.Store
	now   func() time.Time
}

func NewConsentService(st store.Store, now func() time.Time) *ConsentService {
	return &ConsentService{store: st, now: now}
}

func (s *ConsentService) List(ctx context.Context, userID string) ([]model.Consent, error) {
	return s.store.ListConsents(ctx, userID)
}

// Revoke withdraws the user's consent for clientID and revokes every token
// the client holds for that user.
func (s *ConsentService) Revoke(ctx context.Context, userID, clientID string) error {
	now := s.now()
	if err := s.store.RevokeConsent(ctx, userID, clientID, now); err != nil {
		return err
	}
	n, err := s.store.RevokeUserClientTokens(ctx, userID, clientID, now)
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	zerolog.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("client_id", clientID).
		Int64("tokens_revoked", n).
		Msg("consent revoked")
	return nil
}
