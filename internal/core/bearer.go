package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/metrics"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/store"
)

// ErrInvalidCredential is returned for every credential that does not
// authenticate: unknown, malformed, expired and revoked look the same.
var ErrInvalidCredential = errors.New("invalid credential")

type PrincipalKind string

const (
	PrincipalAccessToken PrincipalKind = "access_token"
	PrincipalAPIKey      PrincipalKind = "api_key"
	// PrincipalSession is a user signed in to the first-party UI. Only this
	// kind may manage API keys and consents.
	PrincipalSession PrincipalKind = "session"
)

// Principal is the authenticated caller behind a bearer credential.
type Principal struct {
	Kind     PrincipalKind `json:"kind"`
	UserID   string        `json:"user_id"`
	ClientID string        `json:"client_id,omitempty"`
	TokenID  string        `json:"token_id,omitempty"`
	KeyID    string        `json:"key_id,omitempty"`
	Scopes   []string      `json:"scopes"`
}

// HasScope reports whether the principal holds required, directly or by
// implication.
func (p *Principal) HasScope(required string) bool {
	return scope.HasScope(p.Scopes, required)
}

// BearerValidator resolves access tokens and API keys to principals.
type BearerValidator struct {
	store  store.Store
	hasher crypto.Hasher
	usage  *UsageRecorder
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewBearerValidator(st store.Store, hasher crypto.Hasher, usage *UsageRecorder, now func() time.Time) *BearerValidator {
	return &BearerValidator{store: st, hasher: hasher, usage: usage, now: now}
}

// Validate dispatches on the credential prefix.
func (v *BearerValidator) Validate(ctx context.Context, credential string) (*Principal, error) {
	if strings.HasPrefix(credential, crypto.APIKeyPrefix) {
		return v.ValidateAPIKey(ctx, credential)
	}
	return v.ValidateAccessToken(ctx, credential)
}

// ValidateAccessToken returns the principal for a live access token and
// queues a usage update.
func (v *BearerValidator) ValidateAccessToken(ctx context.Context, token string) (*Principal, error) {
	p, err := v.validateAccessToken(ctx, token)
	observeValidation(PrincipalAccessToken, err)
	return p, err
}

func (v *BearerValidator) validateAccessToken(ctx context.Context, token string) (*Principal, error) {
	if !strings.HasPrefix(token, crypto.AccessTokenPrefix) {
		return nil, ErrInvalidCredential
	}
	at, err := v.store.GetAccessToken(ctx, crypto.LookupHash(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}
	now := v.now()
	if !at.Active(now) {
		return nil, ErrInvalidCredential
	}
	if v.usage != nil {
		v.usage.Record(PrincipalAccessToken, at.ID, now)
	}
	return &Principal{
		Kind:     PrincipalAccessToken,
		UserID:   at.UserID,
		ClientID: at.ClientID,
		TokenID:  at.ID,
		Scopes:   at.Scopes,
	}, nil
}

// ValidateAPIKey returns the principal for a usable API key and queues a
// usage update. Every candidate sharing the lookup prefix is verified.
func (v *BearerValidator) ValidateAPIKey(ctx context.Context, key string) (*Principal, error) {
	p, err := v.validateAPIKey(ctx, key)
	observeValidation(PrincipalAPIKey, err)
	return p, err
}

func (v *BearerValidator) validateAPIKey(ctx context.Context, key string) (*Principal, error) {
	lookup := crypto.APIKeyLookup(key)
	if lookup == "" {
		return nil, ErrInvalidCredential
	}
	candidates, err := v.store.FindAPIKeysByPrefix(ctx, lookup)
	if err != nil {
		return nil, fmt.Errorf("find api keys: %w", err)
	}
	if len(candidates) == 0 {
		v.hasher.Verify(v.dummy(), key)
		return nil, ErrInvalidCredential
	}

	now := v.now()
	for i := range candidates {
		k := &candidates[i]
		if !v.hasher.Verify(k.SecretHash, key) {
			continue
		}
		if !k.Usable(now) {
			return nil, ErrInvalidCredential
		}
		if v.usage != nil {
			v.usage.Record(PrincipalAPIKey, k.ID, now)
		}
		return &Principal{
			Kind:   PrincipalAPIKey,
			UserID: k.OwnerID,
			KeyID:  k.ID,
			Scopes: k.Scopes,
		}, nil
	}
	return nil, ErrInvalidCredential
}

func (v *BearerValidator) dummy() string {
	v.dummyOnce.Do(func() {
		h, err := v.hasher.Hash("unknown-api-key")
		if err == nil {
			v.dummyHash = h
		}
	})
	return v.dummyHash
}

func observeValidation(kind PrincipalKind, err error) {
	result := "valid"
	switch {
	case errors.Is(err, ErrInvalidCredential):
		result = "invalid"
	case err != nil:
		result = "error"
	}
	metrics.CredentialValidations.WithLabelValues(string(kind), result).Inc()
}
