package core

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/store"
)

// ErrInvalidInput marks errors caused by caller-supplied values rather than
// infrastructure failures.
var ErrInvalidInput = errors.New("invalid input")

// Options tunes credential lifetimes and grant behavior.
type Options struct {
	AuthCodeTTL        time.Duration
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RefreshRotation    bool
	RevokeOnCodeReplay bool
	ClientCacheTTL     time.Duration
	UsageBuffer        int
	// DefaultUserScopes caps users without an override; nil means every
	// known scope.
	DefaultUserScopes []string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		AuthCodeTTL:        10 * time.Minute,
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    30 * 24 * time.Hour,
		RefreshRotation:    true,
		RevokeOnCodeReplay: true,
		ClientCacheTTL:     15 * time.Second,
		UsageBuffer:        1024,
	}
}

func (o Options) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

type Services struct {
	Clients     *ClientRegistry
	Authorize   *AuthorizeService
	Token       *TokenService
	Revocation  *RevocationService
	Bearer      *BearerValidator
	APIKeys     *APIKeyService
	Consents    *ConsentService
	Permissions *PermissionService
	TokenAdmin  *TokenAdminService
	Usage       *UsageRecorder
}

func NewServices(st store.Store, hasher crypto.Hasher, opts Options, logger zerolog.Logger) *Services {
	now := opts.clock()
	clients := NewClientRegistry(st, hasher, opts.ClientCacheTTL)
	usage := NewUsageRecorder(st, logger, opts.UsageBuffer)
	perms := NewPermissionService(st, opts.DefaultUserScopes, now)

	return &Services{
		Clients:     clients,
		Authorize:   NewAuthorizeService(st, clients, perms, opts.AuthCodeTTL, now),
		Token:       NewTokenService(st, clients, perms, opts, now),
		Revocation:  NewRevocationService(st, clients, now),
		Bearer:      NewBearerValidator(st, hasher, usage, now),
		APIKeys:     NewAPIKeyService(st, hasher, now),
		Consents:    NewConsentService(st, now),
		Permissions: perms,
		TokenAdmin:  NewTokenAdminService(st, now),
		Usage:       usage,
	}
}

// Close flushes background workers.
func (s *Services) Close() {
	s.Usage.Close()
}
