package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/oauth"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/store"
)

// ClientRegistry looks up and authenticates OAuth clients. Active clients are
// cached for the configured TTL, so deactivation takes effect within one TTL.
type ClientRegistry struct {
	store  store.ClientStore
	hasher crypto.Hasher
	cache  *ttlcache.Cache[string, *model.Client]

	dummyOnce sync.Once
	dummyHash string
}

// NewClientRegistry creates a ClientRegistry. A zero cacheTTL disables caching.
func NewClientRegistry(st store.ClientStore, hasher crypto.Hasher, cacheTTL time.Duration) *ClientRegistry {
	r := &ClientRegistry{store: st, hasher: hasher}
	if cacheTTL > 0 {
		r.cache = ttlcache.New[string, *model.Client](
			ttlcache.WithTTL[string, *model.Client](cacheTTL),
			ttlcache.WithDisableTouchOnHit[string, *model.Client](),
		)
	}
	return r
}

// Get returns an active client. Unknown and inactive clients both yield
// store.ErrNotFound.
func (r *ClientRegistry) Get(ctx context.Context, id string) (*model.Client, error) {
	if id == "" {
		return nil, store.ErrNotFound
	}
	if r.cache != nil {
		if item := r.cache.Get(id); item != nil {
			return item.Value(), nil
		}
	}

	c, err := r.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, fmt.Errorf("client %s inactive: %w", id, store.ErrNotFound)
	}

	if r.cache != nil {
		r.cache.Set(id, c, ttlcache.DefaultTTL)
	}
	return c, nil
}

// ValidateRedirectURI reports whether uri is registered for the client,
// compared as an exact string.
func (r *ClientRegistry) ValidateRedirectURI(ctx context.Context, clientID, uri string) (bool, error) {
	c, err := r.Get(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.HasRedirectURI(uri), nil
}

// Authenticate verifies client credentials. Confidential clients must present
// their secret. A public client is accepted without a secret only when
// allowPublic is set, which callers do for PKCE-protected code redemption.
func (r *ClientRegistry) Authenticate(ctx context.Context, clientID, secret string, allowPublic bool) (*model.Client, error) {
	if clientID == "" {
		return nil, oauth.InvalidClient("client authentication required")
	}

	c, err := r.Get(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		r.hasher.Verify(r.dummy(), secret)
		return nil, oauth.InvalidClient("client authentication failed")
	}
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", clientID, err)
	}

	if c.IsPublic() {
		if secret == "" && allowPublic {
			return c, nil
		}
		return nil, oauth.InvalidClient("client authentication failed")
	}

	if secret == "" || !r.hasher.Verify(*c.SecretHash, secret) {
		return nil, oauth.InvalidClient("client authentication failed")
	}
	return c, nil
}

// dummy returns a throwaway hash verified on unknown client IDs so that the
// response time does not reveal whether the client exists.
func (r *ClientRegistry) dummy() string {
	r.dummyOnce.Do(func() {
		h, err := r.hasher.Hash("unknown-client")
		if err == nil {
			r.dummyHash = h
		}
	})
	return r.dummyHash
}

// ClientRegistration describes a client to create or update.
type ClientRegistration struct {
	ID            string
	Name          string
	RedirectURIs  []string
	AllowedScopes []string
	Public        bool
	// Secret pins the client secret; empty generates one.
	Secret string
}

// Register upserts a client and returns it with the cleartext secret, which
// is empty for public clients. The secret must be shown exactly once.
func (r *ClientRegistry) Register(ctx context.Context, reg ClientRegistration) (*model.Client, string, error) {
	if reg.Name == "" {
		return nil, "", fmt.Errorf("%w: client name is required", ErrInvalidInput)
	}
	if len(reg.RedirectURIs) == 0 {
		return nil, "", fmt.Errorf("%w: at least one redirect URI is required", ErrInvalidInput)
	}
	for _, uri := range reg.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return nil, "", err
		}
	}
	scopes := scope.Normalize(reg.AllowedScopes)
	if len(scopes) == 0 || len(scopes) != len(reg.AllowedScopes) {
		return nil, "", fmt.Errorf("%w: allowed scopes must be a non-empty subset of %v", ErrInvalidInput, scope.Known)
	}

	c := &model.Client{
		ID:            reg.ID,
		Name:          reg.Name,
		RedirectURIs:  reg.RedirectURIs,
		AllowedScopes: scopes,
		Active:        true,
	}
	if c.ID == "" {
		c.ID = crypto.NewID()
	}

	var secret string
	if !reg.Public {
		secret = reg.Secret
		if secret == "" {
			var err error
			if secret, err = crypto.NewToken(crypto.ClientSecretPrefix); err != nil {
				return nil, "", err
			}
		}
		hash, err := r.hasher.Hash(secret)
		if err != nil {
			return nil, "", fmt.Errorf("hash client secret: %w", err)
		}
		c.SecretHash = &hash
	}

	if err := r.store.SaveClient(ctx, c); err != nil {
		return nil, "", err
	}
	if r.cache != nil {
		r.cache.Delete(c.ID)
	}
	return c, secret, nil
}

func validateRedirectURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: redirect URI %q: %v", ErrInvalidInput, uri, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: redirect URI %q must be absolute", ErrInvalidInput, uri)
	}
	if u.Fragment != "" {
		return fmt.Errorf("%w: redirect URI %q must not contain a fragment", ErrInvalidInput, uri)
	}
	return nil
}
