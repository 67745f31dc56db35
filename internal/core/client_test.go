package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/oauth"
	"github.com/edvin/authcore/internal/store"
	"github.com/edvin/authcore/internal/store/memory"
)

func TestClientRegistry_ValidateRedirectURI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		clientID string
		uri      string
		want     bool
	}{
		{testClientID, testRedirectURI, true},
		{testClientID, testRedirectURI + "/", false},
		{testClientID, testRedirectURI + "?x=1", false},
		{testClientID, "https://APP/cb", false},
		{testClientID, "", false},
		{"ghost", testRedirectURI, false},
	}
	for _, tt := range tests {
		ok, err := f.svcs.Clients.ValidateRedirectURI(ctx, tt.clientID, tt.uri)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "%s %q", tt.clientID, tt.uri)
	}
}

func TestClientRegistry_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svcs.Clients.Authenticate(ctx, testClientID, testClientSecret, false)
	require.NoError(t, err)
	assert.Equal(t, testClientID, c.ID)

	_, err = f.svcs.Clients.Authenticate(ctx, testClientID, "s2", false)
	assert.True(t, oauth.IsCode(err, oauth.CodeInvalidClient))

	_, err = f.svcs.Clients.Authenticate(ctx, "", "", true)
	assert.True(t, oauth.IsCode(err, oauth.CodeInvalidClient))

	_, err = f.svcs.Clients.Authenticate(ctx, "ghost", "x", false)
	assert.True(t, oauth.IsCode(err, oauth.CodeInvalidClient))

	c, err = f.svcs.Clients.Authenticate(ctx, testPublicClient, "", true)
	require.NoError(t, err)
	assert.True(t, c.IsPublic())

	_, err = f.svcs.Clients.Authenticate(ctx, testPublicClient, "", false)
	assert.True(t, oauth.IsCode(err, oauth.CodeInvalidClient))

	_, err = f.svcs.Clients.Authenticate(ctx, testPublicClient, "guess", true)
	assert.True(t, oauth.IsCode(err, oauth.CodeInvalidClient))
}

func TestClientRegistry_InactiveClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.store.GetClient(ctx, testClientID)
	require.NoError(t, err)
	c.Active = false
	require.NoError(t, f.store.SaveClient(ctx, c))

	_, err = f.svcs.Clients.Get(ctx, testClientID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svcs.Clients.Authenticate(ctx, testClientID, testClientSecret, false)
	assert.True(t, oauth.IsCode(err, oauth.CodeInvalidClient))
}

func TestClientRegistry_Cache(t *testing.T) {
	st := memory.New()
	reg := NewClientRegistry(st, testHasher, time.Minute)
	ctx := context.Background()

	_, _, err := reg.Register(ctx, ClientRegistration{
		ID: "c1", Name: "App", RedirectURIs: []string{testRedirectURI}, AllowedScopes: []string{"read"},
	})
	require.NoError(t, err)

	_, err = reg.Get(ctx, "c1")
	require.NoError(t, err)

	// Direct store writes are not seen until the entry expires.
	c, err := st.GetClient(ctx, "c1")
	require.NoError(t, err)
	c.Name = "Renamed"
	require.NoError(t, st.SaveClient(ctx, c))

	cached, err := reg.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "App", cached.Name)

	// Register invalidates.
	_, _, err = reg.Register(ctx, ClientRegistration{
		ID: "c1", Name: "Again", RedirectURIs: []string{testRedirectURI}, AllowedScopes: []string{"read"},
	})
	require.NoError(t, err)
	fresh, err := reg.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Again", fresh.Name)
}

func TestClientRegistry_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, secret, err := f.svcs.Clients.Register(ctx, ClientRegistration{
		Name: "Generated", RedirectURIs: []string{"https://gen/cb"}, AllowedScopes: []string{"profile", "read"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Contains(t, secret, crypto.ClientSecretPrefix)
	assert.Equal(t, []string{"read", "profile"}, c.AllowedScopes)
	require.NotNil(t, c.SecretHash)
	assert.NotEqual(t, secret, *c.SecretHash)

	_, err = f.svcs.Clients.Authenticate(ctx, c.ID, secret, false)
	assert.NoError(t, err)

	invalid := []ClientRegistration{
		{RedirectURIs: []string{"https://x/cb"}, AllowedScopes: []string{"read"}},
		{Name: "n", AllowedScopes: []string{"read"}},
		{Name: "n", RedirectURIs: []string{"/relative"}, AllowedScopes: []string{"read"}},
		{Name: "n", RedirectURIs: []string{"https://x/cb#frag"}, AllowedScopes: []string{"read"}},
		{Name: "n", RedirectURIs: []string{"https://x/cb"}},
		{Name: "n", RedirectURIs: []string{"https://x/cb"}, AllowedScopes: []string{"admin"}},
	}
	for i, reg := range invalid {
		_, _, err := f.svcs.Clients.Register(ctx, reg)
		assert.Error(t, err, "case %d", i)
	}
}
