package core

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/authcore/internal/oauth"
)

func TestRevoke_AccessTokenIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.exchange(f.confidentialCode("read"))
	require.NoError(t, err)

	req := RevokeRequest{Token: resp.AccessToken, ClientID: testClientID, ClientSecret: testClientSecret}
	require.NoError(t, f.svcs.Revocation.Revoke(ctx, req))
	require.NoError(t, f.svcs.Revocation.Revoke(ctx, req))

	_, err = f.svcs.Bearer.ValidateAccessToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// The refresh token survives revocation of its access token.
	_, err = f.svcs.Token.Exchange(ctx, TokenRequest{
		GrantType: GrantRefreshToken, RefreshToken: resp.RefreshToken,
		ClientID: testClientID, ClientSecret: testClientSecret,
	})
	assert.NoError(t, err)
}

func TestRevoke_RefreshTokenRevokesPairedAccessToken(t *testing.T) {
	for _, hint := range []string{"", HintRefreshToken, HintAccessToken, "bogus"} {
		t.Run("hint="+hint, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			resp, err := f.exchange(f.confidentialCode("read"))
			require.NoError(t, err)

			require.NoError(t, f.svcs.Revocation.Revoke(ctx, RevokeRequest{
				Token: resp.RefreshToken, TokenTypeHint: hint,
				ClientID: testClientID, ClientSecret: testClientSecret,
			}))

			_, err = f.svcs.Bearer.ValidateAccessToken(ctx, resp.AccessToken)
			assert.ErrorIs(t, err, ErrInvalidCredential)

			_, err = f.svcs.Token.Exchange(ctx, TokenRequest{
				GrantType: GrantRefreshToken, RefreshToken: resp.RefreshToken,
				ClientID: testClientID, ClientSecret: testClientSecret,
			})
			assert.True(t, oauth.IsCode(err, oauth.CodeInvalidGrant))
		})
	}
}

func TestRevoke_UnknownTokenSucceeds(t *testing.T) {
	f := newFixture(t)
	err := f.svcs.Revocation.Revoke(context.Background(), RevokeRequest{
		Token: "at_does-not-exist", ClientID: testClientID, ClientSecret: testClientSecret,
	})
	assert.NoError(t, err)
}

func TestRevoke_OtherClientsTokenUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.exchange(f.confidentialCode("read"))
	require.NoError(t, err)

	f.registerClient(ClientRegistration{
		ID: "c2", Name: "Other", RedirectURIs: []string{"https://other/cb"},
		AllowedScopes: []string{"read"}, Secret: "s2",
	})
	require.NoError(t, f.svcs.Revocation.Revoke(ctx, RevokeRequest{
		Token: resp.AccessToken, ClientID: "c2", ClientSecret: "s2",
	}))

	_, err = f.svcs.Bearer.ValidateAccessToken(ctx, resp.AccessToken)
	assert.NoError(t, err)
}

func TestRevoke_ClientAuthentication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		req      RevokeRequest
		wantCode string
		status   int
	}{
		{"bad secret", RevokeRequest{Token: "at_x", ClientID: testClientID, ClientSecret: "wrong"}, oauth.CodeInvalidClient, http.StatusUnauthorized},
		{"unknown client", RevokeRequest{Token: "at_x", ClientID: "ghost", ClientSecret: "s"}, oauth.CodeInvalidClient, http.StatusUnauthorized},
		{"public client", RevokeRequest{Token: "at_x", ClientID: testPublicClient}, oauth.CodeInvalidClient, http.StatusUnauthorized},
		{"missing token", RevokeRequest{ClientID: testClientID, ClientSecret: testClientSecret}, oauth.CodeInvalidRequest, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svcs.Revocation.Revoke(ctx, tt.req)
			oerr, ok := oauth.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.wantCode, oerr.Code)
			assert.Equal(t, tt.status, oerr.Status)
		})
	}
}
