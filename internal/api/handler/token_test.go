package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/authcore/internal/core"
)

func (e *testEnv) tokenHandler() *Token {
	return NewToken(e.svcs.Token, e.svcs.Revocation)
}

func decodeTokenResponse(t *testing.T, rec *httptest.ResponseRecorder) core.TokenResponse {
	t.Helper()
	var resp core.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestToken_CodeExchangeWithBasicAuth(t *testing.T) {
	env := newTestEnv(t)
	code := env.code("read profile")

	r := newFormRequest("/oauth/token", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	r.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()

	env.tokenHandler().Exchange(rec, r)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	resp := decodeTokenResponse(t, rec)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "read profile", resp.Scope)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
}

func TestToken_JSONBodyAndRefresh(t *testing.T) {
	env := newTestEnv(t)
	h := env.tokenHandler()
	code := env.code("read")

	rec := httptest.NewRecorder()
	h.Exchange(rec, newRequest(http.MethodPost, "/oauth/token", map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  testRedirectURI,
		"client_id":     testClientID,
		"client_secret": testClientSecret,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeTokenResponse(t, rec)

	rec = httptest.NewRecorder()
	h.Exchange(rec, newFormRequest("/oauth/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decodeTokenResponse(t, rec)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated refresh token is spent.
	rec = httptest.NewRecorder()
	h.Exchange(rec, newFormRequest("/oauth/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_grant", decodeErrorResponse(rec)["error"])
}

func TestToken_Errors(t *testing.T) {
	env := newTestEnv(t)
	h := env.tokenHandler()

	tests := []struct {
		name      string
		request   func() *http.Request
		status    int
		code      string
		challenge bool
	}{
		{
			name: "unsupported grant",
			request: func() *http.Request {
				return newFormRequest("/oauth/token", url.Values{"grant_type": {"password"}})
			},
			status: http.StatusBadRequest,
			code:   "unsupported_grant_type",
		},
		{
			name: "missing grant",
			request: func() *http.Request {
				return newFormRequest("/oauth/token", url.Values{})
			},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name: "malformed JSON",
			request: func() *http.Request {
				return newRequestRaw(http.MethodPost, "/oauth/token", "{bad json")
			},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name: "unsupported content type",
			request: func() *http.Request {
				r := newRequestRaw(http.MethodPost, "/oauth/token", "grant_type=refresh_token")
				r.Header.Set("Content-Type", "text/plain")
				return r
			},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name: "two authentication methods",
			request: func() *http.Request {
				r := newFormRequest("/oauth/token", url.Values{
					"grant_type":    {"refresh_token"},
					"refresh_token": {"rt_x"},
					"client_secret": {testClientSecret},
				})
				r.SetBasicAuth(testClientID, testClientSecret)
				return r
			},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name: "basic client differs from body",
			request: func() *http.Request {
				r := newFormRequest("/oauth/token", url.Values{
					"grant_type":    {"refresh_token"},
					"refresh_token": {"rt_x"},
					"client_id":     {"other"},
				})
				r.SetBasicAuth(testClientID, testClientSecret)
				return r
			},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name: "wrong secret",
			request: func() *http.Request {
				r := newFormRequest("/oauth/token", url.Values{
					"grant_type":    {"refresh_token"},
					"refresh_token": {"rt_x"},
				})
				r.SetBasicAuth(testClientID, "wrong")
				return r
			},
			status:    http.StatusUnauthorized,
			code:      "invalid_client",
			challenge: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			h.Exchange(rec, tt.request())

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeErrorResponse(rec)["error"])
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			if tt.challenge {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}

func TestToken_BasicCredentialsAreFormDecoded(t *testing.T) {
	env := newTestEnv(t)
	code := env.code("read")

	r := newFormRequest("/oauth/token", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	// "c%31" decodes to "c1".
	r.SetBasicAuth("c%31", testClientSecret)
	rec := httptest.NewRecorder()

	env.tokenHandler().Exchange(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t)
	h := env.tokenHandler()
	code := env.code("read")

	rec := httptest.NewRecorder()
	r := newFormRequest("/oauth/token", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	r.SetBasicAuth(testClientID, testClientSecret)
	h.Exchange(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	tokens := decodeTokenResponse(t, rec)

	revoke := func(form url.Values, secret string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r := newFormRequest("/oauth/revoke", form)
		r.SetBasicAuth(testClientID, secret)
		h.Revoke(rec, r)
		return rec
	}

	rec = revoke(url.Values{"token": {tokens.AccessToken}}, testClientSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	// Idempotent.
	rec = revoke(url.Values{"token": {tokens.AccessToken}}, testClientSecret)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = revoke(url.Values{"token": {"at_unknown"}}, testClientSecret)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = revoke(url.Values{"token": {tokens.RefreshToken}}, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_client", decodeErrorResponse(rec)["error"])

	rec = revoke(url.Values{}, testClientSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeErrorResponse(rec)["error"])

	_, err := env.svcs.Bearer.ValidateAccessToken(r.Context(), tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrInvalidCredential)
}
