package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/edvin/authcore/internal/api/middleware"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/session"
	"github.com/edvin/authcore/internal/store/memory"
)

const (
	testClientID     = "c1"
	testClientSecret = "s1"
	testRedirectURI  = "https://app/cb"
	testUserID       = "u1"
	testIssuer       = "https://auth.example.com"
	testLoginURL     = "https://login.example.com/login"
	testConsentURL   = "https://login.example.com/consent"
)

// fakeSessions resolves every request to userID; empty means no session.
type fakeSessions struct {
	userID string
	err    error
}

func (f fakeSessions) UserID(*http.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.userID == "" {
		return "", session.ErrNoSession
	}
	return f.userID, nil
}

type testEnv struct {
	t       *testing.T
	store   *memory.Store
	svcs    *core.Services
	prompts *session.MemoryPrompts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New()
	opts := core.DefaultOptions()
	opts.ClientCacheTTL = 0
	svcs := core.NewServices(st, crypto.BcryptHasher{Cost: bcrypt.MinCost}, opts, zerolog.Nop())
	t.Cleanup(svcs.Close)

	_, _, err := svcs.Clients.Register(context.Background(), core.ClientRegistration{
		ID:            testClientID,
		Name:          "Test App",
		RedirectURIs:  []string{testRedirectURI},
		AllowedScopes: []string{"read", "write", "profile"},
		Secret:        testClientSecret,
	})
	require.NoError(t, err)
	return &testEnv{t: t, store: st, svcs: svcs, prompts: session.NewMemoryPrompts(time.Minute)}
}

func (e *testEnv) authorizeHandler(userID string) *Authorize {
	return NewAuthorize(e.svcs.Authorize, fakeSessions{userID: userID}, e.prompts, testIssuer, testLoginURL, testConsentURL)
}

// consentNonce visits the authorization endpoint as userID and returns the
// nonce carried by the consent redirect.
func (e *testEnv) consentNonce(userID, scope string) string {
	e.t.Helper()
	rec := httptest.NewRecorder()
	e.authorizeHandler(userID).Authorize(rec, httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+authorizeParams(scope).Encode(), nil))
	require.Equal(e.t, http.StatusFound, rec.Code)
	loc := location(e.t, rec)
	require.Equal(e.t, "/consent", loc.Path, loc.String())
	nonce := loc.Query().Get("consent_nonce")
	require.NotEmpty(e.t, nonce)
	return nonce
}

// code runs the consent decision for testUserID and returns the issued code.
func (e *testEnv) code(scope string) string {
	e.t.Helper()
	form := authorizeParams(scope)
	form.Set("consent_nonce", e.consentNonce(testUserID, scope))
	form.Set("approve", "true")
	rec := httptest.NewRecorder()
	e.authorizeHandler(testUserID).Decision(rec, newFormRequest("/oauth/authorize/decision", form))
	require.Equal(e.t, http.StatusFound, rec.Code)
	loc := location(e.t, rec)
	code := loc.Query().Get("code")
	require.NotEmpty(e.t, code, loc.String())
	return code
}

func authorizeParams(scope string) url.Values {
	v := url.Values{
		"response_type": {"code"},
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"state":         {"xyz"},
	}
	if scope != "" {
		v.Set("scope", scope)
	}
	return v
}

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func newFormRequest(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withPrincipal injects an authenticated principal into the request context.
func withPrincipal(r *http.Request, p *core.Principal) *http.Request {
	return r.WithContext(mw.WithPrincipal(r.Context(), p))
}

func userPrincipal(scopes ...string) *core.Principal {
	return &core.Principal{Kind: core.PrincipalAccessToken, UserID: testUserID, ClientID: testClientID, Scopes: scopes}
}

// signedInUser is a user signed in to the first-party UI.
func signedInUser() *core.Principal {
	return &core.Principal{Kind: core.PrincipalSession, UserID: testUserID, Scopes: scope.Known}
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

func location(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	u, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return u
}
