package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/authcore/internal/core"
)

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(ctx context.Context, credential string) (*core.Principal, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Principal), args.Error(1)
}

func (m *mockValidator) ValidateAccessToken(ctx context.Context, token string) (*core.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Principal), args.Error(1)
}

// principalEcho writes the authenticated principal's user ID.
var principalEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	w.Write([]byte(p.UserID))
})

func TestCredential_Bearer(t *testing.T) {
	v := &mockValidator{}
	v.On("Validate", mock.Anything, "at_good").Return(&core.Principal{UserID: "u1", Scopes: []string{"read"}}, nil)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer at_good")
	Credential(v)(principalEcho).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
	v.AssertExpectations(t)
}

func TestCredential_APIKeyHeader(t *testing.T) {
	v := &mockValidator{}
	v.On("Validate", mock.Anything, "ak_key").Return(&core.Principal{UserID: "u2"}, nil)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-API-Key", "ak_key")
	Credential(v)(principalEcho).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", rec.Body.String())
}

func TestAccessToken_IgnoresAPIKeyHeader(t *testing.T) {
	v := &mockValidator{}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-API-Key", "ak_key")
	AccessToken(v)(principalEcho).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="api"`, rec.Header().Get("WWW-Authenticate"))
	v.AssertNotCalled(t, "ValidateAccessToken", mock.Anything, mock.Anything)
}

func TestCredential_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"basic scheme", "Basic Zm9vOmJhcg=="},
		{"empty token", "Bearer "},
		{"no space", "Bearerat_x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockValidator{}
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			Credential(v)(principalEcho).ServeHTTP(rec, r)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			v.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
		})
	}
}

func TestCredential_InvalidToken(t *testing.T) {
	v := &mockValidator{}
	v.On("Validate", mock.Anything, "at_bad").Return(nil, core.ErrInvalidCredential)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer at_bad")
	Credential(v)(principalEcho).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_token", body["error"])
}

func TestCredential_StoreFailure(t *testing.T) {
	v := &mockValidator{}
	v.On("Validate", mock.Anything, "at_x").Return(nil, errors.New("db down"))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer at_x")
	Credential(v)(principalEcho).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name     string
		scopes   []string
		required string
		want     int
	}{
		{"exact", []string{"read"}, "read", http.StatusOK},
		{"implied by delete", []string{"delete"}, "read", http.StatusOK},
		{"implied by write", []string{"write"}, "read", http.StatusOK},
		{"not implied upward", []string{"read"}, "write", http.StatusForbidden},
		{"profile independent", []string{"delete"}, "profile", http.StatusForbidden},
		{"empty", nil, "read", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(WithPrincipal(r.Context(), &core.Principal{UserID: "u1", Scopes: tt.scopes}))

			RequireScope(tt.required)(principalEcho).ServeHTTP(rec, r)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="insufficient_scope"`)
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `scope="`+tt.required+`"`)
			}
		})
	}
}

func TestRequireScope_NoPrincipal(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireScope("read")(principalEcho).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
