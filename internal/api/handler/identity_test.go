package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserInfo(t *testing.T) {
	h := NewIdentity()
	rec := httptest.NewRecorder()
	r := withPrincipal(httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil), userPrincipal("read", "profile"))

	h.UserInfo(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"sub": testUserID, "client_id": testClientID, "scope": "read profile"}, body)
}

func TestUserInfo_Unauthenticated(t *testing.T) {
	h := NewIdentity()
	rec := httptest.NewRecorder()

	h.UserInfo(rec, httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}

func TestWhoAmI(t *testing.T) {
	h := NewIdentity()
	rec := httptest.NewRecorder()
	r := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil), userPrincipal("read"))

	h.WhoAmI(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access_token", body["kind"])
	assert.Equal(t, testUserID, body["user_id"])
}
