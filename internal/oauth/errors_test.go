package oauth

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Status(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, InvalidClient("x").Status)
	assert.Equal(t, http.StatusUnauthorized, InvalidToken("x").Status)
	assert.Equal(t, http.StatusForbidden, InsufficientScope("x").Status)
	assert.Equal(t, http.StatusInternalServerError, ServerError("x").Status)
	assert.Equal(t, http.StatusBadRequest, InvalidGrant("x").Status)
	assert.Equal(t, http.StatusBadRequest, UnsupportedGrantType("x").Status)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "invalid_grant: code expired", InvalidGrant("code expired").Error())
	assert.Equal(t, "access_denied", AccessDenied("").Error())
}

func TestAs_Wrapped(t *testing.T) {
	err := fmt.Errorf("exchange: %w", InvalidGrant("used"))

	oerr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidGrant, oerr.Code)
	assert.True(t, IsCode(err, CodeInvalidGrant))
	assert.False(t, IsCode(err, CodeInvalidClient))
}

func TestAs_PlainError(t *testing.T) {
	_, ok := As(fmt.Errorf("boom"))
	assert.False(t, ok)
}
