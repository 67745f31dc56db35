// Package store defines persistence for clients, authorization codes, tokens,
// consents and API keys. Implementations live in the postgres and memory
// subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/edvin/authcore/internal/model"
)

// ErrNotFound is returned when a record does not exist or a conditional
// update matched no rows.
var ErrNotFound = errors.New("not found")

// ClientStore persists registered OAuth clients.
type ClientStore interface {
	GetClient(ctx context.Context, id string) (*model.Client, error)
	SaveClient(ctx context.Context, c *model.Client) error
}

// CodeStore persists authorization codes.
type CodeStore interface {
	CreateAuthorizationCode(ctx context.Context, code *model.AuthorizationCode) error
	// ClaimAuthorizationCode marks the code consumed and returns it, provided
	// it is unconsumed and unexpired at now. Otherwise it returns ErrNotFound.
	// At most one concurrent caller succeeds.
	ClaimAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (*model.AuthorizationCode, error)
	GetAuthorizationCode(ctx context.Context, codeHash string) (*model.AuthorizationCode, error)
	// MarkAuthorizationCodeReplayed records that a consumed code was presented
	// again and returns it. It returns ErrNotFound if the code does not exist
	// or has not been consumed.
	MarkAuthorizationCodeReplayed(ctx context.Context, codeHash string, now time.Time) (*model.AuthorizationCode, error)
	// CodeReplayed reports whether the code with the given ID has been replayed.
	CodeReplayed(ctx context.Context, codeID string) (bool, error)
}

// TokenStore persists access and refresh tokens.
type TokenStore interface {
	// IssueTokens stores an access token and, if non-nil, its refresh token
	// atomically.
	IssueTokens(ctx context.Context, at *model.AccessToken, rt *model.RefreshToken) error
	// RotateRefreshToken revokes the refresh token oldID and stores the new
	// pair in one step. It returns ErrNotFound if oldID was already revoked.
	RotateRefreshToken(ctx context.Context, oldID string, now time.Time, at *model.AccessToken, rt *model.RefreshToken) error
	GetAccessToken(ctx context.Context, tokenHash string) (*model.AccessToken, error)
	GetRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RevokeAccessToken(ctx context.Context, id string, now time.Time) error
	RevokeRefreshToken(ctx context.Context, id string, now time.Time) error
	// RevokeGrant revokes every live token descending from grantID.
	RevokeGrant(ctx context.Context, grantID string, now time.Time) (int64, error)
	// RevokeUserClientTokens revokes every live token a client holds for a user.
	RevokeUserClientTokens(ctx context.Context, userID, clientID string, now time.Time) (int64, error)
	// RevokeUserTokens revokes every live token held by any client for a user.
	RevokeUserTokens(ctx context.Context, userID string, now time.Time) (int64, error)
	RecordAccessTokenUse(ctx context.Context, id string, at time.Time) error
	// ListActiveTokens returns live access and refresh tokens, newest first.
	ListActiveTokens(ctx context.Context, filter TokenFilter, now time.Time) ([]model.TokenSummary, error)
}

// TokenFilter narrows ListActiveTokens. Empty fields match everything.
type TokenFilter struct {
	UserID   string
	ClientID string
	Limit    int
}

// PermissionStore persists per-user OAuth overrides.
type PermissionStore interface {
	GetUserPermission(ctx context.Context, userID string) (*model.UserPermission, error)
	// SaveUserPermission upserts on user ID.
	SaveUserPermission(ctx context.Context, p *model.UserPermission) error
	DeleteUserPermission(ctx context.Context, userID string) error
	ListUserPermissions(ctx context.Context) ([]model.UserPermission, error)
}

// ConsentStore persists user consent decisions.
type ConsentStore interface {
	GetConsent(ctx context.Context, userID, clientID string) (*model.Consent, error)
	// SaveConsent upserts on (user, client) and clears any revocation.
	SaveConsent(ctx context.Context, c *model.Consent) error
	ListConsents(ctx context.Context, userID string) ([]model.Consent, error)
	RevokeConsent(ctx context.Context, userID, clientID string, now time.Time) error
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	// FindAPIKeysByPrefix returns every key sharing the lookup prefix,
	// including revoked and expired keys.
	FindAPIKeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error)
	ListAPIKeys(ctx context.Context, ownerID string) ([]model.APIKey, error)
	RevokeAPIKey(ctx context.Context, ownerID, id string, now time.Time) error
	RecordAPIKeyUse(ctx context.Context, id string, at time.Time) error
}

// AuditStore records management API calls.
type AuditStore interface {
	InsertAuditEntry(ctx context.Context, e *model.AuditEntry) error
}

// Store is the full credential store.
type Store interface {
	ClientStore
	CodeStore
	TokenStore
	ConsentStore
	APIKeyStore
	PermissionStore
	AuditStore
	// PurgeExpired deletes codes and tokens that expired before the cutoff.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
