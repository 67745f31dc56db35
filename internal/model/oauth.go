package model

import (
	"slices"
	"time"
)

// Client is a registered OAuth client. A nil SecretHash marks a public client
// that can only redeem codes with PKCE.
type Client struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	SecretHash    *string   `json:"-" db:"secret_hash"`
	RedirectURIs  []string  `json:"redirect_uris" db:"redirect_uris"`
	AllowedScopes []string  `json:"allowed_scopes" db:"allowed_scopes"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// IsPublic reports whether the client has no secret.
func (c *Client) IsPublic() bool {
	return c.SecretHash == nil
}

// HasRedirectURI reports whether uri exactly matches a registered redirect URI.
func (c *Client) HasRedirectURI(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

// AuthorizationCode is a single-use grant produced by the authorize endpoint.
// Only the SHA-256 hash of the code value is persisted.
type AuthorizationCode struct {
	ID                  string     `json:"id" db:"id"`
	CodeHash            string     `json:"-" db:"code_hash"`
	ClientID            string     `json:"client_id" db:"client_id"`
	UserID              string     `json:"user_id" db:"user_id"`
	RedirectURI         string     `json:"redirect_uri" db:"redirect_uri"`
	Scopes              []string   `json:"scopes" db:"scopes"`
	CodeChallenge       *string    `json:"-" db:"code_challenge"`
	CodeChallengeMethod *string    `json:"code_challenge_method,omitempty" db:"code_challenge_method"`
	ExpiresAt           time.Time  `json:"expires_at" db:"expires_at"`
	ConsumedAt          *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`
	// ReplayedAt is set the first time a consumed code is presented again.
	ReplayedAt *time.Time `json:"replayed_at,omitempty" db:"replayed_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// AccessToken is a short-lived bearer credential. GrantID names the
// authorization code that started the grant.
type AccessToken struct {
	ID        string     `json:"id" db:"id"`
	TokenHash string     `json:"-" db:"token_hash"`
	ClientID  string     `json:"client_id" db:"client_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Scopes    []string   `json:"scopes" db:"scopes"`
	GrantID    string     `json:"grant_id" db:"grant_id"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	UseCount   int64      `json:"use_count" db:"use_count"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Active reports whether the token is neither revoked nor expired at now.
func (t *AccessToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// RefreshToken is a long-lived credential paired with the access token issued
// alongside it.
type RefreshToken struct {
	ID            string     `json:"id" db:"id"`
	TokenHash     string     `json:"-" db:"token_hash"`
	AccessTokenID string     `json:"access_token_id" db:"access_token_id"`
	ClientID      string     `json:"client_id" db:"client_id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Scopes        []string   `json:"scopes" db:"scopes"`
	GrantID       string     `json:"grant_id" db:"grant_id"`
	RotatedFrom   *string    `json:"rotated_from,omitempty" db:"rotated_from"`
	ExpiresAt     time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Active reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Consent records the scopes a user approved for a client.
type Consent struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	ClientID  string     `json:"client_id" db:"client_id"`
	Scopes    []string   `json:"scopes" db:"scopes"`
	GrantedAt time.Time  `json:"granted_at" db:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// TokenKind distinguishes access and refresh tokens in administrative views.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenSummary describes a live token without its hash. Refresh tokens carry
// no usage data.
type TokenSummary struct {
	ID         string     `json:"id" db:"id"`
	Kind       TokenKind  `json:"kind" db:"kind"`
	ClientID   string     `json:"client_id" db:"client_id"`
	ClientName string     `json:"client_name" db:"client_name"`
	UserID     string     `json:"user_id" db:"user_id"`
	Scopes     []string   `json:"scopes" db:"scopes"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	UseCount   int64      `json:"use_count" db:"use_count"`
}

// UserPermission overrides the default OAuth access of one user. A disabled
// user cannot authorize clients or refresh tokens.
type UserPermission struct {
	UserID        string    `json:"user_id" db:"user_id"`
	OAuthEnabled  bool      `json:"oauth_enabled" db:"oauth_enabled"`
	AllowedScopes []string  `json:"allowed_scopes" db:"allowed_scopes"`
	UpdatedBy     string    `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
