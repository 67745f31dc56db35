package model

import "time"

// APIKey is a long-lived credential owned by a user. Keys are revoked, never
// deleted. Prefix holds the first characters of the raw key for lookup.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Prefix     string     `json:"prefix" db:"prefix"`
	SecretHash string     `json:"-" db:"secret_hash"`
	Scopes     []string   `json:"scopes" db:"scopes"`
	OwnerID    string     `json:"owner_id" db:"owner_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	UseCount   int64      `json:"use_count" db:"use_count"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Usable reports whether the key is neither revoked nor expired at now.
func (k *APIKey) Usable(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}
