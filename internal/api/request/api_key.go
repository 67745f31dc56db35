package request

import "time"

// CreateAPIKey holds the request body for creating an API key.
type CreateAPIKey struct {
	Name      string     `json:"name" validate:"required,keyname"`
	Scopes    []string   `json:"scopes" validate:"required,min=1,dive,scope"`
	ExpiresAt *time.Time `json:"expires_at"`
}
