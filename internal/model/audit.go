package model

import (
	"encoding/json"
	"time"
)

// AuditEntry records a mutating management API call.
type AuditEntry struct {
	ID            int64           `json:"id" db:"id"`
	PrincipalKind string          `json:"principal_kind" db:"principal_kind"`
	PrincipalID   string          `json:"principal_id" db:"principal_id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Method        string          `json:"method" db:"method"`
	Path          string          `json:"path" db:"path"`
	StatusCode    int             `json:"status_code" db:"status_code"`
	RequestBody   json.RawMessage `json:"request_body,omitempty" db:"request_body"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
