package middleware

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
)

// AuditLogger is an async audit log writer for the management API.
type AuditLogger struct {
	store  store.AuditStore
	logger zerolog.Logger
	ch     chan model.AuditEntry
	done   chan struct{}
	once   sync.Once
}

func NewAuditLogger(st store.AuditStore, logger zerolog.Logger) *AuditLogger {
	al := &AuditLogger{
		store:  st,
		logger: logger,
		ch:     make(chan model.AuditEntry, 1024),
		done:   make(chan struct{}),
	}
	go al.drain()
	return al
}

func (al *AuditLogger) drain() {
	defer close(al.done)
	for entry := range al.ch {
		// use context.Background since this is async
		if err := al.store.InsertAuditEntry(context.Background(), &entry); err != nil {
			al.logger.Error().Err(err).Msg("failed to write audit log")
		}
	}
}

// Close stops accepting entries and waits until queued ones are written.
func (al *AuditLogger) Close() {
	al.once.Do(func() { close(al.ch) })
	<-al.done
}

// Middleware returns a chi middleware that records mutating API requests.
// It must run after the credential middleware so the principal is known.
func (al *AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only audit mutating operations.
		if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}

		// Read and re-buffer the request body.
		var bodyBytes []byte
		if r.Body != nil {
			bodyBytes, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		entry := model.AuditEntry{
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: sw.status,
			CreatedAt:  time.Now(),
		}
		if p := GetPrincipal(r.Context()); p != nil {
			entry.PrincipalKind = string(p.Kind)
			entry.UserID = p.UserID
			entry.PrincipalID = cmp.Or(p.KeyID, p.TokenID, p.ClientID, p.UserID)
		}
		// Sanitize body - don't log secrets or keys.
		if len(bodyBytes) > 0 && json.Valid(bodyBytes) {
			entry.RequestBody = sanitizeBody(bodyBytes)
		}

		select {
		case al.ch <- entry:
		default:
			al.logger.Warn().Msg("audit log buffer full, dropping entry")
		}
	})
}

// sensitiveFields are fields that should be redacted from audit logs.
var sensitiveFields = map[string]bool{
	"password": true, "secret": true, "client_secret": true,
	"key": true, "api_key": true, "token": true,
	"access_token": true, "refresh_token": true, "code": true, "code_verifier": true,
}

func sanitizeBody(body []byte) json.RawMessage {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil
	}
	for k := range data {
		if sensitiveFields[k] {
			data[k] = "[REDACTED]"
		}
	}
	sanitized, _ := json.Marshal(data)
	return sanitized
}
