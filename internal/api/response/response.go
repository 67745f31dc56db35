package response

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/edvin/authcore/internal/oauth"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// NoStore marks a response as carrying credentials (RFC 6749 section 5.1).
func NoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// WriteOAuthError writes e as an RFC 6749 error body. invalid_client responses
// carry a Basic challenge as required by section 5.2.
func WriteOAuthError(w http.ResponseWriter, e *oauth.Error) {
	NoStore(w)
	if e.Code == oauth.CodeInvalidClient && e.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
	}
	WriteJSON(w, e.Status, e)
}

// BearerChallenge builds an RFC 6750 WWW-Authenticate value.
func BearerChallenge(e *oauth.Error, requiredScope string) string {
	var b strings.Builder
	b.WriteString(`Bearer realm="api"`)
	if e != nil {
		b.WriteString(`, error="` + quote(e.Code) + `"`)
		if e.Description != "" {
			b.WriteString(`, error_description="` + quote(e.Description) + `"`)
		}
	}
	if requiredScope != "" {
		b.WriteString(`, scope="` + quote(requiredScope) + `"`)
	}
	return b.String()
}

// WriteBearerError writes an RFC 6750 resource server error.
func WriteBearerError(w http.ResponseWriter, e *oauth.Error, requiredScope string) {
	w.Header().Set("WWW-Authenticate", BearerChallenge(e, requiredScope))
	WriteJSON(w, e.Status, e)
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return quoter.Replace(s)
}
