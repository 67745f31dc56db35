package handler

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/metrics"
	"github.com/edvin/authcore/internal/oauth"
)

// writeOAuthError renders err on an OAuth endpoint. Errors outside the OAuth
// taxonomy are logged and reported as server_error without detail.
func writeOAuthError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	oerr, ok := oauth.As(err)
	if !ok {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("endpoint", endpoint).Msg("oauth request failed")
		oerr = oauth.ServerError("internal error")
	}
	metrics.OAuthErrors.WithLabelValues(endpoint, oerr.Code).Inc()
	response.WriteOAuthError(w, oerr)
}

// clientCredentials merges HTTP Basic client credentials with those from the
// request body. Basic values are form-encoded before base64 (RFC 6749
// section 2.3.1). Using both methods at once is rejected.
func clientCredentials(r *http.Request, bodyID, bodySecret string) (string, string, *oauth.Error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return bodyID, bodySecret, nil
	}

	id, err := url.QueryUnescape(user)
	if err != nil {
		return "", "", oauth.InvalidClient("malformed basic credentials")
	}
	secret, err := url.QueryUnescape(pass)
	if err != nil {
		return "", "", oauth.InvalidClient("malformed basic credentials")
	}
	if bodySecret != "" {
		return "", "", oauth.InvalidRequest("multiple client authentication methods")
	}
	if bodyID != "" && bodyID != id {
		return "", "", oauth.InvalidRequest("client_id does not match basic credentials")
	}
	return id, secret, nil
}

// redirectWith sends a 302 to target with params merged into its query.
func redirectWith(w http.ResponseWriter, r *http.Request, target string, params url.Values) {
	u, err := url.Parse(target)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, "invalid redirect target")
		return
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// errorParams builds the query parameters of an authorization error response
// (RFC 6749 section 4.1.2.1).
func errorParams(e *oauth.Error, state string) url.Values {
	return url.Values{
		"error":             {e.Code},
		"error_description": {e.Description},
		"state":             {state},
	}
}
