package handler

import (
	"net/http"

	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/scope"
)

// Metadata serves the authorization server metadata document (RFC 8414).
type Metadata struct {
	doc map[string]any
}

func NewMetadata(issuerURL string) *Metadata {
	return &Metadata{doc: map[string]any{
		"issuer":                                issuerURL,
		"authorization_endpoint":                issuerURL + "/oauth/authorize",
		"token_endpoint":                        issuerURL + "/oauth/token",
		"revocation_endpoint":                   issuerURL + "/oauth/revoke",
		"userinfo_endpoint":                     issuerURL + "/oauth/userinfo",
		"scopes_supported":                      scope.Known,
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{core.GrantAuthorizationCode, core.GrantRefreshToken},
		"code_challenge_methods_supported":      []string{crypto.ChallengeS256, crypto.ChallengePlain},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "none"},

		"revocation_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
	}}
}

// Discovery godoc
//
//	@Summary		Authorization server metadata
//	@Description	Returns the RFC 8414 metadata document. No authentication required.
//	@Tags			OAuth
//	@Success		200 {object} map[string]any
//	@Router			/.well-known/oauth-authorization-server [get]
func (h *Metadata) Discovery(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.doc)
}
