package handler

import (
	"net/http"

	"github.com/edvin/authcore/internal/api/request"
	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/oauth"
)

// Token serves the token and revocation endpoints.
type Token struct {
	svc        *core.TokenService
	revocation *core.RevocationService
}

func NewToken(svc *core.TokenService, revocation *core.RevocationService) *Token {
	return &Token{svc: svc, revocation: revocation}
}

// Exchange godoc
//
//	@Summary		Token endpoint
//	@Description	Exchanges an authorization code or a refresh token for an access token. Accepts form-encoded or JSON bodies. Client credentials may be sent in the body or with HTTP Basic, but not both.
//	@Tags			OAuth
//	@Accept			application/x-www-form-urlencoded
//	@Accept			json
//	@Param			grant_type formData string true "authorization_code or refresh_token"
//	@Success		200 {object} core.TokenResponse
//	@Failure		400 {object} oauth.Error
//	@Failure		401 {object} oauth.Error
//	@Router			/oauth/token [post]
func (h *Token) Exchange(w http.ResponseWriter, r *http.Request) {
	var req request.TokenRequest
	if err := request.DecodeParams(w, r, &req); err != nil {
		writeOAuthError(w, r, "token", oauth.InvalidRequest(err.Error()))
		return
	}

	clientID, secret, oerr := clientCredentials(r, req.ClientID, req.ClientSecret)
	if oerr != nil {
		writeOAuthError(w, r, "token", oerr)
		return
	}

	resp, err := h.svc.Exchange(r.Context(), core.TokenRequest{
		GrantType:    req.GrantType,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		CodeVerifier: req.CodeVerifier,
		RefreshToken: req.RefreshToken,
		Scope:        req.Scope,
		ClientID:     clientID,
		ClientSecret: secret,
	})
	if err != nil {
		writeOAuthError(w, r, "token", err)
		return
	}

	response.NoStore(w)
	response.WriteJSON(w, http.StatusOK, resp)
}

// Revoke godoc
//
//	@Summary		Revocation endpoint
//	@Description	Revokes an access or refresh token owned by the authenticated client (RFC 7009). Unknown tokens and tokens of other clients are accepted silently.
//	@Tags			OAuth
//	@Accept			application/x-www-form-urlencoded
//	@Accept			json
//	@Param			token formData string true "Token to revoke"
//	@Param			token_type_hint formData string false "access_token or refresh_token"
//	@Success		200
//	@Failure		400 {object} oauth.Error
//	@Failure		401 {object} oauth.Error
//	@Router			/oauth/revoke [post]
func (h *Token) Revoke(w http.ResponseWriter, r *http.Request) {
	var req request.RevokeRequest
	if err := request.DecodeParams(w, r, &req); err != nil {
		writeOAuthError(w, r, "revoke", oauth.InvalidRequest(err.Error()))
		return
	}

	clientID, secret, oerr := clientCredentials(r, req.ClientID, req.ClientSecret)
	if oerr != nil {
		writeOAuthError(w, r, "revoke", oerr)
		return
	}

	err := h.revocation.Revoke(r.Context(), core.RevokeRequest{
		Token:         req.Token,
		TokenTypeHint: req.TokenTypeHint,
		ClientID:      clientID,
		ClientSecret:  secret,
	})
	if err != nil {
		writeOAuthError(w, r, "revoke", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
