package request

import (
	"net/url"
	"strconv"
)

// TokenRequest holds the token endpoint parameters (RFC 6749 section 4.1.3
// and 6).
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (t *TokenRequest) DecodeForm(v url.Values) {
	t.GrantType = v.Get("grant_type")
	t.Code = v.Get("code")
	t.RedirectURI = v.Get("redirect_uri")
	t.CodeVerifier = v.Get("code_verifier")
	t.RefreshToken = v.Get("refresh_token")
	t.Scope = v.Get("scope")
	t.ClientID = v.Get("client_id")
	t.ClientSecret = v.Get("client_secret")
}

// RevokeRequest holds the revocation endpoint parameters (RFC 7009).
type RevokeRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
}

func (t *RevokeRequest) DecodeForm(v url.Values) {
	t.Token = v.Get("token")
	t.TokenTypeHint = v.Get("token_type_hint")
	t.ClientID = v.Get("client_id")
	t.ClientSecret = v.Get("client_secret")
}

// AuthorizeQuery holds the authorization endpoint query parameters.
type AuthorizeQuery struct {
	ResponseType        string `json:"response_type"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope"`
	State               string `json:"state"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

func (q *AuthorizeQuery) DecodeForm(v url.Values) {
	q.ResponseType = v.Get("response_type")
	q.ClientID = v.Get("client_id")
	q.RedirectURI = v.Get("redirect_uri")
	q.Scope = v.Get("scope")
	q.State = v.Get("state")
	q.CodeChallenge = v.Get("code_challenge")
	q.CodeChallengeMethod = v.Get("code_challenge_method")
}

// AuthorizeDecision is posted by the consent page. It repeats the original
// authorization parameters so they are validated again, and echoes the nonce
// the consent redirect carried.
type AuthorizeDecision struct {
	AuthorizeQuery
	Approve      bool   `json:"approve"`
	ConsentNonce string `json:"consent_nonce"`
}

func (d *AuthorizeDecision) DecodeForm(v url.Values) {
	d.AuthorizeQuery.DecodeForm(v)
	d.ConsentNonce = v.Get("consent_nonce")
	// Anything other than a true value is a denial.
	d.Approve, _ = strconv.ParseBool(v.Get("approve"))
}
