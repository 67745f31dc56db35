package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/api/request"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/metrics"
	"github.com/edvin/authcore/internal/oauth"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/session"
)

// Authorize serves the authorization endpoint and the consent decision
// endpoint. Login and consent pages belong to an external UI.
type Authorize struct {
	svc        *core.AuthorizeService
	sessions   session.Resolver
	prompts    session.PromptStore
	issuerURL  string
	loginURL   string
	consentURL string
}

func NewAuthorize(svc *core.AuthorizeService, sessions session.Resolver, prompts session.PromptStore, issuerURL, loginURL, consentURL string) *Authorize {
	return &Authorize{
		svc:        svc,
		sessions:   sessions,
		prompts:    prompts,
		issuerURL:  issuerURL,
		loginURL:   loginURL,
		consentURL: consentURL,
	}
}

// Authorize godoc
//
//	@Summary		Authorization endpoint
//	@Description	Starts the authorization code flow. Unauthenticated users are sent to the login page with a return_to parameter. Users without a covering consent are sent to the consent page with the original query plus a one-time consent_nonce. Otherwise a code is issued and the browser is redirected to redirect_uri.
//	@Tags			OAuth
//	@Param			response_type query string true "Must be 'code'"
//	@Param			client_id query string true "Client ID"
//	@Param			redirect_uri query string true "Registered redirect URI"
//	@Param			scope query string false "Space separated scopes"
//	@Param			state query string false "Opaque value returned in the redirect"
//	@Param			code_challenge query string false "PKCE challenge"
//	@Param			code_challenge_method query string false "S256 or plain"
//	@Success		302
//	@Failure		400 {object} oauth.Error
//	@Router			/oauth/authorize [get]
func (h *Authorize) Authorize(w http.ResponseWriter, r *http.Request) {
	var q request.AuthorizeQuery
	q.DecodeForm(r.URL.Query())

	auth, ok := h.validate(w, r, q)
	if !ok {
		return
	}

	userID, err := h.sessions.UserID(r)
	if errors.Is(err, session.ErrNoSession) {
		redirectWith(w, r, h.loginURL, url.Values{"return_to": {h.issuerURL + r.URL.RequestURI()}})
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("resolve session")
		h.redirectError(w, r, auth, oauth.New(oauth.CodeTemporarilyUnavailable, "session lookup failed"))
		return
	}

	auth, ok = h.forUser(w, r, userID, auth)
	if !ok {
		return
	}

	consented, err := h.svc.HasConsent(r.Context(), userID, auth)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("check consent")
		h.redirectError(w, r, auth, oauth.ServerError("consent lookup failed"))
		return
	}
	if !consented {
		nonce, err := crypto.NewToken(crypto.ConsentNoncePrefix)
		if err == nil {
			err = h.prompts.Put(r.Context(), nonce, promptFor(userID, auth))
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("store consent prompt")
			h.redirectError(w, r, auth, oauth.New(oauth.CodeTemporarilyUnavailable, "consent prompt unavailable"))
			return
		}
		params := r.URL.Query()
		params.Set("consent_nonce", nonce)
		redirectWith(w, r, h.consentURL, params)
		return
	}

	code, err := h.svc.IssueCode(r.Context(), userID, auth)
	h.finish(w, r, auth, code, err)
}

// Decision godoc
//
//	@Summary		Consent decision
//	@Description	Receives the user's decision from the consent page together with the original authorization parameters, which are validated again. The consent_nonce issued with the consent redirect must match the same user and request and is consumed. Approval records consent and issues a code; denial or a missing, reused or mismatched nonce redirects with access_denied.
//	@Tags			OAuth
//	@Accept			application/x-www-form-urlencoded
//	@Param			approve formData bool true "true to grant access"
//	@Param			consent_nonce formData string true "Nonce from the consent redirect"
//	@Success		302
//	@Failure		400 {object} oauth.Error
//	@Router			/oauth/authorize/decision [post]
func (h *Authorize) Decision(w http.ResponseWriter, r *http.Request) {
	var d request.AuthorizeDecision
	if err := request.DecodeParams(w, r, &d); err != nil {
		writeOAuthError(w, r, "authorize", oauth.InvalidRequest(err.Error()))
		return
	}

	auth, ok := h.validate(w, r, d.AuthorizeQuery)
	if !ok {
		return
	}

	userID, err := h.sessions.UserID(r)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("resolve session")
		}
		h.redirectError(w, r, auth, oauth.AccessDenied("no authenticated session"))
		return
	}

	auth, ok = h.forUser(w, r, userID, auth)
	if !ok {
		return
	}

	prompt, err := h.prompts.Take(r.Context(), d.ConsentNonce)
	if errors.Is(err, session.ErrPromptNotFound) {
		zerolog.Ctx(r.Context()).Warn().Str("client_id", auth.Client.ID).Msg("consent decision without a valid nonce")
		h.redirectError(w, r, auth, oauth.AccessDenied("consent prompt is missing, expired or already used"))
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("take consent prompt")
		h.redirectError(w, r, auth, oauth.New(oauth.CodeTemporarilyUnavailable, "consent prompt unavailable"))
		return
	}
	if *prompt != promptFor(userID, auth) {
		zerolog.Ctx(r.Context()).Warn().Str("client_id", auth.Client.ID).Msg("consent decision does not match its prompt")
		h.redirectError(w, r, auth, oauth.AccessDenied("consent decision does not match the prompt"))
		return
	}
	if !d.Approve {
		h.redirectError(w, r, auth, oauth.AccessDenied("the user denied the request"))
		return
	}

	code, err := h.svc.Approve(r.Context(), userID, auth)
	h.finish(w, r, auth, code, err)
}

// forUser narrows auth to what the user may delegate and writes the error
// redirect when nothing is left.
func (h *Authorize) forUser(w http.ResponseWriter, r *http.Request, userID string, auth *core.Authorization) (*core.Authorization, bool) {
	narrowed, err := h.svc.ForUser(r.Context(), userID, auth)
	var rerr *core.RedirectError
	if errors.As(err, &rerr) {
		h.redirectError(w, r, auth, rerr.Err)
		return nil, false
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("check user oauth access")
		h.redirectError(w, r, auth, oauth.ServerError("user access lookup failed"))
		return nil, false
	}
	return narrowed, true
}

func promptFor(userID string, auth *core.Authorization) session.Prompt {
	return session.Prompt{
		UserID:        userID,
		ClientID:      auth.Client.ID,
		RedirectURI:   auth.RedirectURI,
		Scope:         scope.Format(auth.Scopes),
		State:         auth.State,
		CodeChallenge: auth.CodeChallenge,
	}
}

// validate runs the request checks and writes the error response when they
// fail. Errors found before the redirect URI is trusted are rendered directly.
func (h *Authorize) validate(w http.ResponseWriter, r *http.Request, q request.AuthorizeQuery) (*core.Authorization, bool) {
	auth, err := h.svc.Validate(r.Context(), core.AuthorizeRequest{
		ResponseType:        q.ResponseType,
		ClientID:            q.ClientID,
		RedirectURI:         q.RedirectURI,
		Scope:               q.Scope,
		State:               q.State,
		CodeChallenge:       q.CodeChallenge,
		CodeChallengeMethod: q.CodeChallengeMethod,
	})
	var rerr *core.RedirectError
	if errors.As(err, &rerr) {
		metrics.OAuthErrors.WithLabelValues("authorize", rerr.Err.Code).Inc()
		redirectWith(w, r, rerr.RedirectURI, errorParams(rerr.Err, rerr.State))
		return nil, false
	}
	if err != nil {
		writeOAuthError(w, r, "authorize", err)
		return nil, false
	}
	return auth, true
}

func (h *Authorize) finish(w http.ResponseWriter, r *http.Request, auth *core.Authorization, code string, err error) {
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("client_id", auth.Client.ID).Msg("issue authorization code")
		h.redirectError(w, r, auth, oauth.ServerError("could not issue authorization code"))
		return
	}
	redirectWith(w, r, auth.RedirectURI, url.Values{"code": {code}, "state": {auth.State}})
}

func (h *Authorize) redirectError(w http.ResponseWriter, r *http.Request, auth *core.Authorization, e *oauth.Error) {
	metrics.OAuthErrors.WithLabelValues("authorize", e.Code).Inc()
	redirectWith(w, r, auth.RedirectURI, errorParams(e, auth.State))
}
