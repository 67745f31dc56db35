package handler

import (
	"net/http"

	mw "github.com/edvin/authcore/internal/api/middleware"
	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/oauth"
	"github.com/edvin/authcore/internal/scope"
)

// Identity reports on the authenticated principal.
type Identity struct{}

func NewIdentity() *Identity {
	return &Identity{}
}

type userInfo struct {
	Sub      string `json:"sub"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
}

// UserInfo godoc
//
//	@Summary		UserInfo endpoint
//	@Description	Returns the subject of an access token. Requires the profile scope.
//	@Tags			OAuth
//	@Security		BearerAuth
//	@Success		200 {object} userInfo
//	@Failure		401 {object} oauth.Error
//	@Failure		403 {object} oauth.Error
//	@Router			/oauth/userinfo [get]
func (h *Identity) UserInfo(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	response.NoStore(w)
	response.WriteJSON(w, http.StatusOK, userInfo{
		Sub:      p.UserID,
		ClientID: p.ClientID,
		Scope:    scope.Format(p.Scopes),
	})
}

// WhoAmI returns the principal behind an access token or API key.
func (h *Identity) WhoAmI(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, p)
}

// principal returns the authenticated principal or writes a 401 when the
// route is missing its authentication middleware.
func principal(w http.ResponseWriter, r *http.Request) (*core.Principal, bool) {
	p := mw.GetPrincipal(r.Context())
	if p == nil {
		response.WriteBearerError(w, oauth.InvalidToken("not authenticated"), "")
		return nil, false
	}
	return p, true
}

// sessionPrincipal is principal restricted to first-party sessions. Access
// tokens and API keys are delegated credentials and get 403 so they cannot
// mint keys or withdraw consents.
func sessionPrincipal(w http.ResponseWriter, r *http.Request) (*core.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, false
	}
	if p.Kind != core.PrincipalSession {
		response.WriteError(w, http.StatusForbidden, "this operation requires a signed-in user session")
		return nil, false
	}
	return p, true
}
