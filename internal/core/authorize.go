package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/metrics"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/oauth"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/store"
)

// AuthorizeRequest carries the authorization endpoint parameters.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Authorization is a request whose client, redirect URI, PKCE parameters and
// scopes have been validated.
type Authorization struct {
	Client              *model.Client
	RedirectURI         string
	State               string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
}

// RedirectError is a failure discovered after the redirect URI was validated.
// It must be delivered to RedirectURI rather than rendered.
type RedirectError struct {
	Err         *oauth.Error
	RedirectURI string
	State       string
}

func (e *RedirectError) Error() string { return e.Err.Error() }

func (e *RedirectError) Unwrap() error { return e.Err }

// AuthorizeService validates authorization requests and issues codes.
type AuthorizeService struct {
	store   store.Store
	clients *ClientRegistry
	perms   *PermissionService
	codeTTL time.Duration
	now     func() time.Time
}

func NewAuthorizeService(st store.Store, clients *ClientRegistry, perms *PermissionService, codeTTL time.Duration, now func() time.Time) *AuthorizeService {
	return &AuthorizeService{store: st, clients: clients, perms: perms, codeTTL: codeTTL, now: now}
}

// Validate checks the request in protocol order. Failures before the redirect
// URI is trusted are returned as *oauth.Error; later failures are returned as
// *RedirectError.
func (s *AuthorizeService) Validate(ctx context.Context, req AuthorizeRequest) (*Authorization, error) {
	if req.ResponseType != "code" {
		return nil, oauth.UnsupportedResponseType("response_type must be code")
	}

	client, err := s.clients.Get(ctx, req.ClientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &oauth.Error{Code: oauth.CodeInvalidClient, Description: "unknown or inactive client", Status: http.StatusBadRequest}
	}
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", req.ClientID, err)
	}

	if !client.HasRedirectURI(req.RedirectURI) {
		return nil, oauth.InvalidRequest("redirect_uri is missing or not registered for this client")
	}

	redirect := func(e *oauth.Error) error {
		return &RedirectError{Err: e, RedirectURI: req.RedirectURI, State: req.State}
	}

	method := req.CodeChallengeMethod
	if req.CodeChallenge == "" {
		if method != "" {
			return nil, redirect(oauth.InvalidRequest("code_challenge_method requires code_challenge"))
		}
	} else {
		if method == "" {
			method = crypto.ChallengePlain
		}
		if !crypto.ValidChallengeMethod(method) {
			return nil, redirect(oauth.InvalidRequest("code_challenge_method must be S256 or plain"))
		}
	}

	requested := client.AllowedScopes
	if req.Scope != "" {
		requested = scope.Parse(req.Scope)
	}
	granted := scope.Intersect(requested, client.AllowedScopes)
	if len(granted) == 0 {
		return nil, redirect(oauth.InvalidScope("none of the requested scopes are allowed for this client"))
	}

	return &Authorization{
		Client:              client,
		RedirectURI:         req.RedirectURI,
		State:               req.State,
		Scopes:              granted,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
	}, nil
}

// ForUser narrows auth to the scopes userID may delegate. A user whose OAuth
// access is disabled gets access_denied; a user allowed none of the scopes
// gets invalid_scope. Both are delivered as *RedirectError.
func (s *AuthorizeService) ForUser(ctx context.Context, userID string, auth *Authorization) (*Authorization, error) {
	access, err := s.perms.Access(ctx, userID)
	if err != nil {
		return nil, err
	}
	redirect := func(e *oauth.Error) error {
		return &RedirectError{Err: e, RedirectURI: auth.RedirectURI, State: auth.State}
	}
	if !access.Enabled {
		return nil, redirect(oauth.AccessDenied("OAuth access is disabled for this user"))
	}
	granted := access.Clip(auth.Scopes)
	if len(granted) == 0 {
		return nil, redirect(oauth.InvalidScope("none of the requested scopes are allowed for this user"))
	}
	out := *auth
	out.Scopes = granted
	return &out, nil
}

// HasConsent reports whether the user already approved every scope of auth
// for its client.
func (s *AuthorizeService) HasConsent(ctx context.Context, userID string, auth *Authorization) (bool, error) {
	c, err := s.store.GetConsent(ctx, userID, auth.Client.ID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get consent: %w", err)
	}
	return c.RevokedAt == nil && scope.Covers(c.Scopes, auth.Scopes), nil
}

// Approve records the user's consent and issues a code. Scopes the user may
// not delegate are dropped first.
func (s *AuthorizeService) Approve(ctx context.Context, userID string, auth *Authorization) (string, error) {
	auth, err := s.ForUser(ctx, userID, auth)
	if err != nil {
		return "", err
	}
	err = s.store.SaveConsent(ctx, &model.Consent{
		ID:        crypto.NewID(),
		UserID:    userID,
		ClientID:  auth.Client.ID,
		Scopes:    auth.Scopes,
		GrantedAt: s.now(),
	})
	if err != nil {
		return "", fmt.Errorf("save consent: %w", err)
	}
	return s.issueCode(ctx, userID, auth)
}

// IssueCode stores a new authorization code for the user and returns its
// cleartext value, which is never persisted or logged.
func (s *AuthorizeService) IssueCode(ctx context.Context, userID string, auth *Authorization) (string, error) {
	auth, err := s.ForUser(ctx, userID, auth)
	if err != nil {
		return "", err
	}
	return s.issueCode(ctx, userID, auth)
}

func (s *AuthorizeService) issueCode(ctx context.Context, userID string, auth *Authorization) (string, error) {
	raw, err := crypto.NewToken(crypto.AuthCodePrefix)
	if err != nil {
		return "", err
	}

	now := s.now()
	code := &model.AuthorizationCode{
		ID:          crypto.NewID(),
		CodeHash:    crypto.LookupHash(raw),
		ClientID:    auth.Client.ID,
		UserID:      userID,
		RedirectURI: auth.RedirectURI,
		Scopes:      auth.Scopes,
		ExpiresAt:   now.Add(s.codeTTL),
		CreatedAt:   now,
	}
	if auth.CodeChallenge != "" {
		challenge, method := auth.CodeChallenge, auth.CodeChallengeMethod
		code.CodeChallenge = &challenge
		code.CodeChallengeMethod = &method
	}

	if err := s.store.CreateAuthorizationCode(ctx, code); err != nil {
		return "", err
	}
	metrics.AuthorizationCodesIssued.Inc()

	zerolog.Ctx(ctx).Info().
		Str("client_id", code.ClientID).
		Str("user_id", userID).
		Str("grant_id", code.ID).
		Bool("pkce", code.CodeChallenge != nil).
		Msg("authorization code issued")

	return raw, nil
}
