package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/metrics"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/oauth"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/store"
)

// Grant types accepted by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// TokenRequest carries token endpoint parameters after client credentials
// have been merged from the Authorization header and the form body.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
	ClientID     string
	ClientSecret string
}

// TokenResponse is the RFC 6749 section 5.1 success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

// TokenService implements the authorization_code and refresh_token grants.
type TokenService struct {
	store   store.Store
	clients *ClientRegistry
	perms   *PermissionService
	opts    Options
	now     func() time.Time
}

func NewTokenService(st store.Store, clients *ClientRegistry, perms *PermissionService, opts Options, now func() time.Time) *TokenService {
	return &TokenService{store: st, clients: clients, perms: perms, opts: opts, now: now}
}

// Exchange dispatches on grant_type. OAuth failures are returned as
// *oauth.Error; any other error is an internal failure.
func (s *TokenService) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	var (
		resp *TokenResponse
		err  error
	)
	switch req.GrantType {
	case GrantAuthorizationCode:
		resp, err = s.exchangeCode(ctx, req)
	case GrantRefreshToken:
		resp, err = s.refresh(ctx, req)
	case "":
		return nil, oauth.InvalidRequest("grant_type is required")
	default:
		return nil, oauth.UnsupportedGrantType("grant_type must be authorization_code or refresh_token")
	}
	if err != nil {
		return nil, err
	}
	metrics.TokensIssued.WithLabelValues(req.GrantType).Inc()
	return resp, nil
}

func (s *TokenService) exchangeCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, oauth.InvalidRequest("code is required")
	}
	if req.RedirectURI == "" {
		return nil, oauth.InvalidRequest("redirect_uri is required")
	}

	now := s.now()
	codeHash := crypto.LookupHash(req.Code)

	code, err := s.store.ClaimAuthorizationCode(ctx, codeHash, now)
	if errors.Is(err, store.ErrNotFound) {
		s.handleReplay(ctx, codeHash)
		return nil, oauth.InvalidGrant("authorization code is invalid, expired or already used")
	}
	if err != nil {
		return nil, fmt.Errorf("claim authorization code: %w", err)
	}

	// The code is spent from here on, whatever the outcome.
	if !crypto.Equal(code.RedirectURI, req.RedirectURI) {
		return nil, oauth.InvalidGrant("redirect_uri does not match the authorization request")
	}
	if req.ClientID != "" && !crypto.Equal(code.ClientID, req.ClientID) {
		return nil, oauth.InvalidGrant("authorization code was issued to another client")
	}

	client, err := s.clients.Authenticate(ctx, code.ClientID, req.ClientSecret, code.CodeChallenge != nil)
	if err != nil {
		return nil, err
	}

	if code.CodeChallenge != nil {
		if req.CodeVerifier == "" {
			return nil, oauth.InvalidGrant("code_verifier is required")
		}
		if !crypto.VerifyCodeChallenge(req.CodeVerifier, *code.CodeChallenge, *code.CodeChallengeMethod) {
			return nil, oauth.InvalidGrant("code_verifier does not match code_challenge")
		}
	}

	at, rawAT, err := s.newAccessToken(client.ID, code.UserID, code.Scopes, code.ID, now)
	if err != nil {
		return nil, err
	}
	// Public clients cannot authenticate a refresh grant, so they get none.
	var (
		rt    *model.RefreshToken
		rawRT string
	)
	if !client.IsPublic() {
		rt, rawRT, err = s.newRefreshToken(at, now, nil)
		if err != nil {
			return nil, err
		}
	}
	if err := s.store.IssueTokens(ctx, at, rt); err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	// A replay that marked the code before this point may have run its grant
	// revocation before the tokens above existed.
	if s.opts.RevokeOnCodeReplay {
		replayed, err := s.store.CodeReplayed(ctx, code.ID)
		if err != nil {
			return nil, fmt.Errorf("check code replay: %w", err)
		}
		if replayed {
			if _, err := s.store.RevokeGrant(ctx, code.ID, s.now()); err != nil {
				return nil, fmt.Errorf("revoke replayed grant: %w", err)
			}
			return nil, oauth.InvalidGrant("authorization code was replayed")
		}
	}

	zerolog.Ctx(ctx).Info().
		Str("client_id", client.ID).
		Str("user_id", code.UserID).
		Str("grant_id", code.ID).
		Msg("authorization code exchanged")

	return s.response(rawAT, rawRT, at.Scopes), nil
}

// handleReplay revokes every token derived from a code that is presented
// again after being consumed. The replay is recorded on the code first so a
// redemption still in flight revokes its own tokens.
func (s *TokenService) handleReplay(ctx context.Context, codeHash string) {
	if !s.opts.RevokeOnCodeReplay {
		return
	}
	code, err := s.store.MarkAuthorizationCodeReplayed(ctx, codeHash, s.now())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to record code replay")
		}
		return
	}

	metrics.CodeReplays.Inc()
	n, err := s.store.RevokeGrant(ctx, code.ID, s.now())
	log := zerolog.Ctx(ctx)
	if err != nil {
		log.Error().Err(err).Str("grant_id", code.ID).Msg("failed to revoke grant after code replay")
		return
	}
	log.Warn().
		Str("client_id", code.ClientID).
		Str("grant_id", code.ID).
		Int64("revoked", n).
		Msg("authorization code replayed, grant revoked")
}

func (s *TokenService) refresh(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, oauth.InvalidRequest("refresh_token is required")
	}

	client, err := s.clients.Authenticate(ctx, req.ClientID, req.ClientSecret, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	old, err := s.store.GetRefreshToken(ctx, crypto.LookupHash(req.RefreshToken))
	if errors.Is(err, store.ErrNotFound) {
		return nil, oauth.InvalidGrant("refresh token is invalid")
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if !old.Active(now) {
		return nil, oauth.InvalidGrant("refresh token is expired or revoked")
	}
	if !crypto.Equal(old.ClientID, client.ID) {
		return nil, oauth.InvalidGrant("refresh token was issued to another client")
	}

	scopes := old.Scopes
	if req.Scope != "" {
		requested := scope.Split(req.Scope)
		if !scope.Covers(old.Scopes, requested) {
			return nil, oauth.InvalidScope("requested scope exceeds the original grant")
		}
		scopes = scope.Normalize(requested)
	}

	// The user's cap may have been lowered since the grant.
	access, err := s.perms.Access(ctx, old.UserID)
	if err != nil {
		return nil, err
	}
	if !access.Enabled {
		return nil, oauth.InvalidGrant("OAuth access is disabled for this user")
	}
	scopes = access.Clip(scopes)
	if len(scopes) == 0 {
		return nil, oauth.InvalidScope("none of the granted scopes are allowed for this user")
	}

	at, rawAT, err := s.newAccessToken(client.ID, old.UserID, scopes, old.GrantID, now)
	if err != nil {
		return nil, err
	}

	if !s.opts.RefreshRotation {
		if err := s.store.IssueTokens(ctx, at, nil); err != nil {
			return nil, fmt.Errorf("issue access token: %w", err)
		}
		return s.response(rawAT, req.RefreshToken, scopes), nil
	}

	rt, rawRT, err := s.newRefreshToken(at, now, &old.ID)
	if err != nil {
		return nil, err
	}
	// The refresh token keeps the original grant scope so a narrowed request
	// does not shrink later refreshes.
	rt.Scopes = old.Scopes
	rt.ExpiresAt = old.ExpiresAt

	err = s.store.RotateRefreshToken(ctx, old.ID, now, at, rt)
	if errors.Is(err, store.ErrNotFound) {
		return nil, oauth.InvalidGrant("refresh token already used")
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("client_id", client.ID).
		Str("user_id", old.UserID).
		Str("grant_id", old.GrantID).
		Msg("refresh token rotated")

	return s.response(rawAT, rawRT, scopes), nil
}

func (s *TokenService) newAccessToken(clientID, userID string, scopes []string, grantID string, now time.Time) (*model.AccessToken, string, error) {
	raw, err := crypto.NewToken(crypto.AccessTokenPrefix)
	if err != nil {
		return nil, "", err
	}
	return &model.AccessToken{
		ID:        crypto.NewID(),
		TokenHash: crypto.LookupHash(raw),
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		GrantID:   grantID,
		ExpiresAt: now.Add(s.opts.AccessTokenTTL),
		CreatedAt: now,
	}, raw, nil
}

func (s *TokenService) newRefreshToken(at *model.AccessToken, now time.Time, rotatedFrom *string) (*model.RefreshToken, string, error) {
	raw, err := crypto.NewToken(crypto.RefreshTokenPrefix)
	if err != nil {
		return nil, "", err
	}
	return &model.RefreshToken{
		ID:            crypto.NewID(),
		TokenHash:     crypto.LookupHash(raw),
		ClientID:      at.ClientID,
		UserID:        at.UserID,
		Scopes:        at.Scopes,
		GrantID:       at.GrantID,
		AccessTokenID: at.ID,
		RotatedFrom:   rotatedFrom,
		ExpiresAt:     now.Add(s.opts.RefreshTokenTTL),
		CreatedAt:     now,
	}, raw, nil
}

func (s *TokenService) response(accessToken, refreshToken string, scopes []string) *TokenResponse {
	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.opts.AccessTokenTTL / time.Second),
		RefreshToken: refreshToken,
		Scope:        scope.Format(scopes),
	}
}
