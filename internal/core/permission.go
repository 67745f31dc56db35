package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/store"
)

// UserAccess is the effective OAuth access of one user.
type UserAccess struct {
	Enabled       bool     `json:"enabled"`
	AllowedScopes []string `json:"allowed_scopes"`
	// Default is true when no override is stored for the user.
	Default bool `json:"default"`
}

// Clip keeps the requested scopes the user may delegate.
func (a *UserAccess) Clip(requested []string) []string {
	if !a.Enabled {
		return nil
	}
	return scope.Intersect(requested, a.AllowedScopes)
}

// PermissionService manages per-user caps on what OAuth clients may be
// granted.
type PermissionService struct {
	store    store.Store
	defaults []string
	now      func() time.Time
}

// NewPermissionService creates a PermissionService. Users without an
// override may delegate defaults; nil defaults means every known scope.
func NewPermissionService(st store.Store, defaults []string, now func() time.Time) *PermissionService {
	if defaults == nil {
		defaults = scope.Known
	}
	return &PermissionService{store: st, defaults: scope.Normalize(defaults), now: now}
}

// Access returns the user's effective access.
func (s *PermissionService) Access(ctx context.Context, userID string) (*UserAccess, error) {
	p, err := s.store.GetUserPermission(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &UserAccess{Enabled: true, AllowedScopes: slices.Clone(s.defaults), Default: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user permission: %w", err)
	}
	return &UserAccess{Enabled: p.OAuthEnabled, AllowedScopes: p.AllowedScopes}, nil
}

// Set stores an override for the user. Disabling a user revokes every token
// they hold.
func (s *PermissionService) Set(ctx context.Context, userID string, enabled bool, scopes []string, updatedBy string) (*model.UserPermission, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	for _, sc := range scopes {
		if !scope.IsKnown(sc) {
			return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, sc)
		}
	}
	if enabled && len(scopes) == 0 {
		return nil, fmt.Errorf("%w: an enabled user needs at least one scope", ErrInvalidInput)
	}

	now := s.now()
	p := &model.UserPermission{
		UserID:        userID,
		OAuthEnabled:  enabled,
		AllowedScopes: scope.Normalize(scopes),
		UpdatedBy:     updatedBy,
		UpdatedAt:     now,
	}
	if p.AllowedScopes == nil {
		p.AllowedScopes = []string{}
	}
	if err := s.store.SaveUserPermission(ctx, p); err != nil {
		return nil, fmt.Errorf("save user permission: %w", err)
	}

	log := zerolog.Ctx(ctx).Info().
		Str("user_id", userID).
		Bool("oauth_enabled", enabled).
		Strs("allowed_scopes", p.AllowedScopes)
	if !enabled {
		n, err := s.store.RevokeUserTokens(ctx, userID, now)
		if err != nil {
			return nil, fmt.Errorf("revoke user tokens: %w", err)
		}
		log = log.Int64("revoked", n)
	}
	log.Msg("user oauth access updated")
	return p, nil
}

// Reset removes the user's override so the defaults apply again.
func (s *PermissionService) Reset(ctx context.Context, userID string) error {
	if err := s.store.DeleteUserPermission(ctx, userID); err != nil {
		return fmt.Errorf("delete user permission: %w", err)
	}
	return nil
}

// List returns every stored override.
func (s *PermissionService) List(ctx context.Context) ([]model.UserPermission, error) {
	perms, err := s.store.ListUserPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user permissions: %w", err)
	}
	return perms, nil
}
