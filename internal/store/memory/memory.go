// Package memory is an in-process store.Store used by tests and single-node
// development setups. All state lives behind one mutex, which makes the
// conditional claims linearizable.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
)

// Store keeps records in maps keyed by ID; the hash indexes map lookup hashes
// to IDs.
type Store struct {
	mu sync.Mutex

	clients  map[string]model.Client
	codes    map[string]model.AuthorizationCode // by code hash
	access   map[string]model.AccessToken       // by ID
	refresh  map[string]model.RefreshToken      // by ID
	consents map[string]model.Consent           // by user|client
	apiKeys  map[string]model.APIKey            // by ID
	perms    map[string]model.UserPermission    // by user ID
	audit    []model.AuditEntry

	accessByHash  map[string]string
	refreshByHash map[string]string
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		clients:       map[string]model.Client{},
		codes:         map[string]model.AuthorizationCode{},
		access:        map[string]model.AccessToken{},
		refresh:       map[string]model.RefreshToken{},
		consents:      map[string]model.Consent{},
		apiKeys:       map[string]model.APIKey{},
		perms:         map[string]model.UserPermission{},
		accessByHash:  map[string]string{},
		refreshByHash: map[string]string{},
	}
}

func consentKey(userID, clientID string) string {
	return userID + "|" + clientID
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// ---------- Clients ----------

func (s *Store) GetClient(_ context.Context, id string) (*model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.RedirectURIs = slices.Clone(c.RedirectURIs)
	c.AllowedScopes = slices.Clone(c.AllowedScopes)
	return &c, nil
}

func (s *Store) SaveClient(_ context.Context, c *model.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	if existing, ok := s.clients[c.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	cp.RedirectURIs = slices.Clone(c.RedirectURIs)
	cp.AllowedScopes = slices.Clone(c.AllowedScopes)
	s.clients[c.ID] = cp
	return nil
}

// ---------- Authorization codes ----------

func (s *Store) CreateAuthorizationCode(_ context.Context, code *model.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code.CodeHash] = *code
	return nil
}

func (s *Store) ClaimAuthorizationCode(_ context.Context, codeHash string, now time.Time) (*model.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[codeHash]
	if !ok || code.ConsumedAt != nil || !now.Before(code.ExpiresAt) {
		return nil, store.ErrNotFound
	}
	code.ConsumedAt = timePtr(now)
	s.codes[codeHash] = code
	return &code, nil
}

func (s *Store) GetAuthorizationCode(_ context.Context, codeHash string) (*model.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[codeHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &code, nil
}

func (s *Store) MarkAuthorizationCodeReplayed(_ context.Context, codeHash string, now time.Time) (*model.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[codeHash]
	if !ok || code.ConsumedAt == nil {
		return nil, store.ErrNotFound
	}
	if code.ReplayedAt == nil {
		code.ReplayedAt = timePtr(now)
		s.codes[codeHash] = code
	}
	return &code, nil
}

func (s *Store) CodeReplayed(_ context.Context, codeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.codes {
		if c.ID == codeID {
			return c.ReplayedAt != nil, nil
		}
	}
	return false, store.ErrNotFound
}

// ---------- Tokens ----------

func (s *Store) IssueTokens(_ context.Context, at *model.AccessToken, rt *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putTokens(at, rt)
	return nil
}

func (s *Store) putTokens(at *model.AccessToken, rt *model.RefreshToken) {
	s.access[at.ID] = *at
	s.accessByHash[at.TokenHash] = at.ID
	if rt != nil {
		s.refresh[rt.ID] = *rt
		s.refreshByHash[rt.TokenHash] = rt.ID
	}
}

func (s *Store) RotateRefreshToken(_ context.Context, oldID string, now time.Time, at *model.AccessToken, rt *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.refresh[oldID]
	if !ok || old.RevokedAt != nil {
		return store.ErrNotFound
	}
	old.RevokedAt = timePtr(now)
	s.refresh[oldID] = old
	s.putTokens(at, rt)
	return nil
}

func (s *Store) GetAccessToken(_ context.Context, tokenHash string) (*model.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.accessByHash[tokenHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := s.access[id]
	return &t, nil
}

func (s *Store) GetRefreshToken(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.refreshByHash[tokenHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := s.refresh[id]
	return &t, nil
}

func (s *Store) RevokeAccessToken(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.access[id]; ok && t.RevokedAt == nil {
		t.RevokedAt = timePtr(now)
		s.access[id] = t
	}
	return nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.refresh[id]; ok && t.RevokedAt == nil {
		t.RevokedAt = timePtr(now)
		s.refresh[id] = t
	}
	return nil
}

func (s *Store) RevokeGrant(_ context.Context, grantID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeWhere(now, func(clientID, userID, gid string) bool { return gid == grantID }), nil
}

func (s *Store) RevokeUserClientTokens(_ context.Context, userID, clientID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeWhere(now, func(c, u, _ string) bool { return c == clientID && u == userID }), nil
}

func (s *Store) RevokeUserTokens(_ context.Context, userID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeWhere(now, func(_, u, _ string) bool { return u == userID }), nil
}

func (s *Store) RecordAccessTokenUse(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.access[id]
	if !ok {
		return store.ErrNotFound
	}
	if t.LastUsedAt == nil || at.After(*t.LastUsedAt) {
		t.LastUsedAt = timePtr(at)
	}
	t.UseCount++
	s.access[id] = t
	return nil
}

func (s *Store) ListActiveTokens(_ context.Context, f store.TokenFilter, now time.Time) ([]model.TokenSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := func(clientID, userID string) bool {
		return (f.UserID == "" || f.UserID == userID) && (f.ClientID == "" || f.ClientID == clientID)
	}
	var out []model.TokenSummary
	for _, t := range s.access {
		if t.Active(now) && match(t.ClientID, t.UserID) {
			out = append(out, model.TokenSummary{
				ID: t.ID, Kind: model.TokenKindAccess, ClientID: t.ClientID,
				ClientName: s.clients[t.ClientID].Name, UserID: t.UserID,
				Scopes: slices.Clone(t.Scopes), CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt,
				LastUsedAt: t.LastUsedAt, UseCount: t.UseCount,
			})
		}
	}
	for _, t := range s.refresh {
		if t.Active(now) && match(t.ClientID, t.UserID) {
			out = append(out, model.TokenSummary{
				ID: t.ID, Kind: model.TokenKindRefresh, ClientID: t.ClientID,
				ClientName: s.clients[t.ClientID].Name, UserID: t.UserID,
				Scopes: slices.Clone(t.Scopes), CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt,
			})
		}
	}
	slices.SortFunc(out, func(a, b model.TokenSummary) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) revokeWhere(now time.Time, match func(clientID, userID, grantID string) bool) int64 {
	var n int64
	for id, t := range s.access {
		if t.RevokedAt == nil && match(t.ClientID, t.UserID, t.GrantID) {
			t.RevokedAt = timePtr(now)
			s.access[id] = t
			n++
		}
	}
	for id, t := range s.refresh {
		if t.RevokedAt == nil && match(t.ClientID, t.UserID, t.GrantID) {
			t.RevokedAt = timePtr(now)
			s.refresh[id] = t
			n++
		}
	}
	return n
}

// ---------- Consents ----------

func (s *Store) GetConsent(_ context.Context, userID, clientID string) (*model.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.consents[consentKey(userID, clientID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) SaveConsent(_ context.Context, c *model.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	key := consentKey(c.UserID, c.ClientID)
	if existing, ok := s.consents[key]; ok {
		cp.ID = existing.ID
	}
	cp.RevokedAt = nil
	cp.Scopes = slices.Clone(c.Scopes)
	s.consents[key] = cp
	return nil
}

func (s *Store) ListConsents(_ context.Context, userID string) ([]model.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Consent
	for _, c := range s.consents {
		if c.UserID == userID && c.RevokedAt == nil {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b model.Consent) int { return b.GrantedAt.Compare(a.GrantedAt) })
	return out, nil
}

func (s *Store) RevokeConsent(_ context.Context, userID, clientID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := consentKey(userID, clientID)
	c, ok := s.consents[key]
	if !ok || c.RevokedAt != nil {
		return store.ErrNotFound
	}
	c.RevokedAt = timePtr(now)
	s.consents[key] = c
	return nil
}

// ---------- API keys ----------

func (s *Store) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *key
	cp.Scopes = slices.Clone(key.Scopes)
	s.apiKeys[key.ID] = cp
	return nil
}

func (s *Store) FindAPIKeysByPrefix(_ context.Context, prefix string) ([]model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.APIKey
	for _, k := range s.apiKeys {
		if crypto.Equal(k.Prefix, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Store) ListAPIKeys(_ context.Context, ownerID string) ([]model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.APIKey
	for _, k := range s.apiKeys {
		if k.OwnerID == ownerID {
			out = append(out, k)
		}
	}
	slices.SortFunc(out, func(a, b model.APIKey) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) RevokeAPIKey(_ context.Context, ownerID, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.apiKeys[id]
	if !ok || k.OwnerID != ownerID || k.RevokedAt != nil {
		return store.ErrNotFound
	}
	k.RevokedAt = timePtr(now)
	s.apiKeys[id] = k
	return nil
}

func (s *Store) RecordAPIKeyUse(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.apiKeys[id]
	if !ok {
		return store.ErrNotFound
	}
	k.LastUsedAt = timePtr(at)
	k.UseCount++
	s.apiKeys[id] = k
	return nil
}

// ---------- User permissions ----------

func (s *Store) GetUserPermission(_ context.Context, userID string) (*model.UserPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.perms[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.AllowedScopes = slices.Clone(p.AllowedScopes)
	return &p, nil
}

func (s *Store) SaveUserPermission(_ context.Context, p *model.UserPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.AllowedScopes = slices.Clone(p.AllowedScopes)
	s.perms[p.UserID] = cp
	return nil
}

func (s *Store) DeleteUserPermission(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.perms[userID]; !ok {
		return store.ErrNotFound
	}
	delete(s.perms, userID)
	return nil
}

func (s *Store) ListUserPermissions(_ context.Context) ([]model.UserPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.UserPermission, 0, len(s.perms))
	for _, p := range s.perms {
		p.AllowedScopes = slices.Clone(p.AllowedScopes)
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.UserPermission) int { return strings.Compare(a.UserID, b.UserID) })
	return out, nil
}

// ---------- Audit ----------

func (s *Store) InsertAuditEntry(_ context.Context, e *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	cp.ID = int64(len(s.audit) + 1)
	s.audit = append(s.audit, cp)
	return nil
}

// AuditEntries returns a copy of the recorded audit entries.
func (s *Store) AuditEntries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.audit)
}

// ---------- Maintenance ----------

func (s *Store) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, c := range s.codes {
		if c.ExpiresAt.Before(before) {
			delete(s.codes, h)
			n++
		}
	}
	for id, t := range s.refresh {
		if t.ExpiresAt.Before(before) {
			delete(s.refresh, id)
			delete(s.refreshByHash, t.TokenHash)
			n++
		}
	}
	for id, t := range s.access {
		if t.ExpiresAt.Before(before) {
			delete(s.access, id)
			delete(s.accessByHash, t.TokenHash)
			n++
		}
	}
	return n, nil
}
