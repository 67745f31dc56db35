// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store is a store.Store backed by PostgreSQL.
type Store struct {
	db DB
}

var _ store.Store = (*Store)(nil)

// New creates a Store.
func New(db DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// ---------- Clients ----------

const clientColumns = `id, name, secret_hash, redirect_uris, allowed_scopes, active, created_at`

func (s *Store) GetClient(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	err := s.db.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.SecretHash, &c.RedirectURIs, &c.AllowedScopes, &c.Active, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", id, notFound(err))
	}
	return &c, nil
}

func (s *Store) SaveClient(ctx context.Context, c *model.Client) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO oauth_clients (id, name, secret_hash, redirect_uris, allowed_scopes, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, secret_hash = EXCLUDED.secret_hash,
		   redirect_uris = EXCLUDED.redirect_uris, allowed_scopes = EXCLUDED.allowed_scopes, active = EXCLUDED.active`,
		c.ID, c.Name, c.SecretHash, c.RedirectURIs, c.AllowedScopes, c.Active,
	)
	if err != nil {
		return fmt.Errorf("save client %s: %w", c.ID, err)
	}
	return nil
}

// ---------- Authorization codes ----------

const codeColumns = `id, code_hash, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, expires_at, consumed_at, replayed_at, created_at`

func scanCode(row pgx.Row) (*model.AuthorizationCode, error) {
	var c model.AuthorizationCode
	err := row.Scan(&c.ID, &c.CodeHash, &c.ClientID, &c.UserID, &c.RedirectURI, &c.Scopes,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.ExpiresAt, &c.ConsumedAt, &c.ReplayedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateAuthorizationCode(ctx context.Context, code *model.AuthorizationCode) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO oauth_authorization_codes (id, code_hash, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		code.ID, code.CodeHash, code.ClientID, code.UserID, code.RedirectURI, code.Scopes,
		code.CodeChallenge, code.CodeChallengeMethod, code.ExpiresAt, code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert authorization code: %w", err)
	}
	return nil
}

func (s *Store) ClaimAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (*model.AuthorizationCode, error) {
	code, err := scanCode(s.db.QueryRow(ctx,
		`UPDATE oauth_authorization_codes SET consumed_at = $2
		 WHERE code_hash = $1 AND consumed_at IS NULL AND expires_at > $2
		 RETURNING `+codeColumns,
		codeHash, now,
	))
	if err != nil {
		return nil, fmt.Errorf("claim authorization code: %w", notFound(err))
	}
	return code, nil
}

func (s *Store) GetAuthorizationCode(ctx context.Context, codeHash string) (*model.AuthorizationCode, error) {
	code, err := scanCode(s.db.QueryRow(ctx,
		`SELECT `+codeColumns+` FROM oauth_authorization_codes WHERE code_hash = $1`, codeHash,
	))
	if err != nil {
		return nil, fmt.Errorf("get authorization code: %w", notFound(err))
	}
	return code, nil
}

func (s *Store) MarkAuthorizationCodeReplayed(ctx context.Context, codeHash string, now time.Time) (*model.AuthorizationCode, error) {
	code, err := scanCode(s.db.QueryRow(ctx,
		`UPDATE oauth_authorization_codes SET replayed_at = COALESCE(replayed_at, $2)
		 WHERE code_hash = $1 AND consumed_at IS NOT NULL
		 RETURNING `+codeColumns,
		codeHash, now,
	))
	if err != nil {
		return nil, fmt.Errorf("mark authorization code replayed: %w", notFound(err))
	}
	return code, nil
}

func (s *Store) CodeReplayed(ctx context.Context, codeID string) (bool, error) {
	var replayed bool
	err := s.db.QueryRow(ctx,
		`SELECT replayed_at IS NOT NULL FROM oauth_authorization_codes WHERE id = $1`, codeID,
	).Scan(&replayed)
	if err != nil {
		return false, fmt.Errorf("check code replay %s: %w", codeID, notFound(err))
	}
	return replayed, nil
}

// ---------- Tokens ----------

const accessColumns = `id, token_hash, client_id, user_id, scopes, grant_id, expires_at, revoked_at, created_at`

const refreshColumns = `id, token_hash, access_token_id, client_id, user_id, scopes, grant_id, rotated_from, expires_at, revoked_at, created_at`

func insertAccessToken(ctx context.Context, db execer, t *model.AccessToken) error {
	_, err := db.Exec(ctx,
		`INSERT INTO oauth_access_tokens (`+accessColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.TokenHash, t.ClientID, t.UserID, t.Scopes, t.GrantID, t.ExpiresAt, t.RevokedAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert access token: %w", err)
	}
	return nil
}

func insertRefreshToken(ctx context.Context, db execer, t *model.RefreshToken) error {
	_, err := db.Exec(ctx,
		`INSERT INTO oauth_refresh_tokens (`+refreshColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.TokenHash, t.AccessTokenID, t.ClientID, t.UserID, t.Scopes, t.GrantID, t.RotatedFrom, t.ExpiresAt, t.RevokedAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (s *Store) IssueTokens(ctx context.Context, at *model.AccessToken, rt *model.RefreshToken) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAccessToken(ctx, tx, at); err != nil {
		return err
	}
	if rt != nil {
		if err := insertRefreshToken(ctx, tx, rt); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tokens: %w", err)
	}
	return nil
}

func (s *Store) RotateRefreshToken(ctx context.Context, oldID string, now time.Time, at *model.AccessToken, rt *model.RefreshToken) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE oauth_refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		oldID, now,
	)
	if err != nil {
		return fmt.Errorf("claim refresh token %s: %w", oldID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim refresh token %s: %w", oldID, store.ErrNotFound)
	}

	if err := insertAccessToken(ctx, tx, at); err != nil {
		return err
	}
	if err := insertRefreshToken(ctx, tx, rt); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

func (s *Store) GetAccessToken(ctx context.Context, tokenHash string) (*model.AccessToken, error) {
	var t model.AccessToken
	err := s.db.QueryRow(ctx,
		`SELECT `+accessColumns+`, last_used_at, use_count FROM oauth_access_tokens WHERE token_hash = $1`, tokenHash,
	).Scan(&t.ID, &t.TokenHash, &t.ClientID, &t.UserID, &t.Scopes, &t.GrantID, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt, &t.LastUsedAt, &t.UseCount)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", notFound(err))
	}
	return &t, nil
}

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var t model.RefreshToken
	err := s.db.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM oauth_refresh_tokens WHERE token_hash = $1`, tokenHash,
	).Scan(&t.ID, &t.TokenHash, &t.AccessTokenID, &t.ClientID, &t.UserID, &t.Scopes, &t.GrantID, &t.RotatedFrom, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", notFound(err))
	}
	return &t, nil
}

func (s *Store) RevokeAccessToken(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE oauth_access_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, now,
	)
	if err != nil {
		return fmt.Errorf("revoke access token %s: %w", id, err)
	}
	return nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE oauth_refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, now,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token %s: %w", id, err)
	}
	return nil
}

func (s *Store) RevokeGrant(ctx context.Context, grantID string, now time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`WITH a AS (UPDATE oauth_access_tokens SET revoked_at = $2 WHERE grant_id = $1 AND revoked_at IS NULL RETURNING 1),
		      r AS (UPDATE oauth_refresh_tokens SET revoked_at = $2 WHERE grant_id = $1 AND revoked_at IS NULL RETURNING 1)
		 SELECT (SELECT count(*) FROM a) + (SELECT count(*) FROM r)`,
		grantID, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("revoke grant %s: %w", grantID, err)
	}
	return n, nil
}

func (s *Store) RevokeUserClientTokens(ctx context.Context, userID, clientID string, now time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`WITH a AS (UPDATE oauth_access_tokens SET revoked_at = $3 WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL RETURNING 1),
		      r AS (UPDATE oauth_refresh_tokens SET revoked_at = $3 WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL RETURNING 1)
		 SELECT (SELECT count(*) FROM a) + (SELECT count(*) FROM r)`,
		userID, clientID, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens for user %s client %s: %w", userID, clientID, err)
	}
	return n, nil
}

func (s *Store) RevokeUserTokens(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`WITH a AS (UPDATE oauth_access_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL RETURNING 1),
		      r AS (UPDATE oauth_refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL RETURNING 1)
		 SELECT (SELECT count(*) FROM a) + (SELECT count(*) FROM r)`,
		userID, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens for user %s: %w", userID, err)
	}
	return n, nil
}

func (s *Store) RecordAccessTokenUse(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE oauth_access_tokens SET last_used_at = GREATEST(COALESCE(last_used_at, $2), $2), use_count = use_count + 1 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("record access token use %s: %w", id, err)
	}
	return nil
}

// Refresh tokens carry no usage columns; they are reported as never used.
const activeTokensQuery = `SELECT id, kind, client_id, client_name, user_id, scopes, created_at, expires_at, last_used_at, use_count FROM (
	SELECT t.id, 'access' AS kind, t.client_id, COALESCE(c.name, '') AS client_name, t.user_id, t.scopes,
	       t.created_at, t.expires_at, t.last_used_at, t.use_count
	  FROM oauth_access_tokens t LEFT JOIN oauth_clients c ON c.id = t.client_id
	 WHERE t.revoked_at IS NULL AND t.expires_at > $1 AND ($2 = '' OR t.user_id = $2) AND ($3 = '' OR t.client_id = $3)
	UNION ALL
	SELECT t.id, 'refresh' AS kind, t.client_id, COALESCE(c.name, '') AS client_name, t.user_id, t.scopes,
	       t.created_at, t.expires_at, NULL::timestamptz, 0::bigint
	  FROM oauth_refresh_tokens t LEFT JOIN oauth_clients c ON c.id = t.client_id
	 WHERE t.revoked_at IS NULL AND t.expires_at > $1 AND ($2 = '' OR t.user_id = $2) AND ($3 = '' OR t.client_id = $3)
) tokens ORDER BY created_at DESC LIMIT NULLIF($4, 0)`

func (s *Store) ListActiveTokens(ctx context.Context, f store.TokenFilter, now time.Time) ([]model.TokenSummary, error) {
	rows, err := s.db.Query(ctx, activeTokensQuery, now, f.UserID, f.ClientID, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	defer rows.Close()

	var out []model.TokenSummary
	for rows.Next() {
		var (
			t    model.TokenSummary
			kind string
		)
		if err := rows.Scan(&t.ID, &kind, &t.ClientID, &t.ClientName, &t.UserID, &t.Scopes,
			&t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt, &t.UseCount); err != nil {
			return nil, fmt.Errorf("scan token summary: %w", err)
		}
		t.Kind = model.TokenKind(kind)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active tokens: %w", err)
	}
	return out, nil
}

// ---------- Consents ----------

const consentColumns = `id, user_id, client_id, scopes, granted_at, revoked_at`

func (s *Store) GetConsent(ctx context.Context, userID, clientID string) (*model.Consent, error) {
	var c model.Consent
	err := s.db.QueryRow(ctx,
		`SELECT `+consentColumns+` FROM oauth_consents WHERE user_id = $1 AND client_id = $2`, userID, clientID,
	).Scan(&c.ID, &c.UserID, &c.ClientID, &c.Scopes, &c.GrantedAt, &c.RevokedAt)
	if err != nil {
		return nil, fmt.Errorf("get consent: %w", notFound(err))
	}
	return &c, nil
}

func (s *Store) SaveConsent(ctx context.Context, c *model.Consent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO oauth_consents (id, user_id, client_id, scopes, granted_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, client_id) DO UPDATE SET scopes = EXCLUDED.scopes, granted_at = EXCLUDED.granted_at, revoked_at = NULL`,
		c.ID, c.UserID, c.ClientID, c.Scopes, c.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func (s *Store) ListConsents(ctx context.Context, userID string) ([]model.Consent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+consentColumns+` FROM oauth_consents WHERE user_id = $1 AND revoked_at IS NULL ORDER BY granted_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var out []model.Consent
	for rows.Next() {
		var c model.Consent
		if err := rows.Scan(&c.ID, &c.UserID, &c.ClientID, &c.Scopes, &c.GrantedAt, &c.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return out, nil
}

func (s *Store) RevokeConsent(ctx context.Context, userID, clientID string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE oauth_consents SET revoked_at = $3 WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL`,
		userID, clientID, now,
	)
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("revoke consent: %w", store.ErrNotFound)
	}
	return nil
}

// ---------- API keys ----------

const apiKeyColumns = `id, name, prefix, secret_hash, scopes, owner_id, expires_at, revoked_at, last_used_at, use_count, created_at`

func scanAPIKeys(rows pgx.Rows) ([]model.APIKey, error) {
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		var k model.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.Prefix, &k.SecretHash, &k.Scopes, &k.OwnerID,
			&k.ExpiresAt, &k.RevokedAt, &k.LastUsedAt, &k.UseCount, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO api_keys (id, name, prefix, secret_hash, scopes, owner_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.Name, key.Prefix, key.SecretHash, key.Scopes, key.OwnerID, key.ExpiresAt, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *Store) FindAPIKeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error) {
	rows, err := s.db.Query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("find api keys by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *Store) ListAPIKeys(ctx context.Context, ownerID string) ([]model.APIKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *Store) RevokeAPIKey(ctx context.Context, ownerID, id string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = $3 WHERE id = $1 AND owner_id = $2 AND revoked_at IS NULL`,
		id, ownerID, now,
	)
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("revoke api key %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) RecordAPIKeyUse(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = GREATEST(COALESCE(last_used_at, $2), $2), use_count = use_count + 1 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("record api key use %s: %w", id, err)
	}
	return nil
}

// ---------- User permissions ----------

const permissionColumns = `user_id, oauth_enabled, allowed_scopes, updated_by, updated_at`

func (s *Store) GetUserPermission(ctx context.Context, userID string) (*model.UserPermission, error) {
	var p model.UserPermission
	err := s.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM oauth_user_permissions WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.OAuthEnabled, &p.AllowedScopes, &p.UpdatedBy, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user permission %s: %w", userID, notFound(err))
	}
	return &p, nil
}

func (s *Store) SaveUserPermission(ctx context.Context, p *model.UserPermission) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO oauth_user_permissions (`+permissionColumns+`) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET oauth_enabled = EXCLUDED.oauth_enabled, allowed_scopes = EXCLUDED.allowed_scopes,
		   updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
		p.UserID, p.OAuthEnabled, p.AllowedScopes, p.UpdatedBy, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save user permission %s: %w", p.UserID, err)
	}
	return nil
}

func (s *Store) DeleteUserPermission(ctx context.Context, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM oauth_user_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user permission %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user permission %s: %w", userID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListUserPermissions(ctx context.Context) ([]model.UserPermission, error) {
	rows, err := s.db.Query(ctx, `SELECT `+permissionColumns+` FROM oauth_user_permissions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list user permissions: %w", err)
	}
	defer rows.Close()

	var out []model.UserPermission
	for rows.Next() {
		var p model.UserPermission
		if err := rows.Scan(&p.UserID, &p.OAuthEnabled, &p.AllowedScopes, &p.UpdatedBy, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user permission: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user permissions: %w", err)
	}
	return out, nil
}

// ---------- Audit ----------

func (s *Store) InsertAuditEntry(ctx context.Context, e *model.AuditEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (principal_kind, principal_id, user_id, method, path, status_code, request_body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		e.PrincipalKind, e.PrincipalID, e.UserID, e.Method, e.Path, e.StatusCode, e.RequestBody,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ---------- Maintenance ----------

func (s *Store) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`WITH c AS (DELETE FROM oauth_authorization_codes WHERE expires_at < $1 RETURNING 1),
		      r AS (DELETE FROM oauth_refresh_tokens WHERE expires_at < $1 RETURNING 1),
		      a AS (DELETE FROM oauth_access_tokens WHERE expires_at < $1 RETURNING 1)
		 SELECT (SELECT count(*) FROM c) + (SELECT count(*) FROM r) + (SELECT count(*) FROM a)`,
		before,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("purge expired credentials: %w", err)
	}
	return n, nil
}
