package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_URL", "REDIS_URL", "HTTP_LISTEN_ADDR", "LOG_LEVEL", "ISSUER_URL", "LOGIN_URL", "CONSENT_URL",
		"SECRET_HASHER", "AUTH_CODE_TTL", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "REFRESH_ROTATION",
		"REVOKE_ON_CODE_REPLAY", "CLIENT_CACHE_TTL", "TOKEN_RATE_LIMIT", "TOKEN_RATE_BURST",
		"PURGE_INTERVAL", "PURGE_RETENTION", "TLS_CERT_FILE", "TLS_KEY_FILE",
		"API_RATE_LIMIT", "API_RATE_BURST", "CONSENT_PROMPT_TTL", "ALLOWED_ORIGINS", "DEFAULT_USER_SCOPES",
	} {
		os.Unsetenv(k)
	}
}

func validConfig() *Config {
	return &Config{
		DatabaseURL:     "postgres://localhost/auth",
		IssuerURL:       "https://auth.example.com",
		LoginURL:        "https://auth.example.com/login",
		ConsentURL:      "https://auth.example.com/consent",
		SecretHasher:    "bcrypt",
		AuthCodeTTL:     10 * time.Minute,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		PurgeInterval:   time.Hour,

		ConsentPromptTTL: 10 * time.Minute,
		TokenRateLimit:   10,
		TokenRateBurst:   20,
		APIRateLimit:     10,
		APIRateBurst:     20,
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Empty(t, cfg.MetricsListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "bcrypt", cfg.SecretHasher)
	assert.Equal(t, 10*time.Minute, cfg.AuthCodeTTL)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 15*time.Second, cfg.ClientCacheTTL)
	assert.True(t, cfg.RefreshRotation)
	assert.True(t, cfg.RevokeOnCodeReplay)
	assert.Equal(t, float64(10), cfg.TokenRateLimit)
	assert.Equal(t, 20, cfg.TokenRateBurst)
	assert.Equal(t, "session_id", cfg.SessionCookie)
	assert.Equal(t, float64(10), cfg.APIRateLimit)
	assert.Equal(t, 20, cfg.APIRateBurst)
	assert.Equal(t, 10*time.Minute, cfg.ConsentPromptTTL)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Empty(t, cfg.DefaultUserScopes)
}

func TestLoad_AllEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://db:5432/auth")
	t.Setenv("ISSUER_URL", "https://auth.example.com/")
	t.Setenv("AUTH_CODE_TTL", "5m")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("REFRESH_ROTATION", "false")
	t.Setenv("TOKEN_RATE_LIMIT", "2.5")
	t.Setenv("TOKEN_RATE_BURST", "4")
	t.Setenv("SECRET_HASHER", "argon2id")
	t.Setenv("API_RATE_LIMIT", "1")
	t.Setenv("API_RATE_BURST", "5")
	t.Setenv("CONSENT_PROMPT_TTL", "2m")
	t.Setenv("ALLOWED_ORIGINS", "https://login.example.com/, https://admin.example.com")
	t.Setenv("DEFAULT_USER_SCOPES", "read profile")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db:5432/auth", cfg.DatabaseURL)
	assert.Equal(t, "https://auth.example.com", cfg.IssuerURL)
	assert.Equal(t, 5*time.Minute, cfg.AuthCodeTTL)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.False(t, cfg.RefreshRotation)
	assert.Equal(t, 2.5, cfg.TokenRateLimit)
	assert.Equal(t, 4, cfg.TokenRateBurst)
	assert.Equal(t, "argon2id", cfg.SecretHasher)
	assert.Equal(t, float64(1), cfg.APIRateLimit)
	assert.Equal(t, 5, cfg.APIRateBurst)
	assert.Equal(t, 2*time.Minute, cfg.ConsentPromptTTL)
	assert.Equal(t, []string{"https://login.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"read", "profile"}, cfg.DefaultUserScopes)
	assert.Equal(t, []string{"https://auth.example.com", "https://login.example.com", "https://admin.example.com"}, cfg.TrustedOrigins())
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL", "an hour")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_TTL")
}

func TestLoad_InvalidBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("REFRESH_ROTATION", "sometimes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFRESH_ROTATION")
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Missing(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.LoginURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, "missing required config: DATABASE_URL, LOGIN_URL", err.Error())
}

func TestValidate_UnknownHasher(t *testing.T) {
	cfg := validConfig()
	cfg.SecretHasher = "md5"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_HASHER")
}

func TestValidate_HalfTLS(t *testing.T) {
	cfg := validConfig()
	cfg.TLSCertFile = "/etc/tls/cert.pem"

	assert.Error(t, cfg.Validate())
}

func TestValidate_NonPositiveLifetime(t *testing.T) {
	cfg := validConfig()
	cfg.AccessTokenTTL = 0

	assert.Error(t, cfg.Validate())
}

func TestValidate_RateLimits(t *testing.T) {
	cfg := validConfig()
	cfg.APIRateBurst = 0

	assert.ErrorContains(t, cfg.Validate(), "rate limits")
}

func TestValidate_DefaultUserScopes(t *testing.T) {
	cfg := validConfig()
	cfg.DefaultUserScopes = []string{"read", "admin"}

	assert.ErrorContains(t, cfg.Validate(), "DEFAULT_USER_SCOPES")
}

func TestValidate_AllowedOrigins(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = []string{"login.example.com"}

	assert.ErrorContains(t, cfg.Validate(), "ALLOWED_ORIGINS")
}

func TestTrustedOrigins_IssuerPath(t *testing.T) {
	cfg := validConfig()
	cfg.IssuerURL = "https://example.com/auth"

	assert.Equal(t, []string{"https://example.com"}, cfg.TrustedOrigins())
}
