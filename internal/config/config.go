package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edvin/authcore/internal/scope"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string
	// MetricsListenAddr, when set, moves /metrics to a separate listener.
	MetricsListenAddr string

	// IssuerURL is the public base URL advertised in server metadata.
	IssuerURL string
	// LoginURL and ConsentURL belong to the external UI. Unauthenticated
	// authorize requests are sent to LoginURL with a return_to parameter;
	// consent prompts receive the original authorize query.
	LoginURL      string
	ConsentURL    string
	SessionCookie string
	SessionPrefix string
	// ConsentPromptTTL bounds how long a consent nonce handed to the UI
	// stays redeemable.
	ConsentPromptTTL time.Duration
	// AllowedOrigins lists extra origins, besides the issuer, whose
	// browser requests may change state through session-authenticated
	// endpoints.
	AllowedOrigins []string
	// DefaultUserScopes caps users with no explicit access override.
	// Empty means every known scope.
	DefaultUserScopes []string

	SecretHasher    string
	AuthCodeTTL     time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RefreshRotation bool
	// RevokeOnCodeReplay revokes every token of a grant when its
	// authorization code is presented a second time.
	RevokeOnCodeReplay bool
	ClientCacheTTL     time.Duration

	TokenRateLimit float64
	TokenRateBurst int
	APIRateLimit   float64
	APIRateBurst   int

	PurgeInterval  time.Duration
	PurgeRetention time.Duration

	TLSCertFile string
	TLSKeyFile  string

	RedisTLSCert       string
	RedisTLSKey        string
	RedisTLSCACert     string
	RedisTLSServerName string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ServiceName:       getEnv("SERVICE_NAME", "authserver"),
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ""),

		IssuerURL:     strings.TrimRight(getEnv("ISSUER_URL", ""), "/"),
		LoginURL:      getEnv("LOGIN_URL", ""),
		ConsentURL:    getEnv("CONSENT_URL", ""),
		SessionCookie: getEnv("SESSION_COOKIE", "session_id"),
		SessionPrefix: getEnv("SESSION_PREFIX", "session:"),

		AllowedOrigins:    getList("ALLOWED_ORIGINS"),
		DefaultUserScopes: scope.Split(getEnv("DEFAULT_USER_SCOPES", "")),

		SecretHasher: getEnv("SECRET_HASHER", "bcrypt"),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		RedisTLSCert:       getEnv("REDIS_TLS_CERT", ""),
		RedisTLSKey:        getEnv("REDIS_TLS_KEY", ""),
		RedisTLSCACert:     getEnv("REDIS_TLS_CA_CERT", ""),
		RedisTLSServerName: getEnv("REDIS_TLS_SERVER_NAME", ""),
	}

	var err error
	if cfg.AuthCodeTTL, err = getDuration("AUTH_CODE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ConsentPromptTTL, err = getDuration("CONSENT_PROMPT_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ClientCacheTTL, err = getDuration("CLIENT_CACHE_TTL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.PurgeInterval, err = getDuration("PURGE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.PurgeRetention, err = getDuration("PURGE_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshRotation, err = getBool("REFRESH_ROTATION", true); err != nil {
		return nil, err
	}
	if cfg.RevokeOnCodeReplay, err = getBool("REVOKE_ON_CODE_REPLAY", true); err != nil {
		return nil, err
	}
	if cfg.TokenRateLimit, err = getFloat("TOKEN_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.TokenRateBurst, err = getInt("TOKEN_RATE_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.APIRateLimit, err = getFloat("API_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.APIRateBurst, err = getInt("API_RATE_BURST", 20); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the settings needed to serve requests are present.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.IssuerURL == "" {
		missing = append(missing, "ISSUER_URL")
	}
	if c.LoginURL == "" {
		missing = append(missing, "LOGIN_URL")
	}
	if c.ConsentURL == "" {
		missing = append(missing, "CONSENT_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.SecretHasher != "bcrypt" && c.SecretHasher != "argon2id" {
		return fmt.Errorf("SECRET_HASHER must be bcrypt or argon2id, got %q", c.SecretHasher)
	}
	if c.AuthCodeTTL <= 0 || c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("credential lifetimes must be positive")
	}
	if c.ConsentPromptTTL <= 0 {
		return fmt.Errorf("CONSENT_PROMPT_TTL must be positive")
	}
	if c.TokenRateLimit <= 0 || c.TokenRateBurst <= 0 || c.APIRateLimit <= 0 || c.APIRateBurst <= 0 {
		return fmt.Errorf("rate limits and bursts must be positive")
	}
	for _, s := range c.DefaultUserScopes {
		if !scope.IsKnown(s) {
			return fmt.Errorf("DEFAULT_USER_SCOPES: unknown scope %q", s)
		}
	}
	for _, o := range c.AllowedOrigins {
		if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ALLOWED_ORIGINS: %q is not an origin", o)
		}
	}
	if c.ClientCacheTTL < 0 {
		return fmt.Errorf("CLIENT_CACHE_TTL must not be negative")
	}
	if c.PurgeInterval <= 0 {
		return fmt.Errorf("PURGE_INTERVAL must be positive")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// TrustedOrigins returns the issuer origin followed by AllowedOrigins.
func (c *Config) TrustedOrigins() []string {
	origins := make([]string, 0, len(c.AllowedOrigins)+1)
	if u, err := url.Parse(c.IssuerURL); err == nil && u.Host != "" {
		origins = append(origins, u.Scheme+"://"+u.Host)
	}
	return append(origins, c.AllowedOrigins...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, strings.TrimRight(v, "/"))
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}
