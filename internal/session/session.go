// Package session resolves the human user behind a browser request. Sessions
// are created by the external login system, which stores the user ID in
// Redis under a prefixed session key.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when the request carries no live session.
var ErrNoSession = errors.New("no session")

// Resolver maps a request to the logged-in user ID.
type Resolver interface {
	UserID(r *http.Request) (string, error)
}

// getter is the subset of the Redis client the resolver uses.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisResolver reads the session cookie and looks up prefix+id in Redis.
type RedisResolver struct {
	client getter
	cookie string
	prefix string
}

func NewRedisResolver(client getter, cookie, prefix string) *RedisResolver {
	return &RedisResolver{client: client, cookie: cookie, prefix: prefix}
}

func (s *RedisResolver) UserID(r *http.Request) (string, error) {
	c, err := r.Cookie(s.cookie)
	if err != nil || c.Value == "" {
		return "", ErrNoSession
	}

	userID, err := s.client.Get(r.Context(), s.prefix+c.Value).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	if userID == "" {
		return "", ErrNoSession
	}
	return userID, nil
}

// NewRedisClient connects to the Redis instance at url (redis:// or
// rediss://). A non-nil tlsCfg overrides the TLS settings derived from the
// URL.
func NewRedisClient(url string, tlsCfg *tls.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if tlsCfg != nil {
		opts.TLSConfig = tlsCfg
	}
	return redis.NewClient(opts), nil
}
