package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// ErrPromptNotFound is returned when a consent nonce is unknown, expired or
// already used.
var ErrPromptNotFound = errors.New("consent prompt not found")

// Prompt binds a consent screen to the user and the authorization request it
// was rendered for. A decision is accepted only for the exact same request.
type Prompt struct {
	UserID        string `json:"user_id"`
	ClientID      string `json:"client_id"`
	RedirectURI   string `json:"redirect_uri"`
	Scope         string `json:"scope"`
	State         string `json:"state"`
	CodeChallenge string `json:"code_challenge"`
}

// PromptStore holds outstanding consent prompts keyed by nonce. Take
// consumes the prompt; a nonce can be redeemed once.
type PromptStore interface {
	Put(ctx context.Context, nonce string, p Prompt) error
	Take(ctx context.Context, nonce string) (*Prompt, error)
}

// promptClient is the subset of the Redis client RedisPrompts uses.
type promptClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisPrompts stores prompts in Redis so any instance can accept the
// decision.
type RedisPrompts struct {
	client promptClient
	prefix string
	ttl    time.Duration
}

func NewRedisPrompts(client promptClient, prefix string, ttl time.Duration) *RedisPrompts {
	return &RedisPrompts{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisPrompts) Put(ctx context.Context, nonce string, p Prompt) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prompt: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+nonce, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("store prompt: %w", err)
	}
	return nil
}

func (s *RedisPrompts) Take(ctx context.Context, nonce string) (*Prompt, error) {
	if nonce == "" {
		return nil, ErrPromptNotFound
	}
	raw, err := s.client.GetDel(ctx, s.prefix+nonce).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPromptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take prompt: %w", err)
	}
	var p Prompt
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode prompt: %w", err)
	}
	return &p, nil
}

const memoryPromptCapacity = 10000

type memoryPrompt struct {
	prompt    Prompt
	expiresAt time.Time
}

// MemoryPrompts keeps prompts in process. It suits single-instance
// deployments and tests.
type MemoryPrompts struct {
	cache *ttlcache.Cache[string, memoryPrompt]
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryPrompts(ttl time.Duration) *MemoryPrompts {
	return &MemoryPrompts{
		cache: ttlcache.New[string, memoryPrompt](
			ttlcache.WithTTL[string, memoryPrompt](ttl),
			ttlcache.WithCapacity[string, memoryPrompt](memoryPromptCapacity),
			ttlcache.WithDisableTouchOnHit[string, memoryPrompt](),
		),
		ttl: ttl,
		now: time.Now,
	}
}

func (s *MemoryPrompts) Put(_ context.Context, nonce string, p Prompt) error {
	s.cache.Set(nonce, memoryPrompt{prompt: p, expiresAt: s.now().Add(s.ttl)}, ttlcache.DefaultTTL)
	return nil
}

func (s *MemoryPrompts) Take(_ context.Context, nonce string) (*Prompt, error) {
	item, ok := s.cache.GetAndDelete(nonce)
	if !ok || item == nil {
		return nil, ErrPromptNotFound
	}
	v := item.Value()
	if !s.now().Before(v.expiresAt) {
		return nil, ErrPromptNotFound
	}
	return &v.prompt, nil
}
