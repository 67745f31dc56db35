package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
	"github.com/edvin/authcore/internal/store/memory"
)

// ---------- Mock store ----------

// mockStore serves everything from an in-memory store except the methods
// overridden below, which go through testify so tests can inject failures.
type mockStore struct {
	*memory.Store
	mock.Mock
}

func newMockStore() *mockStore {
	return &mockStore{Store: memory.New()}
}

func (m *mockStore) ClaimAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (*model.AuthorizationCode, error) {
	args := m.Called(ctx, codeHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthorizationCode), args.Error(1)
}

func (m *mockStore) IssueTokens(ctx context.Context, at *model.AccessToken, rt *model.RefreshToken) error {
	args := m.Called(ctx, at, rt)
	return args.Error(0)
}

func (m *mockStore) FindAPIKeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.APIKey), args.Error(1)
}

// ---------- Fixtures ----------

const (
	testClientID     = "c1"
	testClientSecret = "s1"
	testRedirectURI  = "https://app/cb"
	testUserID       = "u1"
	testPublicClient = "spa"
)

// testClock is a settable clock shared by all services of a fixture.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var testHasher = crypto.BcryptHasher{Cost: bcrypt.MinCost}

type fixture struct {
	t     *testing.T
	store store.Store
	clock *testClock
	svcs  *Services
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	return newFixtureWithStore(t, memory.New(), mutate...)
}

func newFixtureWithStore(t *testing.T, st store.Store, mutate ...func(*Options)) *fixture {
	t.Helper()
	clock := newTestClock()
	opts := DefaultOptions()
	opts.ClientCacheTTL = 0
	opts.Now = clock.Now
	for _, fn := range mutate {
		fn(&opts)
	}

	svcs := NewServices(st, testHasher, opts, zerolog.Nop())
	t.Cleanup(svcs.Close)

	f := &fixture{t: t, store: st, clock: clock, svcs: svcs}
	f.registerClient(ClientRegistration{
		ID:            testClientID,
		Name:          "Test App",
		RedirectURIs:  []string{testRedirectURI},
		AllowedScopes: []string{"read", "write", "profile"},
		Secret:        testClientSecret,
	})
	f.registerClient(ClientRegistration{
		ID:            testPublicClient,
		Name:          "Single Page App",
		RedirectURIs:  []string{"https://spa/cb"},
		AllowedScopes: []string{"read"},
		Public:        true,
	})
	return f
}

func (f *fixture) registerClient(reg ClientRegistration) {
	f.t.Helper()
	_, _, err := f.svcs.Clients.Register(context.Background(), reg)
	require.NoError(f.t, err)
}

// authorize validates req and issues a code for testUserID.
func (f *fixture) authorize(req AuthorizeRequest) string {
	f.t.Helper()
	ctx := context.Background()
	auth, err := f.svcs.Authorize.Validate(ctx, req)
	require.NoError(f.t, err)
	code, err := f.svcs.Authorize.Approve(ctx, testUserID, auth)
	require.NoError(f.t, err)
	return code
}

func (f *fixture) confidentialCode(scope string) string {
	return f.authorize(AuthorizeRequest{
		ResponseType: "code",
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		Scope:        scope,
		State:        "xyz",
	})
}

func (f *fixture) exchange(code string) (*TokenResponse, error) {
	return f.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	})
}
