package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shopcore/rest"
	"github.com/example/shopcore/token"
)

const testSigningKey = "test-secret"

func mintToken(t *testing.T, exp time.Time, extra jwt.MapClaims) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   "user-1",
		"email": "user@example.com",
		"exp":   exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return signed
}

func newTestManager(t *testing.T, baseURL string) (*Manager, *token.Store) {
	t.Helper()

	store, err := token.Open(t.TempDir())
	require.NoError(t, err)

	client := rest.NewClient(baseURL, 5*time.Second)
	manager := NewManager(store, client)
	client.SetTokenSource(manager)
	return manager, store
}

func TestLogout_Idempotent(t *testing.T) {
	manager, store := newTestManager(t, "http://localhost:0")

	accessToken := mintToken(t, time.Now().Add(time.Hour), nil)
	require.NoError(t, manager.Login(accessToken, "refresh-1", &Profile{ID: "user-1"}, true))
	require.True(t, manager.IsAuthenticated())

	manager.Logout()
	manager.Logout()

	assert.False(t, manager.IsAuthenticated())
	assert.Nil(t, manager.CurrentUser())
	assert.Empty(t, store.Get(token.KeyAccessToken))
	assert.Empty(t, store.Get(token.KeyRefreshToken))
	assert.Empty(t, store.Get(token.KeyProfile))
}

func TestLogin_RefreshTokenTierFollowsRemember(t *testing.T) {
	manager, store := newTestManager(t, "http://localhost:0")
	accessToken := mintToken(t, time.Now().Add(time.Hour), nil)

	require.NoError(t, manager.Login(accessToken, "durable-refresh", nil, true))
	assert.True(t, store.HasDurable(token.KeyRefreshToken))

	// A later login without remember replaces the prior refresh token
	// unconditionally and moves it out of the durable tier.
	require.NoError(t, manager.Login(accessToken, "session-refresh", nil, false))
	assert.False(t, store.HasDurable(token.KeyRefreshToken))
	assert.Equal(t, "session-refresh", store.Get(token.KeyRefreshToken))
}

func TestLogin_DerivesAdminFromClaimsOrProfile(t *testing.T) {
	manager, _ := newTestManager(t, "http://localhost:0")

	adminToken := mintToken(t, time.Now().Add(time.Hour), jwt.MapClaims{"roles": []string{"ROLE_ADMIN"}})
	require.NoError(t, manager.Login(adminToken, "", nil, false))
	assert.True(t, manager.IsAdmin())

	plainToken := mintToken(t, time.Now().Add(time.Hour), nil)
	require.NoError(t, manager.Login(plainToken, "", &Profile{ID: "user-1", Roles: []string{"admin"}}, false))
	assert.True(t, manager.IsAdmin())

	require.NoError(t, manager.Login(plainToken, "", &Profile{ID: "user-1", Roles: []string{"user"}}, false))
	assert.False(t, manager.IsAdmin())
}

func TestRefresh_SingleFlightUnderConcurrency(t *testing.T) {
	var refreshCalls atomic.Int64

	freshToken := mintToken(t, time.Now().Add(time.Hour), nil)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/refresh" {
			http.NotFound(w, r)
			return
		}
		refreshCalls.Add(1)
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  freshToken,
			"refreshToken": "rotated",
			"user":         map[string]any{"id": "user-1", "email": "user@example.com"},
		})
	}))
	defer backend.Close()

	manager, store := newTestManager(t, backend.URL)
	require.NoError(t, store.Set(token.KeyRefreshToken, "initial", token.PersistenceDurable))

	var wg sync.WaitGroup
	errs := make([]error, 25)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = manager.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), refreshCalls.Load())
	assert.Equal(t, freshToken, manager.Token())
	assert.Equal(t, "rotated", store.Get(token.KeyRefreshToken))
	// The replacement refresh token lands in the tier the old one held.
	assert.True(t, store.HasDurable(token.KeyRefreshToken))
}

func TestRefresh_NoTokenLogsOut(t *testing.T) {
	manager, _ := newTestManager(t, "http://localhost:0")

	err := manager.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, manager.IsAuthenticated())
}

func TestRefresh_FailureLogsOut(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid refresh token"}`, http.StatusUnauthorized)
	}))
	defer backend.Close()

	manager, store := newTestManager(t, backend.URL)
	accessToken := mintToken(t, time.Now().Add(time.Hour), nil)
	require.NoError(t, manager.Login(accessToken, "stale", nil, true))

	err := manager.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, manager.IsAuthenticated())
	assert.Empty(t, store.Get(token.KeyAccessToken))
	assert.Empty(t, store.Get(token.KeyRefreshToken))
}

func TestInitialize_NoTokenStaysUnauthenticated(t *testing.T) {
	manager, _ := newTestManager(t, "http://localhost:0")

	manager.Initialize(context.Background())
	assert.False(t, manager.IsAuthenticated())
}

func TestInitialize_ExpiredTokenTriggersRefresh(t *testing.T) {
	var refreshCalls atomic.Int64

	freshToken := mintToken(t, time.Now().Add(time.Hour), nil)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/refresh" {
			http.NotFound(w, r)
			return
		}
		refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  freshToken,
			"refreshToken": "rotated",
			"user":         map[string]any{"id": "user-1", "email": "user@example.com"},
		})
	}))
	defer backend.Close()

	manager, store := newTestManager(t, backend.URL)
	expired := mintToken(t, time.Now().Add(-time.Minute), nil)
	require.NoError(t, store.Set(token.KeyAccessToken, expired, token.PersistenceDurable))
	require.NoError(t, store.Set(token.KeyRefreshToken, "initial", token.PersistenceDurable))

	manager.Initialize(context.Background())

	assert.Equal(t, int64(1), refreshCalls.Load())
	assert.True(t, manager.IsAuthenticated())
	assert.Equal(t, freshToken, manager.Token())
}

func TestInitialize_LiveTokenReconcilesProfile(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "user-1",
			"email": "canonical@example.com",
			"roles": []string{"admin"},
		})
	}))
	defer backend.Close()

	manager, store := newTestManager(t, backend.URL)
	live := mintToken(t, time.Now().Add(time.Hour), nil)
	require.NoError(t, store.Set(token.KeyAccessToken, live, token.PersistenceDurable))

	manager.Initialize(context.Background())

	// Optimistic user from claims is available immediately.
	require.True(t, manager.IsAuthenticated())
	assert.Equal(t, "user-1", manager.CurrentUser().ID)

	// The canonical profile lands asynchronously and may flip admin on.
	require.Eventually(t, func() bool {
		return manager.IsAdmin()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "canonical@example.com", manager.CurrentUser().Email)
}
