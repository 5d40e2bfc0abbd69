package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/example/shopcore/rest"
	"github.com/example/shopcore/token"
)

// ErrNotAuthenticated is returned when an operation requires a session
// and none exists or it could not be restored.
var ErrNotAuthenticated = errors.New("not authenticated")

// Profile is the canonical user record returned by /auth/me.
type Profile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// User is the current authenticated actor as seen by the client.
type User struct {
	ID      string
	Email   string
	Roles   []string
	IsAdmin bool
}

type credentials struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         *Profile `json:"user,omitempty"`
}

// Manager is the single source of truth for the current authenticated
// actor. It owns the token store: all writes to persisted credentials
// go through it, and it transparently refreshes expired tokens.
type Manager struct {
	store  *token.Store
	client *rest.Client

	mu   sync.RWMutex
	user *User

	refreshGroup singleflight.Group
}

// NewManager constructs a Manager over the given store and transport.
// The caller is expected to attach the manager to the transport with
// client.SetTokenSource so 401 responses trigger a refresh.
func NewManager(store *token.Store, client *rest.Client) *Manager {
	return &Manager{store: store, client: client}
}

// Token returns the current access token, reading through to the store
// on every call. Returns "" when unauthenticated.
func (m *Manager) Token() string {
	return m.store.Get(token.KeyAccessToken)
}

// CurrentUser returns a copy of the current user, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return nil
	}
	u := *m.user
	u.Roles = append([]string(nil), m.user.Roles...)
	return &u
}

// IsAuthenticated reports whether a user is currently set.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// IsAdmin reports whether the current user carries the admin role.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.IsAdmin
}

// Initialize restores a session from persisted credentials. A missing
// token leaves the manager unauthenticated. An expired token triggers
// a refresh attempt. A live token sets the user optimistically from
// its claims while the canonical profile is fetched in the background.
// Failures degrade to unauthenticated; Initialize never returns a
// transport error.
func (m *Manager) Initialize(ctx context.Context) {
	accessToken := m.store.Get(token.KeyAccessToken)
	if accessToken == "" {
		return
	}

	claims, err := decodeClaims(accessToken)
	if err != nil {
		log.Printf("[Session] Discarding undecodable access token: %v", err)
		m.Logout()
		return
	}

	if claimsExpired(claims, time.Now()) {
		if err := m.Refresh(ctx); err != nil {
			log.Printf("[Session] Startup refresh failed: %v", err)
		}
		return
	}

	m.setUserFromClaims(claims, m.cachedProfile())
	go m.reconcileProfile(context.Background())
}

// SignIn authenticates against the login endpoint and establishes the
// session. The refresh token is persisted durably only when remember
// is set.
func (m *Manager) SignIn(ctx context.Context, email, password string, remember bool) error {
	var creds credentials
	err := m.client.DoJSON(ctx, rest.RequestOpts{
		Method:   http.MethodPost,
		Path:     "/auth/login",
		Body:     map[string]string{"email": email, "password": password},
		SkipAuth: true,
	}, &creds)
	if err != nil {
		return err
	}

	return m.Login(creds.AccessToken, creds.RefreshToken, creds.User, remember)
}

// Login establishes a session from already-obtained credentials. Admin
// status is derived from the union of token claims and profile roles.
// Any prior refresh token is replaced unconditionally.
func (m *Manager) Login(accessToken, refreshToken string, profile *Profile, remember bool) error {
	claims, err := decodeClaims(accessToken)
	if err != nil {
		return err
	}

	if err := m.store.Set(token.KeyAccessToken, accessToken, token.PersistenceDurable); err != nil {
		return err
	}

	if refreshToken != "" {
		persistence := token.PersistenceSession
		if remember {
			persistence = token.PersistenceDurable
		}
		if err := m.store.Set(token.KeyRefreshToken, refreshToken, persistence); err != nil {
			return err
		}
	} else if err := m.store.Delete(token.KeyRefreshToken); err != nil {
		return err
	}

	if profile != nil {
		if blob, err := json.Marshal(profile); err == nil {
			if err := m.store.Set(token.KeyProfile, string(blob), token.PersistenceDurable); err != nil {
				log.Printf("[Session] Failed to cache profile: %v", err)
			}
		}
	}

	m.setUserFromClaims(claims, profile)
	return nil
}

// Refresh exchanges the stored refresh token for new credentials.
// Concurrent callers coalesce into a single in-flight attempt and
// share its outcome. Failure logs the session out.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	refreshToken := m.store.Get(token.KeyRefreshToken)
	if refreshToken == "" {
		m.Logout()
		return ErrNotAuthenticated
	}

	// Remember whether the refresh token was durable before login
	// replaces it, so the new one lands in the same tier.
	remember := m.store.HasDurable(token.KeyRefreshToken)

	var creds credentials
	err := m.client.DoJSON(ctx, rest.RequestOpts{
		Method:   http.MethodPost,
		Path:     "/auth/refresh",
		Body:     map[string]string{"refreshToken": refreshToken},
		SkipAuth: true,
	}, &creds)
	if err != nil {
		m.Logout()
		return err
	}

	return m.Login(creds.AccessToken, creds.RefreshToken, creds.User, remember)
}

// Logout clears all persisted credentials and resets the in-memory
// state. Safe to call repeatedly.
func (m *Manager) Logout() {
	for _, key := range []string{token.KeyAccessToken, token.KeyRefreshToken, token.KeyProfile} {
		if err := m.store.Delete(key); err != nil {
			log.Printf("[Session] Failed to clear %s: %v", key, err)
		}
	}

	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
}

// reconcileProfile fetches the canonical profile and replaces the
// optimistic claims-derived user. A 401 is handled by the transport's
// refresh-and-retry; a 403 gets one explicit refresh attempt; any
// other failure clears the session.
func (m *Manager) reconcileProfile(ctx context.Context) {
	var profile Profile
	err := m.client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodGet,
		Path:   "/auth/me",
	}, &profile)

	if err != nil {
		if rest.IsStatus(err, http.StatusUnauthorized) || rest.IsStatus(err, http.StatusForbidden) {
			if refreshErr := m.Refresh(ctx); refreshErr != nil {
				log.Printf("[Session] Profile reconcile refresh failed: %v", refreshErr)
			}
			return
		}
		log.Printf("[Session] Profile fetch failed, clearing session: %v", err)
		m.Logout()
		return
	}

	accessToken := m.store.Get(token.KeyAccessToken)
	if accessToken == "" {
		return
	}
	claims, err := decodeClaims(accessToken)
	if err != nil {
		return
	}

	if blob, err := json.Marshal(&profile); err == nil {
		if err := m.store.Set(token.KeyProfile, string(blob), token.PersistenceDurable); err != nil {
			log.Printf("[Session] Failed to cache profile: %v", err)
		}
	}

	m.setUserFromClaims(claims, &profile)
}

func (m *Manager) setUserFromClaims(claims jwt.MapClaims, profile *Profile) {
	user := &User{
		IsAdmin: deriveIsAdmin(claims, profile),
	}

	if profile != nil {
		user.ID = profile.ID
		user.Email = profile.Email
		user.Roles = append([]string(nil), profile.Roles...)
	}
	if user.ID == "" {
		user.ID = claimString(claims, "sub")
	}
	if user.Email == "" {
		user.Email = claimString(claims, "email")
	}
	if len(user.Roles) == 0 {
		user.Roles = rolesFromClaims(claims)
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
}

func (m *Manager) cachedProfile() *Profile {
	blob := m.store.Get(token.KeyProfile)
	if blob == "" {
		return nil
	}
	var profile Profile
	if err := json.Unmarshal([]byte(blob), &profile); err != nil {
		return nil
	}
	return &profile
}
