package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Persistence selects which tier a value is written to.
type Persistence string

const (
	// PersistenceSession keeps the value in process memory only.
	PersistenceSession Persistence = "session"
	// PersistenceDurable writes the value to disk so it survives restarts.
	PersistenceDurable Persistence = "durable"
)

// Well-known storage keys.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyProfile      = "userProfile"
)

const fileName = "credentials.json"

// Store persists credentials across a session tier and a durable tier.
// The durable tier is a JSON file under dir; the session tier lives and
// dies with the process. A key is held by at most one tier at a time.
type Store struct {
	mu      sync.RWMutex
	dir     string
	session map[string]string
	durable map[string]string
}

// Open loads the durable tier from dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}

	s := &Store{
		dir:     dir,
		session: make(map[string]string),
		durable: make(map[string]string),
	}

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	if err := json.Unmarshal(data, &s.durable); err != nil {
		// A corrupt credentials file degrades to an empty durable tier.
		s.durable = make(map[string]string)
	}

	return s, nil
}

// Get returns the value for key from whichever tier holds it, session
// tier first. Empty string means absent.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.session[key]; ok {
		return v
	}
	return s.durable[key]
}

// Set writes key into the requested tier and removes it from the other,
// so a key is never held by both tiers.
func (s *Store) Set(key, value string, p Persistence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p {
	case PersistenceDurable:
		delete(s.session, key)
		s.durable[key] = value
		return s.flushLocked()
	default:
		if _, ok := s.durable[key]; ok {
			delete(s.durable, key)
			if err := s.flushLocked(); err != nil {
				return err
			}
		}
		s.session[key] = value
		return nil
	}
}

// Delete removes key from both tiers.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.session, key)
	if _, ok := s.durable[key]; ok {
		delete(s.durable, key)
		return s.flushLocked()
	}
	return nil
}

// HasDurable reports whether key currently lives in the durable tier.
func (s *Store) HasDurable(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.durable[key]
	return ok
}

// Clear wipes both tiers.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = make(map[string]string)
	s.durable = make(map[string]string)
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	data, err := json.Marshal(s.durable)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	path := filepath.Join(s.dir, fileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}
