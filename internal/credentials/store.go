// Package credentials holds the process-wide API-key store with
// rotate-on-rate-limit semantics and request-scoped overrides.
package credentials

import (
	"fmt"
	"os"
	"sync"

	"quasar/internal/config"
	"quasar/internal/logging"
)

// Credential is one API key with an active flag. Rotation deactivates
// keys; they are never reactivated within a process lifetime.
type Credential struct {
	Key    string
	Active bool
}

type providerCredentials struct {
	current     int
	credentials []Credential
}

// ProviderStatus summarizes one provider's credential state.
type ProviderStatus struct {
	Available    bool `json:"available"`
	TotalKeys    int  `json:"total_keys"`
	ActiveKeys   int  `json:"active_keys"`
	UserProvided bool `json:"user_provided"`
}

// Store keeps ordered credential lists per provider. Safe for
// concurrent use; rotations take the write lock.
type Store struct {
	mu        sync.RWMutex
	providers map[string]*providerCredentials
	logger    logging.Logger
}

// NewStore creates an empty store.
func NewStore(logger logging.Logger) *Store {
	return &Store{
		providers: make(map[string]*providerCredentials),
		logger:    logging.OrNop(logger),
	}
}

// NewStoreFromEnv creates a store populated from the numbered
// environment slots: CEREBRAS_API_KEY_n, GROQ_API_KEY_n, and paired
// CLOUDFLARE_ACCOUNT_ID_n + CLOUDFLARE_API_TOKEN_n (stored as
// "account:token"). Slots are read in order until the first gap.
func NewStoreFromEnv(logger logging.Logger) *Store {
	s := NewStore(logger)
	s.loadKeySlots(config.ProviderCerebras, "CEREBRAS_API_KEY_%d")
	s.loadKeySlots(config.ProviderGroq, "GROQ_API_KEY_%d")
	s.loadCloudflareSlots()
	return s
}

func (s *Store) loadKeySlots(provider, pattern string) {
	for i := 1; ; i++ {
		key := os.Getenv(fmt.Sprintf(pattern, i))
		if key == "" {
			break
		}
		s.Add(provider, key)
	}
	if n := s.TotalKeys(provider); n > 0 {
		s.logger.Info("Loaded %d credential(s) for %s", n, provider)
	}
}

func (s *Store) loadCloudflareSlots() {
	for i := 1; ; i++ {
		account := os.Getenv(fmt.Sprintf("CLOUDFLARE_ACCOUNT_ID_%d", i))
		token := os.Getenv(fmt.Sprintf("CLOUDFLARE_API_TOKEN_%d", i))
		if account == "" || token == "" {
			break
		}
		s.Add(config.ProviderCloudflare, account+":"+token)
	}
}

// Add appends a credential for a provider.
func (s *Store) Add(provider, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc := s.providers[provider]
	if pc == nil {
		pc = &providerCredentials{}
		s.providers[provider] = pc
	}
	pc.credentials = append(pc.credentials, Credential{Key: key, Active: true})
}

// Get returns the credential at the current cursor if it is active.
// Local-only providers have no credentials and return ("", true).
func (s *Store) Get(provider string) (string, bool) {
	if provider == config.ProviderOllama {
		return "", true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc := s.providers[provider]
	if pc == nil || pc.current >= len(pc.credentials) {
		return "", false
	}
	cred := pc.credentials[pc.current]
	if !cred.Active {
		return "", false
	}
	return cred.Key, true
}

// Rotate marks the current credential inactive and advances the cursor
// to the next active one. Returns false when no active credential
// remains.
func (s *Store) Rotate(provider string) bool {
	if provider == config.ProviderOllama {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pc := s.providers[provider]
	if pc == nil || len(pc.credentials) == 0 {
		return false
	}
	if pc.current < len(pc.credentials) {
		pc.credentials[pc.current].Active = false
	}
	for i := pc.current + 1; i < len(pc.credentials); i++ {
		if pc.credentials[i].Active {
			pc.current = i
			s.logger.Warn("Rotated credential for %s to slot %d", provider, i+1)
			return true
		}
	}
	pc.current = len(pc.credentials)
	s.logger.Warn("Credentials exhausted for %s", provider)
	return false
}

// IsAvailable reports whether the provider has any active credential.
// Ollama needs none and is always available.
func (s *Store) IsAvailable(provider string) bool {
	if provider == config.ProviderOllama {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc := s.providers[provider]
	if pc == nil {
		return false
	}
	for _, c := range pc.credentials {
		if c.Active {
			return true
		}
	}
	return false
}

// TotalKeys returns the number of credentials loaded for a provider.
func (s *Store) TotalKeys(provider string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc := s.providers[provider]
	if pc == nil {
		return 0
	}
	return len(pc.credentials)
}

// HasAnyCredentials reports whether any remote provider has at least
// one credential loaded.
func (s *Store) HasAnyCredentials() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pc := range s.providers {
		if len(pc.credentials) > 0 {
			return true
		}
	}
	return false
}

// Status reports per-provider availability for the health endpoint.
func (s *Store) Status() map[string]ProviderStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ProviderStatus)
	for name := range config.Providers {
		if name == config.ProviderOllama {
			out[name] = ProviderStatus{Available: true}
			continue
		}
		pc := s.providers[name]
		st := ProviderStatus{}
		if pc != nil {
			st.TotalKeys = len(pc.credentials)
			for _, c := range pc.credentials {
				if c.Active {
					st.ActiveKeys++
				}
			}
			st.Available = st.ActiveKeys > 0
		}
		out[name] = st
	}
	return out
}
