package oauth

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/samuvale95/swift-study-box-be/internal/cache"
	tokens "github.com/samuvale95/swift-study-box-be/internal/security/token"
)

const (
	statePrefix   = "oauth:state:"
	stateTTL      = 10 * time.Minute
	stateNumBytes = 32
)

type statePayload struct {
	Provider string `json:"provider"`
	IssuedAt int64  `json:"iat"`
}

// StateStore issues and consumes the CSRF states of the login flow. States
// live in the shared cache under the oauth:state: prefix, so a redis-backed
// cache makes them survive restarts and work across replicas.
type StateStore struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time

	// mu makes Consume a single atomic lookup+delete. Two callbacks racing
	// on the same state must not both win.
	mu sync.Mutex
}

func NewStateStore(c cache.Cache) *StateStore {
	return &StateStore{cache: c, ttl: stateTTL, now: time.Now}
}

// Issue stores a state bound to the provider and returns it. When the caller
// supplied its own state value it is recorded verbatim; otherwise a random
// one is generated.
func (s *StateStore) Issue(provider, callerState string) (string, error) {
	state := callerState
	if state == "" {
		var err error
		state, err = tokens.GenerateOpaqueToken(stateNumBytes)
		if err != nil {
			return "", fmt.Errorf("generate state: %w", err)
		}
	}

	payload, err := json.Marshal(statePayload{
		Provider: provider,
		IssuedAt: s.now().Unix(),
	})
	if err != nil {
		return "", err
	}
	s.cache.Set(statePrefix+state, payload, s.ttl)
	return state, nil
}

// Consume validates and deletes the state, returning the provider it was
// bound to. Exactly one of several concurrent consumers succeeds; everyone
// else gets ErrInvalidState, as do expired and never-issued states.
func (s *StateStore) Consume(state string) (string, error) {
	if state == "" {
		return "", ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := statePrefix + state
	raw, ok := s.cache.Get(key)
	if !ok {
		return "", ErrInvalidState
	}
	s.cache.Delete(key)

	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", ErrInvalidState
	}
	// The cache evicts on its own TTL, but the recorded issue time is the
	// authoritative deadline. A backend with coarser eviction cannot extend
	// a state's life past it.
	if s.now().After(time.Unix(payload.IssuedAt, 0).Add(s.ttl)) {
		return "", ErrInvalidState
	}
	return payload.Provider, nil
}
