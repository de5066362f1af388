package memory

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/open-assistants-lab/executive-assistant-sub000/internal/observability"
)

const defaultSessionCapacity = 64

// Sessions owns the open per-user stores. It replaces an unbounded
// process-wide cache with an LRU: stores for idle users are evicted and
// their file handles closed. The host acquires a store per request and
// binds it to the call context with WithStore.
type Sessions struct {
	dataDir  string
	logger   zerolog.Logger
	embedder EmbeddingProvider

	mu    sync.Mutex
	cache *lru.Cache[string, *Store]
}

// SessionsConfig configures the store manager.
type SessionsConfig struct {
	// DataDir is the root directory; each user gets a subdirectory.
	DataDir string
	// Capacity bounds how many user stores stay open at once.
	Capacity int
	Logger   zerolog.Logger
	// Embedder is shared across all user stores; may be nil.
	Embedder EmbeddingProvider
}

// NewSessions creates the store manager.
func NewSessions(cfg SessionsConfig) (*Sessions, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultSessionCapacity
	}

	s := &Sessions{
		dataDir:  cfg.DataDir,
		logger:   cfg.Logger,
		embedder: cfg.Embedder,
	}

	cache, err := lru.NewWithEvict(cfg.Capacity, func(userID string, store *Store) {
		if err := store.Close(); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to close evicted store")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Acquire returns the open store for a user, opening it on first access.
func (s *Sessions) Acquire(userID string) (*Store, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if store, ok := s.cache.Get(userID); ok {
		return store, nil
	}

	store, err := NewStore(Config{
		Dir:      filepath.Join(s.dataDir, userID),
		UserID:   userID,
		Logger:   s.logger,
		Embedder: s.embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store for user %s: %w", userID, err)
	}

	s.cache.Add(userID, store)
	observability.SetActiveStores(s.cache.Len())
	return store, nil
}

// Evict closes and drops one user's store, e.g. on session end.
func (s *Sessions) Evict(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(userID)
	observability.SetActiveStores(s.cache.Len())
}

// Len reports how many user stores are currently open.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Close closes every open store.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	observability.SetActiveStores(0)
}

func validateUserID(userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	if strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return fmt.Errorf("invalid user id %q", userID)
	}
	return nil
}
