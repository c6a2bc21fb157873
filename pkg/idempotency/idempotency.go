package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Store is the backing token store. Acquire must be atomic: of two
// concurrent callers with the same token, exactly one wins.
type Store interface {
	// Seen reports whether the token was marked within its TTL window.
	Seen(ctx context.Context, token string) (bool, error)
	// Acquire marks the token and reports whether this caller won it.
	Acquire(ctx context.Context, token string, ttl time.Duration) (bool, error)
	// Release unmarks the token so a later delivery can claim it again.
	Release(ctx context.Context, token string) error
}

// Service deduplicates logically identical operations.
type Service struct {
	store Store
	ttl   time.Duration
}

func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{store: store, ttl: ttl}
}

// TokenFor derives a deterministic token from the parts of an operation.
// The same logical input always yields the same token, so duplicates are
// caught even when the literal payloads differ.
func TokenFor(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// WasUsed reports whether the token has already been consumed.
func (s *Service) WasUsed(ctx context.Context, token string) (bool, error) {
	return s.store.Seen(ctx, token)
}

// MarkUsed records the token for the service TTL.
func (s *Service) MarkUsed(ctx context.Context, token string) error {
	_, err := s.store.Acquire(ctx, token, s.ttl)
	return err
}

// RunOnce executes fn at most once per token. The token is claimed
// atomically before fn runs; if fn fails the claim is released so a
// re-delivery can try again. Returns whether fn was executed.
func (s *Service) RunOnce(ctx context.Context, token string, fn func() error) (bool, error) {
	won, err := s.store.Acquire(ctx, token, s.ttl)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}
	if err := fn(); err != nil {
		// Best effort: a failed release leaves the token claimed until
		// the TTL expires, which only delays a redelivery.
		_ = s.store.Release(ctx, token)
		return true, err
	}
	return true, nil
}

// MemoryStore is a single-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]time.Time)}
}

func (m *MemoryStore) Seen(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(token), nil
}

func (m *MemoryStore) Acquire(_ context.Context, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live(token) {
		return false, nil
	}
	m.tokens[token] = time.Now().Add(ttl)
	return true, nil
}

func (m *MemoryStore) Release(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

// live reports whether the token exists and has not expired, pruning it if
// it has. Called with m.mu held.
func (m *MemoryStore) live(token string) bool {
	exp, ok := m.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(m.tokens, token)
		return false
	}
	return true
}
