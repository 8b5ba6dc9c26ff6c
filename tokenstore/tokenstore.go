// Package tokenstore holds pending OAuth authorizations between the moment a
// user presses the login button and the moment the web callback returns with
// the exchange token. State is in-memory only; a restart simply forces users
// to start over.
package tokenstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/classof27/rollcall/telemetry"
)

// ErrTokenNotFound is returned by Resolve for tokens that are unknown,
// expired, already consumed, or superseded by a newer issuance for the same
// identity. Callers cannot distinguish these cases, by construction.
var ErrTokenNotFound = errors.New("token not found")

// DefaultTTL is how long an unconsumed pending authorization stays
// resolvable.
const DefaultTTL = 10 * time.Minute

// Maximum number of pending authorizations to keep in memory. Beyond this,
// Put refuses new entries; failing the new flow beats unbounded growth.
const maxPending = 10000

// Pending correlates an issued exchange token back to the identity and guild
// that requested it.
type Pending struct {
	Token     string
	Secret    string
	UserID    string
	GuildID   string
	ExpiresAt time.Time
}

// Store maps exchange tokens to pending authorizations. At most one live
// entry exists per identity: storing a new one evicts the identity's previous
// token regardless of remaining TTL, so an older in-flight login becomes
// unresolvable the moment a newer one is issued.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]Pending // keyed by exchange token
	byUser  map[string]string  // identity -> current token
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the default pending-authorization lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source, used by tests to make expiry
// deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		ttl:     DefaultTTL,
		now:     time.Now,
		pending: make(map[string]Pending),
		byUser:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put records a pending authorization for the given identity and returns its
// absolute expiry. Any prior entry for the same identity is evicted first.
func (s *Store) Put(userID, guildID, token, secret string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic cleanup so lazily-expired entries don't pin the map at
	// its cap (same cadence trade-off as a background sweep, but exercised
	// on the hot path too).
	if len(s.pending)%100 == 0 {
		s.evictExpiredLocked()
	}
	if prev, ok := s.byUser[userID]; ok {
		delete(s.pending, prev)
	}
	if len(s.pending) >= maxPending {
		return Pending{}, errors.New("too many pending authorizations")
	}
	p := Pending{
		Token:     token,
		Secret:    secret,
		UserID:    userID,
		GuildID:   guildID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.pending[token] = p
	s.byUser[userID] = token
	return p, nil
}

// Resolve looks up and removes the entry for token. It is single-use: a
// second Resolve for the same token fails with ErrTokenNotFound, as does a
// Resolve after the TTL elapsed.
func (s *Store) Resolve(token string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[token]
	if !ok {
		return Pending{}, ErrTokenNotFound
	}
	delete(s.pending, token)
	if s.byUser[p.UserID] == token {
		delete(s.byUser, p.UserID)
	}
	if s.now().After(p.ExpiresAt) {
		countExpired(1)
		return Pending{}, ErrTokenNotFound
	}
	return p, nil
}

// Len reports the number of live pending authorizations (expired entries not
// yet swept are counted; they are unresolvable either way).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) evictExpiredLocked() {
	now := s.now()
	evicted := 0
	for token, p := range s.pending {
		if now.After(p.ExpiresAt) {
			delete(s.pending, token)
			if s.byUser[p.UserID] == token {
				delete(s.byUser, p.UserID)
			}
			evicted++
		}
	}
	countExpired(evicted)
}

func countExpired(n int) {
	if n > 0 && telemetry.TokensExpired != nil {
		telemetry.TokensExpired.Add(float64(n))
	}
}

// StartSweeper launches a goroutine that periodically evicts expired entries
// until ctx is cancelled. Expiry is already checked lazily on Resolve; the
// sweep only bounds memory for tokens nobody ever brings back.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.mu.Lock()
				s.evictExpiredLocked()
				s.mu.Unlock()
			}
		}
	}()
}
