package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commodex/paper-engine/internal/metrics"
)

type session struct {
	username  string
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory. Suitable for
// single-instance runs; sessions are lost on restart.
type MemorySessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	byToken map[string]session
	byUser  map[string]string
	now     func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:     ttl,
		byToken: make(map[string]session),
		byUser:  make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Create(ctx context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One active session per user: a new login evicts the old token.
	if old, ok := s.byUser[username]; ok {
		delete(s.byToken, old)
	}

	token := uuid.New().String()
	s.byToken[token] = session{username: username, expiresAt: s.now().Add(s.ttl)}
	s.byUser[username] = token
	metrics.ActiveSessions.Set(float64(len(s.byToken)))
	return token, nil
}

func (s *MemorySessionStore) Resolve(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	if s.now().After(sess.expiresAt) {
		delete(s.byToken, token)
		delete(s.byUser, sess.username)
		metrics.ActiveSessions.Set(float64(len(s.byToken)))
		return "", ErrSessionNotFound
	}
	return sess.username, nil
}

func (s *MemorySessionStore) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byToken[token]; ok {
		delete(s.byToken, token)
		delete(s.byUser, sess.username)
		metrics.ActiveSessions.Set(float64(len(s.byToken)))
	}
	return nil
}
