package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore потокобезопасное in-memory хранилище сессий с TTL по бездействию.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore создаёт хранилище. Если ttl == 0, сессии никогда не истекают.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get возвращает копию сессии. Истёкшая сессия удаляется лениво.
func (s *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if s.expired(sess, s.now()) {
		delete(s.sessions, id)
		return Session{}, ErrNotFound
	}

	sess.History = sess.History.Clone()
	return sess, nil
}

func (s *MemoryStore) Create(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("create session: empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("create session %s: already exists", sess.ID)
	}
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.History = sess.History.Clone()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, history History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, s.now()) {
		return ErrNotFound
	}
	sess.History = history.Clone()
	sess.UpdatedAt = s.now()
	s.sessions[id] = sess
	return nil
}

// ClearExpired удаляет сессии, у которых истёк TTL относительно now.
func (s *MemoryStore) ClearExpired(ctx context.Context, now time.Time) int {
	if s.ttl == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted
}

func (s *MemoryStore) expired(sess Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}
