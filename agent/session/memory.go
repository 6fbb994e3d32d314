// Package session implements conversational memory for the agent. A
// session is an append-only message log keyed by the caller's identity;
// appends are atomic per message and reads always see a consistent
// prefix of the log.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

var ErrSessionNotFound = errors.New("session not found")

// MemoryStore keeps sessions in process memory. The default backend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*contractx.Session
	now      func() time.Time
}

var _ contractx.SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*contractx.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, key string, role contractx.Role) (*contractx.Session, error) {
	if key == "" {
		return nil, errors.New("session key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		now := s.now()
		sess = &contractx.Session{
			Key:       key,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.sessions[key] = sess
	}
	return cloneSession(sess), nil
}

func (s *MemoryStore) Append(ctx context.Context, key string, msg contractx.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, key string) ([]contractx.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]contractx.Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out, nil
}

// Clear truncates the message log but keeps the session key alive.
func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Messages = nil
	sess.UpdatedAt = s.now()
	return nil
}

func cloneSession(sess *contractx.Session) *contractx.Session {
	clone := *sess
	clone.Messages = make([]contractx.Message, len(sess.Messages))
	copy(clone.Messages, sess.Messages)
	return &clone
}
