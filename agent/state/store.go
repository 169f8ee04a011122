package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNilContext      = errors.New("session context is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Store is the session persistence contract. Implementations are injected
// into the server; nothing reads session state ambiently.
//
// Concurrent writers to the same key get last-writer-wins semantics. A
// session key is expected to be owned by one in-flight request at a time.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Context, error)
	Save(ctx context.Context, sessionID string, sctx *Context) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps sessions in process memory for the process lifetime.
// Entries are stored as JSON so callers never share mutable structures with
// the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*Context, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	raw, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	var sctx Context
	if err := json.Unmarshal(raw, &sctx); err != nil {
		return nil, fmt.Errorf("unmarshal session context: %w", err)
	}
	return &sctx, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, sctx *Context) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	if sctx == nil {
		return ErrNilContext
	}

	raw, err := json.Marshal(sctx)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}

	s.mu.Lock()
	s.sessions[sessionID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Len reports the number of live sessions, for debugging surfaces.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
