package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/stawikopa-del/fitfly-sub001/internal/models"
)

// SessionRepository defines operations on session records with context support.
// This interface is implemented by both in-memory and Redis storage
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	GetSessionsByUserID(ctx context.Context, userID string) ([]*models.Session, error)
}

// CompletionRepository stores finished sessions.
// This interface is implemented by both in-memory and Cassandra storage
type CompletionRepository interface {
	RecordCompletion(ctx context.Context, completion *models.Completion) error
	ListCompletions(ctx context.Context, userID string) ([]*models.Completion, error)
}

// MemoryStorage provides in-memory storage for sessions and completions
type MemoryStorage struct {
	mu          sync.RWMutex
	sessions    map[string]*models.Session
	completions map[string]*models.Completion
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions:    make(map[string]*models.Session),
		completions: make(map[string]*models.Completion),
	}
}

// CreateSession creates a new session
func (s *MemoryStorage) CreateSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.SessionID]; exists {
		return ErrSessionExists
	}

	s.sessions[session.SessionID] = session.Clone()
	return nil
}

// GetSession retrieves a session by ID
func (s *MemoryStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return session.Clone(), nil
}

// UpdateSession replaces a stored session
func (s *MemoryStorage) UpdateSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.SessionID]; !exists {
		return ErrSessionNotFound
	}

	s.sessions[session.SessionID] = session.Clone()
	return nil
}

// GetSessionsByUserID retrieves all sessions for a user, oldest first
func (s *MemoryStorage) GetSessionsByUserID(ctx context.Context, userID string) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*models.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session.Clone())
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions, nil
}

// RecordCompletion stores a completion once per session
func (s *MemoryStorage) RecordCompletion(ctx context.Context, completion *models.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.completions[completion.SessionID]; exists {
		return ErrCompletionExists
	}

	c := *completion
	s.completions[completion.SessionID] = &c
	return nil
}

// ListCompletions returns a user's completions, newest first
func (s *MemoryStorage) ListCompletions(ctx context.Context, userID string) ([]*models.Completion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completions := make([]*models.Completion, 0)
	for _, completion := range s.completions {
		if completion.UserID == userID {
			c := *completion
			completions = append(completions, &c)
		}
	}
	sort.Slice(completions, func(i, j int) bool {
		return completions[i].CompletedAt.After(completions[j].CompletedAt)
	})

	return completions, nil
}

// Errors
var (
	ErrSessionNotFound  = &StorageError{Message: "session not found"}
	ErrSessionExists    = &StorageError{Message: "session already exists"}
	ErrCompletionExists = &StorageError{Message: "completion already recorded"}
)

// StorageError represents a storage error
type StorageError struct {
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}
