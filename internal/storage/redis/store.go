package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stawikopa-del/fitfly-sub001/internal/config"
	"github.com/stawikopa-del/fitfly-sub001/internal/models"
	"github.com/stawikopa-del/fitfly-sub001/internal/storage"
	"github.com/stawikopa-del/fitfly-sub001/pkg/logger"
)

// Store implements storage.SessionRepository using Redis.
// Sessions are stored as JSON with a TTL for automatic cleanup; a set per
// user indexes their session IDs.
type Store struct {
	client *goredis.Client
	ttl    time.Duration // 0 = no expiration
	logger *logger.Logger
}

// NewStore connects to Redis and verifies the connection.
func NewStore(cfg config.RedisConfig, ttl time.Duration, log *logger.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis", logger.F("addr", cfg.Addr))
	return NewStoreWithClient(client, ttl, log), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *goredis.Client, ttl time.Duration, log *logger.Logger) *Store {
	return &Store{client: client, ttl: ttl, logger: log}
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

// CreateSession stores a new session and indexes it under its user.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	created, err := s.client.SetNX(ctx, sessionKey(session.SessionID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !created {
		return storage.ErrSessionExists
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, userKey(session.UserID), session.SessionID)
	if s.ttl > 0 {
		pipe.Expire(ctx, userKey(session.UserID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}

	s.logger.Debug("Session created", logger.F("session_id", session.SessionID))
	return nil
}

// GetSession retrieves a session from Redis.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// UpdateSession overwrites an existing session and refreshes its TTL.
func (s *Store) UpdateSession(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	updated, err := s.client.SetXX(ctx, sessionKey(session.SessionID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if !updated {
		return storage.ErrSessionNotFound
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, userKey(session.UserID), s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to refresh user index: %w", err)
		}
	}

	return nil
}

// GetSessionsByUserID loads every indexed session of a user, oldest first.
// Expired entries are pruned from the index.
func (s *Store) GetSessionsByUserID(ctx context.Context, userID string) ([]*models.Session, error) {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user index: %w", err)
	}

	var sessions []*models.Session
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if errors.Is(err, storage.ErrSessionNotFound) {
			s.client.SRem(ctx, userKey(userID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("fitfly:session:%s", id)
}

func userKey(userID string) string {
	return fmt.Sprintf("fitfly:user:%s:sessions", userID)
}
