package redis

// Package redis provides the Redis-based session store for the gateway.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

// SessionStore is a Redis-based session store for production use.
// It handles TTL semantics automatically based on session ExpiresAt.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: "session:",
	}
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	data, ttl, err := s.encode(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err()
}

// Update rewrites a session only if the key still exists (SET XX). A
// revalidation that finishes after a logout deleted the session must not
// resurrect it; the logout wins.
func (s *SessionStore) Update(ctx context.Context, sess domainauth.Session) error {
	data, ttl, err := s.encode(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.prefix+sess.ID, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set xx: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *SessionStore) encode(sess domainauth.Session) ([]byte, time.Duration, error) {
	if sess.ID == "" {
		return nil, 0, errors.New("session ID cannot be empty")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		// Session is already expired, don't save it
		return nil, 0, errors.New("session is expired")
	}
	return data, ttl, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	key := s.prefix + id
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// The key TTL tracks ExpiresAt, but clock skew can leave a stale row.
	if time.Now().After(sess.ExpiresAt) {
		// Clean up expired session; if cleanup fails bubble the error up.
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return domainauth.Session{}, ErrNotFound
	}

	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}

	key := s.prefix + id
	return s.client.Del(ctx, key).Err()
}

// ActiveIDs scans for currently stored session IDs. Used by the
// background revalidation sweep; the result is a point-in-time snapshot,
// not a consistent view.
func (s *SessionStore) ActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, k[len(s.prefix):])
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}

// ErrNotFound is returned when a session is not found. It aliases the
// ports sentinel so callers can match it without importing this package.
var ErrNotFound = ports.ErrSessionNotFound
