package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix = "presence:user:" // Key per online user: presence:user:{user_id}
	defaultTTL    = 5 * time.Minute
)

// Store tracks which profiles are currently online. Keys expire on their own,
// so a client that stops syncing simply falls offline; no sweeper needed.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// MarkOnline flags a profile as online for the store's TTL, refreshing the
// window if already set.
func (s *Store) MarkOnline(ctx context.Context, userID string) error {
	if err := s.client.Set(ctx, s.userKey(userID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

// MarkOffline drops the presence flag immediately.
func (s *Store) MarkOffline(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.userKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check presence: %w", err)
	}
	return n > 0, nil
}

// OnlineStatus resolves presence for a batch of profiles in one round trip.
func (s *Store) OnlineStatus(ctx context.Context, userIDs []string) (map[string]bool, error) {
	status := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return status, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(userIDs))
	for _, id := range userIDs {
		cmds[id] = pipe.Exists(ctx, s.userKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("batch presence: %w", err)
	}

	for id, cmd := range cmds {
		status[id] = cmd.Val() > 0
	}
	return status, nil
}

func (s *Store) userKey(userID string) string {
	return userKeyPrefix + userID
}
