// Package presence mirrors connection state into Redis so operators and
// other services can see who is online.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status struct {
	Status   string `json:"status"` // "online" | "offline"
	LastSeen int64  `json:"last_seen"`
}

type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "ws"
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, "online", s.ttl)
}

func (s *Store) SetOffline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, "offline", 0)
}

func (s *Store) set(ctx context.Context, userID, status string, ttl time.Duration) error {
	b, _ := json.Marshal(Status{Status: status, LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.key(userID), b, ttl).Err()
}

// Get returns the recorded presence, defaulting to offline for users
// never seen.
func (s *Store) Get(ctx context.Context, userID string) (*Status, error) {
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return &Status{Status: "offline"}, nil
	}
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
