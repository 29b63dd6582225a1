package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// FlagStore keeps per-device flags in one hash per client:
// HSET quiz:flags:{clientID} {key} 1|0
type FlagStore struct {
	client *redis.Client
}

func NewFlagStore(client *redis.Client) *FlagStore {
	return &FlagStore{client: client}
}

func (s *FlagStore) Get(ctx context.Context, clientID, key string) (bool, error) {
	v, err := s.client.HGet(ctx, s.key(clientID), key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (s *FlagStore) Set(ctx context.Context, clientID, key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return s.client.HSet(ctx, s.key(clientID), key, v).Err()
}

func (s *FlagStore) key(clientID string) string {
	return "quiz:flags:" + clientID
}
