package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const addressKeyPrefix = "geocode:"

// GetAddress returns a cached reverse-geocoding result. ok is false on a miss.
func (s *Service) GetAddress(ctx context.Context, key string) (string, bool, error) {
	addr, err := s.Redis.Get(ctx, addressKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return addr, true, nil
}

// SetAddress caches a reverse-geocoding result for ttl.
func (s *Service) SetAddress(ctx context.Context, key, address string, ttl time.Duration) error {
	return s.Redis.Set(ctx, addressKeyPrefix+key, address, ttl).Err()
}
