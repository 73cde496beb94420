package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenStore maps hashed single use tokens to a user id with a TTL.
type TokenStore struct {
	client *redis.Client
	prefix string
}

func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{client: client, prefix: prefix}
}

func (s *TokenStore) Put(ctx context.Context, tokenHash []byte, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(tokenHash), userID, ttl).Err(); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Consume returns the user id and deletes the token in one round trip.
func (s *TokenStore) Consume(ctx context.Context, tokenHash []byte) (string, error) {
	userID, err := s.client.GetDel(ctx, s.key(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume token: %w", err)
	}
	return userID, nil
}

func (s *TokenStore) key(tokenHash []byte) string {
	return s.prefix + ":" + hex.EncodeToString(tokenHash)
}
