package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
)

func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

const refreshBlacklistPrefix = "blacklist:refresh:"

// TokenBlacklist keeps revoked refresh-token hashes until their natural expiry.
type TokenBlacklist struct {
	client *redis.Client
}

func NewTokenBlacklist(client *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{client: client}
}

// Add stores hash for ttl. Non-positive ttls are skipped since the token is already dead.
func (b *TokenBlacklist) Add(ctx context.Context, hash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, refreshBlacklistPrefix+hash, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklisting refresh token: %w", err)
	}
	return nil
}

func (b *TokenBlacklist) Contains(ctx context.Context, hash string) (bool, error) {
	n, err := b.client.Exists(ctx, refreshBlacklistPrefix+hash).Result()
	if err != nil {
		return false, fmt.Errorf("checking refresh blacklist: %w", err)
	}
	return n > 0, nil
}
