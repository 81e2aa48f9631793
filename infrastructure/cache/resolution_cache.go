package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
	"page-token-service/infrastructure/configuration"
)

// resolvedTokenTTL keeps resolutions hot without outliving token health for
// long.
const resolvedTokenTTL = 5 * time.Minute

// NewRedisClient builds the redis client from configuration.
func NewRedisClient() *redis.Client {
	cfg := configuration.C.RedisClient
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
	})
}

// ResolutionCache fronts the orchestrator with a short-TTL token cache.
// Nil-safe: with no redis client every lookup misses.
type ResolutionCache struct {
	client *redis.Client
}

func NewResolutionCache(client *redis.Client) repository.IResolutionCache {
	return &ResolutionCache{client: client}
}

// ResolutionKey builds the cache key for a page and requirement profile.
func ResolutionKey(pageID string, req model.Requirements) string {
	return fmt.Sprintf("resolved_token:%s:%s", pageID, requirementSuffix(req))
}

func requirementSuffix(req model.Requirements) string {
	suffix := ""
	if req.NeedsMessaging {
		suffix += "m"
	}
	if req.NeedsInstagramMessaging {
		suffix += "i"
	}
	if req.NeedsAds {
		suffix += "a"
	}
	if suffix == "" {
		suffix = "none"
	}
	return suffix
}

func (c *ResolutionCache) GetResolvedToken(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", nil
	}
	token, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return token, err
}

func (c *ResolutionCache) SetResolvedToken(ctx context.Context, key string, token string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, key, token, resolvedTokenTTL).Err()
}

// InvalidateResolvedTokens drops every requirement-profile key for the page.
func (c *ResolutionCache) InvalidateResolvedTokens(ctx context.Context, pageID string) error {
	if c.client == nil {
		return nil
	}
	suffixes := []string{"none", "m", "i", "a", "mi", "ma", "ia", "mia"}
	keys := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		keys = append(keys, fmt.Sprintf("resolved_token:%s:%s", pageID, s))
	}
	return c.client.Del(ctx, keys...).Err()
}
