package electoral

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisChallengeGuard enforces single-use challenges across processes by
// claiming each challenge id with SETNX. The TTL only has to outlive the
// authority's own challenge expiry.
type RedisChallengeGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisChallengeGuard constructs a guard backed by the given client.
func NewRedisChallengeGuard(client *redis.Client) *RedisChallengeGuard {
	return &RedisChallengeGuard{client: client, ttl: 15 * time.Minute}
}

// MarkConsumed claims the challenge id. It returns false when some earlier
// submission already claimed it.
func (g *RedisChallengeGuard) MarkConsumed(ctx context.Context, challengeID string) (bool, error) {
	return g.client.SetNX(ctx, "captcha-consumed:"+challengeID, 1, g.ttl).Result()
}
