package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type SeenToucher interface {
	TouchAccountSeen(ctx context.Context, accountID string) error
}

// TouchLastSeen updates accounts.last_seen_at at most once per throttle
// window, using a Redis SETNX key as the gate.
func TouchLastSeen(repo SeenToucher, rdb redis.UniversalClient, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetString(CtxAccountID)
		if id == "" {
			c.Next()
			return
		}

		key := "laptops:lastseen:" + id
		if ok, _ := rdb.SetNX(c, key, "1", throttle).Result(); ok {
			_ = repo.TouchAccountSeen(c, id)
		}
		c.Next()
	}
}
