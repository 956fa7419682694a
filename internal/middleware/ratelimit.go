package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/echoes-backend/internal/database"
	"github.com/AnshRaj112/echoes-backend/pkg/clientip"
)

const (
	// RateLimitWindow is the fixed window length
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window
	RateLimitMaxRequests = 300
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked after exceeding the limit
	BlockedIPDuration = 15 * time.Minute
)

// RateLimitMiddleware is a Redis fixed-window limiter that blocks an IP for
// BlockedIPDuration once it exceeds RateLimitMaxRequests. Without Redis it lets everything through.
func RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rdb := database.RedisClient
		if rdb == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := clientip.FromRequest(r)

		blockedKey := BlockedIPKeyPrefix + ip
		isBlocked, err := rdb.Exists(ctx, blockedKey).Result()
		if err == nil && isBlocked > 0 {
			tooManyRequests(w, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
			return
		}

		rateLimitKey := RateLimitKeyPrefix + ip
		n, err := rdb.Incr(ctx, rateLimitKey).Result()
		if err != nil {
			// Fail open
			logrus.WithError(err).Warn("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if n == 1 {
			// First request opens the window
			rdb.Expire(ctx, rateLimitKey, RateLimitWindow)
		}
		count := int(n)

		if count > RateLimitMaxRequests {
			if err := rdb.Set(ctx, blockedKey, "1", BlockedIPDuration).Err(); err != nil {
				logrus.WithError(err).WithField("ip", ip).Warn("failed to block IP")
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(BlockedIPDuration.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(fmt.Sprintf(`{"success":false,"message":"Rate limit exceeded. Please try again later.","retry_after":%d}`, int(BlockedIPDuration.Seconds()))))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(RateLimitMaxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(RateLimitMaxRequests-count))
		next.ServeHTTP(w, r)
	})
}
