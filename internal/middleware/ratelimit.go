// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

// slidingWindow trims entries older than the window, then admits the
// request if fewer than limit remain. Scores are microsecond timestamps.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, math.ceil(window / 1000))
return 1
`)

// RateLimiter provides per-IP rate limiting using a sliding window kept in
// a Valkey sorted set, so the limit holds across API instances.
type RateLimiter struct {
	client *redis.Client
	name   string
	limit  int           // max requests per window
	window time.Duration // sliding window duration
}

// NewRateLimiter creates a rate limiter that allows limit requests per
// window. name separates the key space of independent limiters.
func NewRateLimiter(client *redis.Client, name string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, name: name, limit: limit, window: window}
}

// Allow records a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := slidingWindow.Run(ctx, rl.client,
		[]string{fmt.Sprintf("ratelimit:%s:%s", rl.name, key)},
		time.Now().UnixMicro(), rl.window.Microseconds(), rl.limit, xid.New().String(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", rl.name, err)
	}
	return res == 1, nil
}

// Middleware returns an HTTP middleware that rate-limits by client IP as
// resolved by RealIP. When Valkey is unreachable requests are let through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := rl.Allow(r.Context(), clientIP(r))
		if err != nil {
			slog.Warn("rate limiter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			WriteError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
