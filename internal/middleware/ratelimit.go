package middleware

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"bulletin/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

const codeRateLimited = "RATE_LIMITED"

var errNoRedis = errors.New("rate limit store unavailable")

// throttlingOff lists environments where limits only get in the way of local
// work and load tests.
var throttlingOff = map[string]bool{"": true, "test": true, "development": true, "stress": true}

// windowResult is the outcome of one hit against a fixed window.
type windowResult struct {
	allowed bool
	resetIn time.Duration
}

// hit counts one request in the rl:<bucket>:<subject> window. INCR and the
// first EXPIRE share a pipeline so a new key never lives without a TTL.
func hit(ctx context.Context, client *redis.Client, bucket, subject string, limit int, window time.Duration) (windowResult, error) {
	if client == nil {
		return windowResult{}, errNoRedis
	}
	key := "rl:" + bucket + ":" + subject

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return windowResult{}, err
	}

	resetIn := ttl.Val()
	if resetIn <= 0 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return windowResult{}, err
		}
		resetIn = window
	}
	return windowResult{allowed: incr.Val() <= int64(limit), resetIn: resetIn}, nil
}

// CheckRateLimit reports whether subject may make another request against
// bucket. It always allows outside staging and production.
func CheckRateLimit(ctx context.Context, client *redis.Client, bucket, subject string, limit int, window time.Duration) (bool, error) {
	if throttlingOff[os.Getenv("APP_ENV")] {
		return true, nil
	}
	res, err := hit(ctx, client, bucket, subject, limit, window)
	return res.allowed, err
}

// RateLimit allows limit requests per window for each user, or each IP before
// sign in. The optional name shares one bucket across routes; it defaults to
// the path. Redis outages fail open.
func RateLimit(client *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(client, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit outage policy.
func RateLimitWithPolicy(client *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if throttlingOff[os.Getenv("APP_ENV")] {
			return c.Next()
		}

		bucket := c.Path()
		if len(name) > 0 {
			bucket = name[0]
		}
		subject := "ip:" + c.IP()
		if uid := UserID(c); uid != "" {
			subject = "user:" + uid
		}

		res, err := hit(c.UserContext(), client, bucket, subject, limit, window)
		switch {
		case err != nil && policy == FailClosed:
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, rejecting",
				"bucket", bucket, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "rate limit unavailable",
				Code:  codeRateLimited,
			})
		case err != nil:
			return c.Next()
		case !res.allowed:
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(res.resetIn.Round(time.Second)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  codeRateLimited,
			})
		}
		return c.Next()
	}
}

// LoginLimiter throttles sign-in attempts per key, usually the email.
type LoginLimiter struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
}

// Allow reports whether another attempt for key is permitted. Without Redis
// attempts are not limited.
func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.Client == nil {
		return true, nil
	}
	return CheckRateLimit(ctx, l.Client, "login", key, l.Limit, l.Window)
}
