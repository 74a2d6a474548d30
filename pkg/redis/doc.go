// Package redis connects to Redis with github.com/redis/go-redis/v9. The
// connection is optional: the rate limiter uses it when REDIS_URL is set.
package redis
