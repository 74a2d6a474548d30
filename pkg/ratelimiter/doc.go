// Package ratelimiter implements a token bucket limiter with an in-memory
// store and a Redis store (github.com/redis/go-redis/v9) whose refill and
// consume step runs as a single Lua script. The HTTP middleware guards the
// enhancement endpoint per authenticated user.
package ratelimiter
