package httpimpl

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	rateLimiterIdleTTL  = 10 * time.Minute
	rateLimiterCapacity = 100_000
)

// rateLimitMiddleware gives every client IP its own token bucket. Idle buckets expire, and when the cache is
// full the least recently used client starts over with a fresh bucket.
func rateLimitMiddleware(perSecond float64, burst int) echo.MiddlewareFunc {
	if burst < 1 {
		burst = 1
	}

	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](rateLimiterIdleTTL),
		ttlcache.WithCapacity[string, *rate.Limiter](rateLimiterCapacity),
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			item, _ := limiters.GetOrSet(c.RealIP(), rate.NewLimiter(rate.Limit(perSecond), burst))

			if !item.Value().Allow() {
				return sendTooManyRequests(c)
			}

			return next(c)
		}
	}
}
