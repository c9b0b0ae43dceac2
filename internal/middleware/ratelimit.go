package middleware

import (
	"context"
	"sync"
	"time"

	"dp-canteen-service/internal/apperror"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ScanLimiter throttles pickup scans per staff member. A local token bucket
// answers first; when Redis is configured a fixed-window counter shared by all
// instances caps the total. It satisfies echo's RateLimiterStore.
type ScanLimiter struct {
	mu        sync.Mutex
	local     map[string]*localBucket
	lastSweep time.Time
	idleAfter time.Duration
	rps       rate.Limit
	burst     int
	window    time.Duration
	limit     int64 // scans allowed per window across instances
	now       func() time.Time

	redis  *redis.Client
	logger *zap.Logger
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewScanLimiter returns a limiter; perSecond <= 0 disables throttling. rdb may be nil.
func NewScanLimiter(rdb *redis.Client, perSecond, burst int, window time.Duration, logger *zap.Logger) *ScanLimiter {
	limit := int64(float64(perSecond)*window.Seconds()) + int64(burst)

	// a bucket idle this long has refilled and is indistinguishable from a new one
	idleAfter := window
	if perSecond > 0 {
		if refill := time.Duration(float64(burst) / float64(perSecond) * float64(time.Second)); refill > idleAfter {
			idleAfter = refill
		}
	}

	return &ScanLimiter{
		local:     make(map[string]*localBucket),
		idleAfter: idleAfter,
		rps:       rate.Limit(perSecond),
		burst:     burst,
		window:    window,
		limit:     limit,
		now:       time.Now,
		redis:     rdb,
		logger:    logger,
	}
}

func (l *ScanLimiter) Allow(identifier string) (bool, error) {
	if l.rps <= 0 {
		return true, nil
	}

	now := l.now()
	if !l.bucket(identifier, now).AllowN(now, 1) {
		return false, nil
	}
	if l.redis == nil {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	key := "scan-limit:" + identifier
	pipe := l.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		// fail open on the shared counter; the local bucket still applies
		l.logger.Warn("scan limiter redis unavailable, using local limit only", zap.Error(err))
		return true, nil
	}

	if incr.Val() > l.limit {
		l.logger.Warn("scan limit exceeded", zap.String("identifier", identifier), zap.Int64("count", incr.Val()))
		return false, nil
	}
	return true, nil
}

func (l *ScanLimiter) bucket(identifier string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idleAfter {
		for id, b := range l.local {
			if now.Sub(b.lastSeen) >= l.idleAfter {
				delete(l.local, id)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.local[identifier]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.local[identifier] = b
	}
	b.lastSeen = now
	return b.limiter
}

// tracked reports how many callers currently hold a local bucket.
func (l *ScanLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.local)
}

// ScanRateLimit applies the limiter keyed by the authenticated user, or the client IP before authentication.
func ScanRateLimit(store echomw.RateLimiterStore) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if actor, err := ActorFrom(c); err == nil {
				return "user:" + actor.UserID, nil
			}
			return "ip:" + c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperror.Wrap(apperror.KindForbidden, "could not identify caller", err)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return apperror.New(apperror.KindRateLimited, "too many scans, slow down")
		},
	})
}
