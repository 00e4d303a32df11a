package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether one more request from key fits in the current window
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Limit() int
}

// MemoryLimiter is a fixed-window limiter for single-instance deployments
type MemoryLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

type window struct {
	count int
	start time.Time
}

// NewMemoryLimiter creates a limiter allowing limit requests per window
func NewMemoryLimiter(limit int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		window:  win,
		now:     time.Now,
	}
}

// Limit returns the per-window request budget
func (l *MemoryLimiter) Limit() int { return l.limit }

// Allow counts the request against key. Expired windows are pruned lazily.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= l.window {
		if len(l.clients) > 10000 {
			l.prune(now)
		}
		l.clients[key] = &window{count: 1, start: now}
		return true, l.limit - 1, nil
	}
	if w.count >= l.limit {
		return false, 0, nil
	}
	w.count++
	return true, l.limit - w.count, nil
}

func (l *MemoryLimiter) prune(now time.Time) {
	for key, w := range l.clients {
		if now.Sub(w.start) >= l.window {
			delete(l.clients, key)
		}
	}
}

// RedisLimiter shares the window across instances with INCR + EXPIRE
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a limiter backed by client
func NewRedisLimiter(client redis.UniversalClient, limit int, win time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ledger:ratelimit:", limit: limit, window: win}
}

// Limit returns the per-window request budget
func (l *RedisLimiter) Limit() int { return l.limit }

// Allow increments the counter for key, starting the window on first use
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	rk := l.prefix + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, rk)
	pipe.ExpireNX(ctx, rk, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, l.limit, err
	}
	count := int(incr.Val())
	if count > l.limit {
		return false, 0, nil
	}
	return true, l.limit - count, nil
}

// RateLimitKey prefers the authenticated company and user, falling back to
// the client IP for anonymous routes.
func RateLimitKey(c *gin.Context) string {
	if actor, ok := GetActor(c); ok {
		return actor.CompanyID.String() + ":" + actor.UserID.String()
	}
	return "ip:" + c.ClientIP()
}

// RateLimit enforces limiter per RateLimitKey. A limiter backend error lets
// the request through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := RateLimitKey(c)
		allowed, remaining, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("Rate limiter unavailable", zap.Error(err))
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				c.GetString(logger.GinRequestIDKey),
			))
			return
		}
		c.Next()
	}
}
