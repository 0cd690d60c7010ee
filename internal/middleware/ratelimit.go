package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments key and returns the new count. ttl bounds how long the
// key lives after its first increment.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounter is a Counter shared by every API instance.
type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr runs INCR and EXPIRE in one MULTI/EXEC.
func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimit is a fixed-window limiter keyed by client IP.
//
// Each window has its own key, ratelimit:<name>:<ip>:<window start>, which
// expires once the window is over.
type RateLimit struct {
	counter Counter
	name    string
	limit   int
	period  time.Duration
	message string
	logger  *slog.Logger
	now     func() time.Time
}

// NewRateLimit returns a limiter allowing limit requests per period. A nil
// counter disables limiting: requests pass straight through.
func NewRateLimit(counter Counter, name string, limit int, period time.Duration, message string, logger *slog.Logger) *RateLimit {
	return &RateLimit{
		counter: counter,
		name:    name,
		limit:   limit,
		period:  period,
		message: message,
		logger:  logger,
		now:     time.Now,
	}
}

// Handler enforces the limit. Counter failures let the request through: an
// unavailable limiter must not take the API down with it.
func (l *RateLimit) Handler(next http.Handler) http.Handler {
	if l.counter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		windowStart := now.Truncate(l.period)
		key := l.key(clientIP(r), windowStart)

		count, err := l.counter.Incr(r.Context(), key, l.period)
		if err != nil {
			l.logger.Warn("rate limiter unavailable",
				slog.String("limiter", l.name),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		reset := windowStart.Add(l.period).Sub(now)
		remaining := max(l.limit-int(count), 0)
		w.Header().Set("RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(int(reset.Seconds())))

		if count > int64(l.limit) {
			w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())))
			writeFailure(w, http.StatusTooManyRequests, l.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimit) key(ip string, windowStart time.Time) string {
	return "ratelimit:" + l.name + ":" + ip + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already replaced it with the proxy-reported address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
