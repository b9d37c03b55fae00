package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
)

type visitor struct {
	limiter     *rate.Limiter
	lastSeen    time.Time
	strikes     int
	strikeStart time.Time
	bannedUntil time.Time
}

// RateLimiter holds one token bucket per client IP. An IP throttled
// BanThreshold times within BanWindow is refused outright for BanDuration.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	limit   rate.Limit
	burst   int
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to burst.
func NewRateLimiter(cfg config.RateLimitConfig, rps float64, burst int, m *metrics.Collector, log *zap.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		cfg:      cfg,
		limit:    rate.Limit(rps),
		burst:    burst,
		metrics:  m,
		log:      log,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
}

// NewGlobalLimiter applies the per-IP request rate to every route.
func NewGlobalLimiter(cfg config.RateLimitConfig, m *metrics.Collector, log *zap.Logger) *RateLimiter {
	return NewRateLimiter(cfg, cfg.RequestsPerSecond, cfg.BurstSize, m, log)
}

// NewAuthLimiter is the stricter per-minute budget for credential endpoints.
func NewAuthLimiter(cfg config.RateLimitConfig, m *metrics.Collector, log *zap.Logger) *RateLimiter {
	perMinute := cfg.AuthRequestsPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	return NewRateLimiter(cfg, float64(perMinute)/60, perMinute, m, log)
}

// Run sweeps idle entries until ctx is done or Close is called.
func (rl *RateLimiter) Run(ctx context.Context) {
	interval := rl.cfg.EntryTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// sweep drops visitors idle for longer than EntryTTL whose ban has expired.
func (rl *RateLimiter) sweep() int {
	ttl := rl.cfg.EntryTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > ttl && !now.Before(v.bannedUntil) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

type verdict struct {
	allowed    bool
	banned     bool
	retryAfter time.Duration
}

func (rl *RateLimiter) check(ip string) verdict {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	if now.Before(v.bannedUntil) {
		return verdict{banned: true, retryAfter: v.bannedUntil.Sub(now)}
	}

	r := v.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if r.OK() && delay == 0 {
		return verdict{allowed: true}
	}
	r.CancelAt(now)

	if rl.cfg.BanThreshold > 0 {
		if v.strikeStart.IsZero() || now.Sub(v.strikeStart) > rl.cfg.BanWindow {
			v.strikeStart = now
			v.strikes = 0
		}
		v.strikes++
		if v.strikes >= rl.cfg.BanThreshold {
			v.bannedUntil = now.Add(rl.cfg.BanDuration)
			v.strikes = 0
			v.strikeStart = time.Time{}
			rl.log.Warn("client banned after repeated throttling",
				zap.String("client_ip", ip),
				zap.Duration("duration", rl.cfg.BanDuration),
			)
			return verdict{banned: true, retryAfter: rl.cfg.BanDuration}
		}
	}
	if !r.OK() || delay <= 0 {
		delay = time.Second
	}
	return verdict{retryAfter: delay}
}

// Middleware rejects throttled or banned clients with 429 and Retry-After.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	limitHeader := strconv.FormatFloat(float64(rl.limit), 'f', -1, 64)
	return func(c *gin.Context) {
		v := rl.check(c.ClientIP())
		c.Header("X-RateLimit-Limit", limitHeader)
		if v.allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(v.retryAfter.Seconds()))))
		c.Header("X-RateLimit-Remaining", "0")
		if v.banned {
			rl.metrics.RateLimitRejections.WithLabelValues("banned").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, client temporarily banned", "code": "IP_BANNED"})
			return
		}
		rl.metrics.RateLimitRejections.WithLabelValues("throttled").Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "code": "RATE_LIMITED"})
	}
}
