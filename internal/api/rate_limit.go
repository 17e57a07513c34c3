package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter 全局限流器,参数可在运行时调整
type RateLimiter struct {
	mu      sync.RWMutex
	enabled bool
	limiter *rate.Limiter
}

// NewRateLimiter 创建限流器
func NewRateLimiter(enabled bool, rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		enabled: enabled,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Update 更新限流参数,用于配置热加载
func (l *RateLimiter) Update(enabled bool, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
	l.limiter.SetLimit(rate.Limit(rps))
	l.limiter.SetBurst(burst)
}

// Allow 是否放行
func (l *RateLimiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.enabled || l.limiter.Allow()
}

// Middleware 限流中间件
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			Error(c, http.StatusTooManyRequests, T(c, "error.rate_limited"), "")
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware 固定参数的限流中间件
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return NewRateLimiter(true, rps, burst).Middleware()
}
