package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/response"
)

// NewRateLimitPerIP ограничивает RPS для каждого IP. Лимитер живёт в LRU не дольше
// entryTTL, после чего IP начинает с полного бакета.
// Ключ берётся из c.ClientIP(), поэтому движку нужен SetTrustedProxies: по умолчанию
// gin верит X-Forwarded-For от любого клиента.
func NewRateLimitPerIP(limit, burst, cacheSize int, entryTTL time.Duration) gin.HandlerFunc {
	visitors := expirable.NewLRU[string, *rate.Limiter](cacheSize, nil, entryTTL)

	return func(c *gin.Context) {
		host := c.ClientIP()

		lim, found := visitors.Get(host)
		if !found {
			lim = rate.NewLimiter(rate.Limit(limit), burst)
			// гонка двух первых запросов одного IP даёт максимум лишний бакет
			visitors.Add(host, lim)
		}

		if !lim.Allow() {
			response.Abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
