package interceptors

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/keywatch/go-keywatch-client/global"
)

const (
	LimitRequestsPerSecond     = 5
	LimitRequestsAuthPerSecond = 1
)

func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, _ := getIP(c)
		if ip == nil {
			unkn := "unknown"
			ip = &unkn
		}

		limit := LimitRequestsPerSecond
		key := *ip

		re := regexp.MustCompile("^/api/v.*/auth$")
		if re.MatchString(c.Request.URL.Path) {
			limit = LimitRequestsAuthPerSecond
			key = key + "_auth"
		}

		hash := xxhash.Sum64String(key)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		result, err := global.RateLimiter.Allow(ctx, strconv.FormatUint(hash, 10), redis_rate.PerSecond(limit))
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, errors.New("failed to perform rate limit check"))
			return
		}
		if result.Allowed <= 0 {
			c.AbortWithError(http.StatusTooManyRequests, errors.New("too many requests"))
			return
		}

		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit.Rate))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Writer.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(result.ResetAfter.Milliseconds())))
		c.Next()
	}
}
