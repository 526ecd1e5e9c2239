package middleware

import (
	"net/http"

	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	limitergin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const rateLimitKeyPrefix = "ledger:ratelimit"

// NewRateLimiter builds a limiter for a "<limit>-<period>" rate such as "600-M".
// Counters live in redis when a client is given so every instance shares them.
func NewRateLimiter(rate string, client *redis.Client) (*limiter.Limiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}

	opts := limiter.StoreOptions{Prefix: rateLimitKeyPrefix, CleanUpInterval: limiter.DefaultCleanUpInterval}
	var store limiter.Store
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return limiter.New(store, parsed), nil
}

// RateLimitKey identifies the caller: the acting user when one is named, the client IP otherwise
func RateLimitKey(c *gin.Context) string {
	key := c.ClientIP()
	if user := userIDOf(c); user != "" {
		key = "user:" + user + ":" + key
	}
	return key
}

// RateLimit rejects callers over the limit with a 429 in the API envelope.
// A failing limiter store answers 503.
func RateLimit(l *limiter.Limiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return limitergin.NewMiddleware(l,
		limitergin.WithKeyGetter(RateLimitKey),
		limitergin.WithLimitReachedHandler(func(c *gin.Context) {
			logger.Warn("Rate limit exceeded",
				zap.String("key", RateLimitKey(c)),
				zap.String("path", c.FullPath()),
			)
			c.JSON(http.StatusTooManyRequests, dto.NewErrorResponse(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
			))
		}),
		limitergin.WithErrorHandler(func(c *gin.Context, err error) {
			logger.Error("Rate limiter store failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(
				dto.ErrCodeDependency,
				"Rate limiter unavailable",
			))
		}),
	)
}
