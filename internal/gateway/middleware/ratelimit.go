package middleware

import (
	"codegame/internal/gateway/service"
	"codegame/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware rejects requests once the buckets run dry.
func RateLimitMiddleware(rateService *service.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateService == nil {
			c.Next()
			return
		}
		if err := rateService.Allow(c.ClientIP()); err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
