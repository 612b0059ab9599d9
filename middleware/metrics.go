package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/posturemon/metrics"
)

// Metrics records request counts and latency per matched route.
func Metrics() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		done := metrics.RequestStarted(ctx.Request.Method, ctx.FullPath())
		ctx.Next()
		done(ctx.Writer.Status())
	}
}
