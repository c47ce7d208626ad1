package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muurk/multicontroller/internal/logging"
)

// LoggerMiddleware logs each request through the shared zap logger
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logging.LogHTTPRequest(c.ClientIP(), c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// CORSMiddleware allows browser dashboards on other origins
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
