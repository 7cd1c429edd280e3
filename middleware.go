package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"
)

// getLimiter returns a rate limiter for the given key (usually client IP).
func (app *App) getLimiter(key string) *rate.Limiter {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()
	if lim, ok := app.LimiterMap[key]; ok {
		return lim
	}

	if key == "" {
		logWarn("Rate limiter key is empty")
	}
	rps := app.Config.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	lim := rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), app.Config.RateLimitBurst)
	app.LimiterMap[key] = lim
	return lim
}

// rateLimitMiddleware returns a Gin middleware that enforces per-client rate limiting.
func (app *App) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !app.getLimiter(key).Allow() {
			if isHTMX(c) {
				c.Header("HX-Trigger", "rate-limit-exceeded")
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": MsgRateLimited})
			return
		}
		c.Next()
	}
}

// requestIDMiddleware injects a request ID into the context for each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey, reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(requestIDKey), reqID)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

// requestLogMiddleware writes one structured line per request.
func (app *App) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"ip", c.ClientIP(),
			"request_id", c.GetString(string(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			app.Log.Errorw("request", fields...)
		case status >= http.StatusBadRequest:
			app.Log.Warnw("request", fields...)
		default:
			app.Log.Infow("request", fields...)
		}
	}
}

// cacheHeadersMiddleware lets static assets be cached in production and
// marks everything else, including pronunciations, as uncacheable.
func (app *App) cacheHeadersMiddleware() gin.HandlerFunc {
	static := cachecontrol.New(cachecontrol.Config{
		Public: true,
		MaxAge: cachecontrol.Duration(app.Config.StaticCacheAge),
	})
	dynamic := cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})
	return func(c *gin.Context) {
		if app.Config.Production && strings.HasPrefix(c.Request.URL.Path, "/static/") {
			c.Header("Vary", "Accept-Encoding")
			static(c)
			return
		}
		dynamic(c)
	}
}
