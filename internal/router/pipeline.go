package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-ddd-ecommerce/config"
	"github.com/oksasatya/go-ddd-ecommerce/internal/interface/middleware"
)

// PipelineConfig holds the request pipeline settings shared by every route.
type PipelineConfig struct {
	CORSOrigins     []string
	MaxBodyBytes    int64
	MaxUploadBytes  int64
	RateLimitWindow time.Duration
	RateLimitMax    int
	BypassPrivateIP bool
	SecureHeaders   bool
	AccessLog       bool
	// Unlimited paths skip the global limiter.
	Unlimited []string
}

func PipelineFromConfig(c *config.Config) PipelineConfig {
	return PipelineConfig{
		CORSOrigins:     c.CORSOrigins(),
		MaxBodyBytes:    c.MaxBodyBytes,
		MaxUploadBytes:  c.MaxUploadBytes,
		RateLimitWindow: c.RateLimitWindow,
		RateLimitMax:    c.RateLimitMax,
		BypassPrivateIP: c.RateLimitBypassPrivate,
		SecureHeaders:   c.SecureHeadersEnabled,
		AccessLog:       c.HTTPLogEnabled,
		Unlimited:       []string{"/api/health"},
	}
}

// NewEngine builds the gin engine with the global middleware chain.
func NewEngine(p PipelineConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	if len(p.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     p.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", "Authorization", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if p.SecureHeaders {
		r.Use(middleware.SecureHeaders())
	}
	if p.AccessLog {
		r.Use(gin.Logger())
	}
	return r
}

// APIMiddleware returns the chain applied to the /api group: body limits, then the per-IP limiter.
func APIMiddleware(p PipelineConfig, rdb redis.Scripter) []gin.HandlerFunc {
	var allow middleware.AllowFunc = middleware.AllowPaths(p.Unlimited...)
	if p.BypassPrivateIP {
		allow = middleware.AnyAllow(allow, middleware.AllowPrivateIP())
	}
	return []gin.HandlerFunc{
		middleware.BodyLimit(p.MaxBodyBytes, p.MaxUploadBytes),
		middleware.RateLimit(rdb, p.RateLimitMax, p.RateLimitWindow, middleware.KeyByIP(), allow),
	}
}
