package web

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"splitbook/db/db"
)

type ginContextKey string

// GinContextKeyValue is the request-context key under which the gin context
// is stored for code running below the HTTP layer.
const GinContextKeyValue ginContextKey = "GinContextKey"

func CorsConfig() cors.Config {
	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConf.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConf.AllowCredentials = true
	corsConf.MaxAge = 1 * 3600 // 1 hours
	return corsConf
}

func limiterMiddleWare() gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Hour,
		Limit:  1000, // 1000 requests per hour
	}
	store := memory.NewStore()
	instance := limiter.New(store, rate)
	middleware := mgin.NewMiddleware(instance)

	return middleware
}

func GinContextToContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), GinContextKeyValue, c)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func GroupDataLoaderInjectionMiddleware(wrapper db.GroupDBWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := *db.NewGroupDataLoader(wrapper)
		c.Set(string(db.DataLoaderKeyGroupData), &loader)
		c.Next()
	}
}

func setupMiddlewares(r *gin.Engine, dbWrapper db.GroupDBWrapper) {
	r.Use(limiterMiddleWare())
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(cors.New(CorsConfig()))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(secure.New(secure.Config{
		STSSeconds:           31536000, // 1 year
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "strict-origin-when-cross-origin",
	}))
	r.Use(GinContextToContextMiddleware())
	r.Use(GroupDataLoaderInjectionMiddleware(dbWrapper))
}
