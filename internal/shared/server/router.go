package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"interview-backend/internal/shared/metrics"
	"interview-backend/internal/shared/server/middleware"
	"interview-backend/internal/shared/server/respond"
)

// RouteRegistrar attaches a feature's routes to the API group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(c *gin.Context) error

// RouterDeps carries what the router needs from bootstrap.
type RouterDeps struct {
	Env             string
	CORSAllowOrigin []string
	Handlers        []RouteRegistrar
	// Health checks run on GET /health; any error yields 503.
	Health map[string]HealthFunc
	// RateLimits apply per client IP to the "CREATE" group (POST routes).
	RateLimits map[string]middleware.RateLimitRule
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.CORSAllowOrigin),
	)
	if len(deps.RateLimits) > 0 {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules: deps.RateLimits,
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost {
					return "CREATE"
				}
				return ""
			},
		}))
	}

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.Health))
	api.GET("/metrics", metrics.Handler())
	for _, h := range deps.Handlers {
		h.RegisterRoutes(api)
	}

	return r
}

func healthHandler(checks map[string]HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{}
		for name, check := range checks {
			if err := check(c); err != nil {
				status[name] = err.Error()
				continue
			}
			status[name] = "ok"
		}
		for _, v := range status {
			if v != "ok" {
				respond.Error(c, http.StatusServiceUnavailable, "unavailable", "dependency check failed", status)
				return
			}
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true, "checks": status})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
