package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/transport/http/handlers"
	"github.com/passgage/auth-gateway/internal/transport/http/middleware"
)

// Deps carries everything the router wires together.
type Deps struct {
	Logger      *zap.Logger
	RPC         *handlers.RPCHandler
	Sessions    *handlers.SessionHandler
	Security    *handlers.SecurityHandler
	Health      *handlers.HealthHandler
	Admission   middleware.AdmissionChecker
	RateLimit   int
	CORSOrigins []string
	HTTPMetrics *middleware.HTTPMetrics
	Registry    *prometheus.Registry
}

// Register builds the full route tree. CORS runs first so rejected
// requests still carry the headers browsers need.
func Register(r *gin.Engine, deps Deps) {
	r.Use(middleware.CORS(deps.CORSOrigins))
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.CallerIdentity())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	r.GET("/healthz", deps.Health.Live)
	r.GET("/readyz", deps.Health.Ready)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// The RPC gateway performs admission inside the handler so rejections
	// use the JSON-RPC envelope.
	r.POST("/rpc", deps.RPC.Handle)
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		if c.Request.URL.Path == "/rpc" {
			deps.RPC.MethodNotAllowed(c)
			return
		}
		c.JSON(http.StatusMethodNotAllowed, handlers.NewErrorResponse("method not allowed", middleware.GetTraceID(c)))
	})

	admit := middleware.Admit(deps.Admission, deps.RateLimit, deps.Logger)

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions", admit)
		{
			sessions.POST("", deps.Sessions.Create)
			sessions.GET("/stats", deps.Sessions.Stats)
			sessions.GET("/:id", deps.Sessions.Get)
			sessions.POST("/:id/mode", deps.Sessions.SwitchMode)
			sessions.POST("/:id/tokens", deps.Sessions.UpdateTokens)
			sessions.DELETE("/:id", deps.Sessions.Delete)
		}

		security := v1.Group("/security")
		{
			security.GET("/events", deps.Security.Events)
			security.GET("/callers/:id", deps.Security.Caller)
		}
	}
}
