package routes

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/apperrors"
	"github.com/MouadFiali/gke-cloud-project/controllers"
	"github.com/MouadFiali/gke-cloud-project/logger"
	"github.com/MouadFiali/gke-cloud-project/middleware"
)

type RouterConfig struct {
	ServiceName string
	JWTSecret   []byte
	RateLimiter *middleware.RateLimiter
	Metrics     middleware.HTTPMetrics
	Logger      *zap.Logger

	// AllowedOrigins enables CORS for browser clients when non-empty.
	AllowedOrigins []string

	// RequestTimeout bounds the request context; zero disables it.
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with the shared middleware chain and the
// cart routes registered.
func NewRouter(controller *controllers.CartController, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		logger.RequestID(),
		logger.RequestLogger(cfg.Logger),
		middleware.MetricsMiddleware(cfg.Metrics, cfg.ServiceName),
		apperrors.ErrorMiddleware(),
	)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-ID", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(func(c *gin.Context) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
			defer cancel()
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}

	r.GET("/health", controller.Health)

	internal := r.Group("/internal")
	internal.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	internal.POST("/stats/flush", controller.FlushStats)

	RegisterCartRoutes(r, controller, cfg)
	return r
}

func RegisterCartRoutes(r *gin.Engine, controller *controllers.CartController, cfg RouterConfig) {
	api := r.Group("/cart")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Middleware())
	}
	{
		api.GET("", controller.GetCart)
		api.POST("/items", controller.AddItem)
		api.DELETE("", controller.EmptyCart)
	}
}
