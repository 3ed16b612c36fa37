// Package api wires the HTTP routes of the dashboard.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/annotate"
	"github.com/irfndi/prism-dashboard-go/internal/api/handlers"
	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/metrics"
	"github.com/irfndi/prism-dashboard-go/internal/middleware"
	"github.com/irfndi/prism-dashboard-go/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// DashboardAPI is the dashboard surface used by the data and admin routes.
type DashboardAPI interface {
	handlers.Dashboard
	handlers.CacheAdmin
}

// Dependencies bundles what the routes need. DB and Cache may be nil.
type Dependencies struct {
	Config    *config.Config
	DB        handlers.HealthChecker
	Cache     handlers.HealthChecker
	Dashboard DashboardAPI
	Users     handlers.UserStore
	Metrics   *metrics.Collector
	Renderer  annotate.Renderer
	Logger    *logging.StandardLogger
}

// NewRouter builds the gin engine with the shared middleware chain and every
// route.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName(deps.Config)))
	router.Use(middleware.RequestID())
	router.Use(middleware.Observability(deps.Logger, deps.Metrics))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	if deps.Config.Server.UploadLimitMB > 0 {
		router.MaxMultipartMemory = int64(deps.Config.Server.UploadLimitMB) << 20
	}

	SetupRoutes(router, deps)
	return router
}

// SetupRoutes registers the routes on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache, cfg.Telemetry.ServiceVersion, deps.Logger)
	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.JWTSecret, cfg.Security.JWTExpiryDuration())

	v1 := router.Group("/api/v1")
	{
		if deps.Users != nil {
			userHandler := handlers.NewUserHandler(deps.Users, authMiddleware, cfg.Security.BcryptCost, deps.Logger)
			auth := v1.Group("/auth")
			{
				auth.POST("/signup", userHandler.Signup)
				auth.POST("/login", userHandler.Login)
			}
		}

		uploadLimit := int64(cfg.Server.UploadLimitMB) << 20
		dataHandler := handlers.NewDataHandler(deps.Dashboard, deps.Renderer, uploadLimit, deps.Logger)
		data := v1.Group("/data")
		if cfg.Security.RequireAuth {
			data.Use(authMiddleware.RequireAuth())
		} else {
			data.Use(authMiddleware.OptionalAuth())
		}
		{
			data.GET("/statistics/:category", dataHandler.GetStatistics)
			data.GET("/plot/:category", dataHandler.GetPlot)
			data.GET("/plot/:category/image", dataHandler.GetPlotImage)
			data.POST("/add", dataHandler.AddData)
			data.POST("/custom", dataHandler.UploadCSV)
			data.POST("/analyze", dataHandler.Analyze)
		}

		adminMiddleware := middleware.NewAdminMiddleware(cfg.Security.AdminAPIKey)
		if adminMiddleware.Enabled() {
			cacheHandler := handlers.NewCacheHandler(deps.Dashboard, deps.Logger)
			admin := v1.Group("/admin", adminMiddleware.RequireAdminAuth())
			{
				admin.GET("/cache/stats", cacheHandler.GetCacheStats)
				admin.POST("/cache/warm", cacheHandler.WarmCache)
				admin.POST("/cache/clear", cacheHandler.ClearCache)
			}
		}
	}
}

func serviceName(cfg *config.Config) string {
	if cfg.Telemetry.ServiceName != "" {
		return cfg.Telemetry.ServiceName
	}
	return telemetry.ServiceName
}
