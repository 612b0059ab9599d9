package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/posturemon/config"
	"github.com/cppla/posturemon/controllers"
	"github.com/cppla/posturemon/metrics"
	"github.com/cppla/posturemon/middleware"
	"github.com/cppla/posturemon/services"
	"github.com/cppla/posturemon/store"
	"github.com/cppla/posturemon/utils"
)

// Deps are the long-lived objects the handlers share.
type Deps struct {
	Store   store.Store
	Posture *services.PostureService
	Rewards *services.RewardsService
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Deps) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to the app logger for panics if the access log failed to init
		r.Use(utils.RecoveryWithZap(utils.Logger, false))
	}
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	sessionController := controllers.NewSessionController(deps.Posture)
	postureController := controllers.NewPostureController(deps.Posture)
	dashboardController := controllers.NewDashboardController(deps.Posture)
	rewardsController := controllers.NewRewardsController(deps.Rewards)
	healthController := controllers.NewHealthController(deps.Store)

	limit := middleware.RateLimitMiddleware(cfg.RateLimitPerMinute)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	// served at the root as well as under /api
	r.GET("/health", healthController.Health)
	r.GET("/dashboard/stats", dashboardController.Stats)

	api := r.Group("/api")
	api.GET("/health", healthController.Health)

	sessionGroup := api.Group("/session")
	sessionGroup.POST("/start", limit, sessionController.Start)
	sessionGroup.POST("/end", limit, sessionController.End)
	sessionGroup.GET("/recent", sessionController.Recent)

	postureGroup := api.Group("/posture")
	postureGroup.POST("/log", limit, postureController.Log)
	postureGroup.GET("/report/:session_id", postureController.Report)

	api.GET("/dashboard/stats", dashboardController.Stats)

	rewardsGroup := api.Group("/rewards")
	rewardsGroup.GET("/badges", rewardsController.Badges)
	rewardsGroup.GET("/user/:user_id/achievements", rewardsController.Achievements)
	rewardsGroup.POST("/user/:user_id/award-points", limit, rewardsController.AwardPoints)
	rewardsGroup.POST("/user/:user_id/unlock-badge", limit, rewardsController.UnlockBadge)
	rewardsGroup.POST("/user/:user_id/check-achievements", limit, rewardsController.CheckAchievements)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
