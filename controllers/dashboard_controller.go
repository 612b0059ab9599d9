package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/posturemon/services"
	"github.com/cppla/posturemon/utils"
)

// DashboardController serves the aggregated dashboard.
type DashboardController struct {
	posture *services.PostureService
}

// NewDashboardController creates a new DashboardController instance.
func NewDashboardController(posture *services.PostureService) *DashboardController {
	return &DashboardController{posture: posture}
}

// Stats returns hero totals, posture distribution, daily trends and recent sessions.
func (d *DashboardController) Stats(ctx *gin.Context) {
	days, ok := intQuery(ctx, "days", 7)
	if !ok {
		return
	}
	stats, err := d.posture.Dashboard(ctx.Request.Context(), ctx.Query("user_id"), days)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"hero_stats":           stats.HeroStats,
		"posture_distribution": stats.PostureDistribution,
		"daily_trends":         stats.DailyTrends,
		"recent_sessions":      stats.RecentSessions,
	})
}
