package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/posturemon/rewards"
	"github.com/cppla/posturemon/services"
	"github.com/cppla/posturemon/utils"
)

// RewardsController exposes points, levels and badges.
type RewardsController struct {
	rewards *services.RewardsService
}

// NewRewardsController creates a new controller instance.
func NewRewardsController(svc *services.RewardsService) *RewardsController {
	return &RewardsController{rewards: svc}
}

type awardPointsRequest struct {
	Points    int    `json:"points"`
	Reason    string `json:"reason"`
	SessionID string `json:"session_id"`
}

type unlockBadgeRequest struct {
	BadgeID string `json:"badge_id"`
}

// Achievements returns the user's level progress, badges and recent ledger.
func (r *RewardsController) Achievements(ctx *gin.Context) {
	sum, err := r.rewards.Achievements(ctx.Request.Context(), ctx.Param("user_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"user_id":              sum.UserID,
		"total_points":         sum.TotalPoints,
		"level":                sum.Level,
		"next_level_points":    sum.NextLevelPoints,
		"points_to_next_level": sum.PointsToNextLevel,
		"unlocked_badges":      sum.UnlockedBadges,
		"locked_badges":        sum.LockedBadges,
		"points_history":       sum.PointsHistory,
		"stats":                sum.Stats,
	})
}

// AwardPoints credits (or debits) points to the user.
func (r *RewardsController) AwardPoints(ctx *gin.Context) {
	var req awardPointsRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}
	entry, total, err := r.rewards.Award(ctx.Request.Context(), ctx.Param("user_id"), req.Points, req.Reason, req.SessionID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"points_awarded": entry.Points,
		"new_total":      total,
		"reason":         entry.Reason,
	})
}

// UnlockBadge grants a catalog badge to an existing achievement record.
func (r *RewardsController) UnlockBadge(ctx *gin.Context) {
	var req unlockBadgeRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}
	badge, total, err := r.rewards.Unlock(ctx.Request.Context(), ctx.Param("user_id"), req.BadgeID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"badge":          badge,
		"points_awarded": badge.Points,
		"new_total":      total,
	})
}

// CheckAchievements evaluates the badge rules and grants what was newly earned.
func (r *RewardsController) CheckAchievements(ctx *gin.Context) {
	badges, err := r.rewards.CheckAchievements(ctx.Request.Context(), ctx.Param("user_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"new_badges": badges})
}

// Badges lists the badge catalog.
func (r *RewardsController) Badges(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"badges": rewards.Catalog()})
}
