package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/posturemon/services"
	"github.com/cppla/posturemon/utils"
)

// PostureController records posture checks and serves session reports.
type PostureController struct {
	posture *services.PostureService
}

// NewPostureController creates a new controller instance.
func NewPostureController(posture *services.PostureService) *PostureController {
	return &PostureController{posture: posture}
}

type postureLogRequest struct {
	SessionID       string   `json:"session_id"`
	PostureStatus   string   `json:"posture_status"`
	LeftAngle       *float64 `json:"left_angle"`
	RightAngle      *float64 `json:"right_angle"`
	TotalAngle      *float64 `json:"total_angle"`
	Issues          []string `json:"issues"`
	Feedback        *string  `json:"feedback"`
	WasCorrected    bool     `json:"was_corrected"`
	DurationSeconds *float64 `json:"duration_seconds"`
}

// Log stores one posture check and updates the session counters.
func (p *PostureController) Log(ctx *gin.Context) {
	var req postureLogRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}
	entry, err := p.posture.LogPosture(ctx.Request.Context(), services.PostureInput{
		SessionID:       req.SessionID,
		PostureStatus:   req.PostureStatus,
		LeftAngle:       req.LeftAngle,
		RightAngle:      req.RightAngle,
		TotalAngle:      req.TotalAngle,
		Issues:          req.Issues,
		Feedback:        req.Feedback,
		WasCorrected:    req.WasCorrected,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, gin.H{
		"log_id":  entry.ID,
		"message": "Posture logged",
	})
}

// Report returns a session with all of its posture checks.
func (p *PostureController) Report(ctx *gin.Context) {
	report, err := p.posture.SessionReport(ctx.Request.Context(), ctx.Param("session_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"session": report.Session,
		"logs":    report.Logs,
	})
}
