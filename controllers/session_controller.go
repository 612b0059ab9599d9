package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/posturemon/services"
	"github.com/cppla/posturemon/utils"
)

// SessionController handles monitoring session lifecycle endpoints.
type SessionController struct {
	posture *services.PostureService
}

// NewSessionController creates a new controller instance.
func NewSessionController(posture *services.PostureService) *SessionController {
	return &SessionController{posture: posture}
}

type startSessionRequest struct {
	UserID string `json:"user_id"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

// Start opens a new session for the given (or default) user.
func (s *SessionController) Start(ctx *gin.Context) {
	var req startSessionRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}
	sess, err := s.posture.StartSession(ctx.Request.Context(), req.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"message":    "Session started",
	})
}

// End closes an open session.
func (s *SessionController) End(ctx *gin.Context) {
	var req endSessionRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}
	if err := s.posture.EndSession(ctx.Request.Context(), req.SessionID); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "Session ended"})
}

// Recent lists the newest sessions of a user.
func (s *SessionController) Recent(ctx *gin.Context) {
	limit, ok := intQuery(ctx, "limit", 10)
	if !ok {
		return
	}
	sessions, err := s.posture.RecentSessions(ctx.Request.Context(), ctx.Query("user_id"), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"sessions": sessions})
}

// intQuery reads an integer query parameter, answering 400 when it does not parse.
func intQuery(ctx *gin.Context, key string, def int) (int, bool) {
	raw, present := ctx.GetQuery(key)
	if !present || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, codeInvalidInput, key+" must be an integer")
		return 0, false
	}
	return v, true
}
