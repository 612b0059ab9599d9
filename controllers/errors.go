package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/posturemon/services"
	"github.com/cppla/posturemon/utils"
)

// Error codes returned in the envelope alongside the HTTP status.
const (
	codeInvalidInput    = 40001
	codeSessionEnded    = 40002
	codeAlreadyUnlocked = 40003
	codeUnknownBadge    = 40004
	codeNotFound        = 40401
	codeUserNotFound    = 40402
	codeInternal        = 50001
)

// respondError maps service errors onto the JSON error envelope.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, codeInvalidInput, err.Error())
	case errors.Is(err, services.ErrSessionEnded):
		utils.Error(ctx, http.StatusBadRequest, codeSessionEnded, "Session already ended")
	case errors.Is(err, services.ErrAlreadyUnlocked):
		utils.Error(ctx, http.StatusBadRequest, codeAlreadyUnlocked, "Badge already unlocked")
	case errors.Is(err, services.ErrUnknownBadge):
		utils.Error(ctx, http.StatusBadRequest, codeUnknownBadge, "Invalid badge ID")
	case errors.Is(err, services.ErrUserNotFound):
		utils.Error(ctx, http.StatusNotFound, codeUserNotFound, "User not found")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, codeNotFound, "Session not found")
	default:
		utils.Logger.Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.String(utils.RequestIDKey, ctx.GetString(utils.RequestIDKey)),
			zap.Error(err),
		)
		utils.Error(ctx, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

// bindOptionalJSON decodes the body into dst; an empty body leaves dst untouched.
func bindOptionalJSON(ctx *gin.Context, dst interface{}) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(ctx, http.StatusBadRequest, codeInvalidInput, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
