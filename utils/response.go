package utils

import "github.com/gin-gonic/gin"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Error   string `json:"error"`
}

// Respond writes payload as a flat JSON object with the success flag set.
func Respond(ctx *gin.Context, status int, payload gin.H) {
	body := make(gin.H, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	ctx.JSON(status, body)
}

// Success returns a standard 200 response.
func Success(ctx *gin.Context, payload gin.H) {
	Respond(ctx, 200, payload)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, ErrorResponse{
		Success: false,
		Code:    code,
		Error:   message,
	})
}
