package controllers

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/cppla/posturemon/utils"
)

// Pinger is the part of the store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
	Driver() string
}

// HealthController reports liveness, process memory and store reachability.
type HealthController struct {
	store   Pinger
	started time.Time
	proc    *process.Process
}

// NewHealthController creates a new HealthController instance.
func NewHealthController(store Pinger) *HealthController {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		utils.Logger.Warn("process stats unavailable", zap.Error(err))
	}
	return &HealthController{store: store, started: time.Now(), proc: proc}
}

// Health always answers 200; a failing store ping reports status "degraded".
func (h *HealthController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status, storeState := "healthy", "ok"
	if err := h.store.Ping(pingCtx); err != nil {
		status, storeState = "degraded", "unavailable"
		utils.Logger.Warn("store ping failed", zap.String("driver", h.store.Driver()), zap.Error(err))
	}

	var rss uint64
	if h.proc != nil {
		if mem, err := h.proc.MemoryInfoWithContext(pingCtx); err == nil {
			rss = mem.RSS
		}
	}

	utils.Success(ctx, gin.H{
		"status":           status,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds":   int64(time.Since(h.started).Seconds()),
		"memory_rss_bytes": rss,
		"store":            gin.H{"driver": h.store.Driver(), "state": storeState},
	})
}
