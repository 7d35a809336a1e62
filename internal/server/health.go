package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// handleHealthz reports liveness plus a coarse host snapshot. Each gopsutil
// probe is best-effort; a failing probe just leaves its field out.
func (a *API) handleHealthz(c *gin.Context) {
	resp := gin.H{"status": "ok", "time": a.now().UTC()}

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		resp["cpu_pct"] = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp["mem_pct"] = vm.UsedPercent
	}
	if info, err := host.Info(); err == nil {
		resp["host_uptime_seconds"] = info.Uptime
	}

	c.JSON(http.StatusOK, resp)
}
