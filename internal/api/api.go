// Package api serves the Control Surface (C8): a goroutine-safe HTTP
// handler group, independent of the TCL wire protocol, that a technician
// or test harness can poll without opening the serial link. Every handler
// either reads a snapshot or calls one of the engine's existing entry
// points — it never special-cases the state machine.
package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/kcondict/paycheck4/internal/diag"
	"github.com/kcondict/paycheck4/internal/engine"
	"github.com/kcondict/paycheck4/internal/statusvec"
)

// Config controls which routes are registered.
type Config struct {
	// EnableInjection registers POST /api/v1/print and
	// POST /api/v1/status/request. The daemon sets it from its
	// enable-injection option, which defaults to false.
	EnableInjection bool
}

// Register wires the Control Surface's routes onto router, the way the
// teacher wires its own /api/v1 group onto a *gin.Engine it owns, driving
// the one *engine.Engine instance the transport adapter also drives.
func Register(router gin.IRouter, eng *engine.Engine, cfg Config, d diag.Diagnostics) {
	if d == nil {
		d = diag.NopDiagnostics{}
	}
	h := &handlers{eng: eng, diag: d, startedAt: time.Now()}

	v1 := router.Group("/api/v1")
	v1.GET("/status", h.handleStatus)
	v1.GET("/health", h.handleHealth)
	v1.GET("/job", h.handleJob)
	if cfg.EnableInjection {
		v1.POST("/print", h.handlePrint)
		v1.POST("/status/request", h.handleStatusRequest)
	}
}

type handlers struct {
	eng       *engine.Engine
	diag      diag.Diagnostics
	startedAt time.Time
}

// statusResponse decodes the five raw flag bytes into the set of named
// bits that are high, so a human reading the response never has to mask
// bits by hand.
type statusResponse struct {
	Flags1                 []string `json:"flags1"`
	Flags2                 []string `json:"flags2"`
	Flags3                 []string `json:"flags3"`
	Flags4                 []string `json:"flags4"`
	Flags5                 []string `json:"flags5"`
	JobState               string   `json:"jobState"`
	LastTemplateID         string   `json:"lastTemplateId"`
	StatusReportTemplateID string   `json:"statusReportTemplateId"`
}

func (h *handlers) handleStatus(c *gin.Context) {
	snap := h.eng.Snapshot()
	c.JSON(http.StatusOK, statusResponse{
		Flags1:                 decodeFlags1(snap.Vector.Flags1),
		Flags2:                 decodeFlags2(snap.Vector.Flags2),
		Flags3:                 decodeFlags3(snap.Vector.Flags3),
		Flags4:                 decodeFlags4(snap.Vector.Flags4),
		Flags5:                 decodeFlags5(snap.Vector.Flags5),
		JobState:               snap.JobState.String(),
		LastTemplateID:         templateIDString(snap.Vector.LastTemplateID),
		StatusReportTemplateID: templateIDString(snap.Vector.StatusReportTemplateID),
	})
}

type healthResponse struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	FramesProcessed uint64  `json:"framesProcessed"`
	FramesEmitted   uint64  `json:"framesEmitted"`
	CPUPercent      float64 `json:"cpuPercent"`
	MemPercent      float64 `json:"memPercent"`
	GoVersion       string  `json:"goVersion"`
}

func (h *handlers) handleHealth(c *gin.Context) {
	stats := h.eng.Stats()

	var cpuPercent float64
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	} else if err != nil {
		h.diag.Warnf("health check: cpu.Percent failed: %v", err)
	}

	var memPercent float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	} else {
		h.diag.Warnf("health check: mem.VirtualMemory failed: %v", err)
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:          "healthy",
		Uptime:          stats.Uptime.String(),
		FramesProcessed: stats.FramesProcessed,
		FramesEmitted:   stats.FramesEmitted,
		CPUPercent:      cpuPercent,
		MemPercent:      memPercent,
		GoVersion:       runtime.Version(),
	})
}

type jobResponse struct {
	State               string `json:"state"`
	LastPrintTemplateID string `json:"lastPrintTemplateId"`
	MainTimerPending    bool   `json:"mainTimerPending"`
	ChuteTimerPending   bool   `json:"chuteTimerPending"`
}

func (h *handlers) handleJob(c *gin.Context) {
	snap := h.eng.Snapshot()
	c.JSON(http.StatusOK, jobResponse{
		State:               snap.JobState.String(),
		LastPrintTemplateID: templateIDString(snap.Vector.LastTemplateID),
		MainTimerPending:    snap.JobPending,
		ChuteTimerPending:   snap.ChutePending,
	})
}

type printRequest struct {
	TemplateID string `json:"templateId" binding:"required"`
}

func (h *handlers) handlePrint(c *gin.Context) {
	var req printRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.TemplateID) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "templateId must be exactly one character"})
		return
	}
	accepted := h.eng.AcceptPrint(req.TemplateID[0])
	if !accepted {
		c.JSON(http.StatusConflict, gin.H{"error": "job not idle", "accepted": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (h *handlers) handleStatusRequest(c *gin.Context) {
	h.eng.RequestStatus()
	c.JSON(http.StatusOK, gin.H{"requested": true})
}

func templateIDString(b byte) string {
	if b == statusvec.NoTemplate {
		return ""
	}
	return string(b)
}

func decodeFlags1(b byte) []string {
	names := []struct {
		bit  byte
		name string
	}{
		{statusvec.Flags1VoltageError, "voltageError"},
		{statusvec.Flags1HeadError, "headError"},
		{statusvec.Flags1PaperOut, "paperOut"},
		{statusvec.Flags1PlatenUp, "platenUp"},
		{statusvec.Flags1SystemError, "systemError"},
		{statusvec.Flags1Busy, "busy"},
		{statusvec.Flags1Unmask, "unmask"},
	}
	return decodeFlagBits(b, names)
}

func decodeFlags2(b byte) []string {
	names := []struct {
		bit  byte
		name string
	}{
		{statusvec.Flags2JobMemOverflow, "jobMemOverflow"},
		{statusvec.Flags2BufferOverflow, "bufferOverflow"},
		{statusvec.Flags2LibLoadError, "libLoadError"},
		{statusvec.Flags2PrintRegionDataError, "printRegionDataError"},
		{statusvec.Flags2LibRefError, "libRefError"},
		{statusvec.Flags2TempError, "tempError"},
		{statusvec.Flags2Unmask, "unmask"},
	}
	return decodeFlagBits(b, names)
}

func decodeFlags3(b byte) []string {
	names := []struct {
		bit  byte
		name string
	}{
		{statusvec.Flags3MissingSupplyIndex, "missingSupplyIndex"},
		{statusvec.Flags3PrinterOffline, "printerOffline"},
		{statusvec.Flags3FlashProgramError, "flashProgramError"},
		{statusvec.Flags3PaperInChute, "paperInChute"},
		{statusvec.Flags3PrintLibrariesCorrupt, "printLibrariesCorrupt"},
		{statusvec.Flags3CommandError, "commandError"},
		{statusvec.Flags3Unmask, "unmask"},
	}
	return decodeFlagBits(b, names)
}

func decodeFlags4(b byte) []string {
	names := []struct {
		bit  byte
		name string
	}{
		{statusvec.Flags4PaperLow, "paperLow"},
		{statusvec.Flags4PaperJam, "paperJam"},
		{statusvec.Flags4Unmask, "unmask"},
		{statusvec.Flags4JournalPrintMode, "journalPrintMode"},
	}
	return decodeFlagBits(b, names)
}

func decodeFlags5(b byte) []string {
	names := []struct {
		bit  byte
		name string
	}{
		{statusvec.Flags5ResetPowerUp, "resetPowerUp"},
		{statusvec.Flags5BarcodeDataIsAccessed, "barcodeDataIsAccessed"},
		{statusvec.Flags5PrinterOpen, "printerOpen"},
		{statusvec.Flags5XedOff, "xedOff"},
		{statusvec.Flags5AtTopOfForm, "atTopOfForm"},
		{statusvec.Flags5ValidationDone, "validationDone"},
		{statusvec.Flags5Unmask, "unmask"},
	}
	return decodeFlagBits(b, names)
}

func decodeFlagBits(b byte, names []struct {
	bit  byte
	name string
}) []string {
	set := make([]string, 0, len(names))
	for _, n := range names {
		if b&n.bit != 0 {
			set = append(set, n.name)
		}
	}
	return set
}
