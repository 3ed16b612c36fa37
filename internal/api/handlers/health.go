package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthChecker is implemented by the Postgres and Redis connections.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves the liveness, readiness and health probes.
type HealthHandler struct {
	db        HealthChecker
	cache     HealthChecker
	version   string
	startTime time.Time
	logger    *logging.StandardLogger
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	System    *SystemStats      `json:"system,omitempty"`
}

// SystemStats is a snapshot of host resource usage.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
}

// NewHealthHandler creates a health handler. db and cache may be nil when
// the deployment runs without them.
func NewHealthHandler(db, cache HealthChecker, version string, logger *logging.StandardLogger) *HealthHandler {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return &HealthHandler{
		db:        db,
		cache:     cache,
		version:   version,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck reports the state of every dependency.
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	services := map[string]string{
		"database": checkDependency(ctx, h.db),
		"cache":    checkDependency(ctx, h.cache),
	}

	overallStatus := "healthy"
	for name, status := range services {
		if status != "healthy" && status != "disabled" {
			overallStatus = "unhealthy"
			h.logger.WithComponent("health").WithField("service", name).Warn(status)
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  services,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		System:    systemStats(ctx),
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// ReadinessCheck succeeds once the database answers.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	status := checkDependency(c.Request.Context(), h.db)
	if status != "healthy" && status != "disabled" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "database": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "database": status})
}

// LivenessCheck only proves the process serves requests.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func checkDependency(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "disabled"
	}
	if err := checker.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// systemStats samples CPU and memory usage. It returns nil when the host
// does not expose them.
func systemStats(ctx context.Context) *SystemStats {
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	stats := &SystemStats{
		MemoryPercent: memInfo.UsedPercent,
		MemoryUsedMB:  memInfo.Used / 1024 / 1024,
		MemoryTotalMB: memInfo.Total / 1024 / 1024,
	}
	// Interval 0 compares against the previous call instead of sleeping.
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	return stats
}
