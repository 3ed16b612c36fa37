package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/cache"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
)

// CacheAdmin is the cache administration surface of the dashboard.
type CacheAdmin interface {
	WarmCache(ctx context.Context) (int, error)
	ClearCache(ctx context.Context) error
	CacheStats() cache.ResultCacheStats
}

// CacheHandler handles cache administration endpoints
type CacheHandler struct {
	admin  CacheAdmin
	logger *logging.StandardLogger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(admin CacheAdmin, logger *logging.StandardLogger) *CacheHandler {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return &CacheHandler{admin: admin, logger: logger}
}

// GetCacheStats returns the result cache counters
// @Summary Get cache statistics
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/admin/cache/stats [get]
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	stats := h.admin.CacheStats()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"data":     stats,
		"hit_rate": stats.HitRate(),
	})
}

// WarmCache recomputes every category
// @Summary Warm the result cache
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/admin/cache/warm [post]
func (h *CacheHandler) WarmCache(c *gin.Context) {
	warmed, err := h.admin.WarmCache(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Cache warming aborted")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "Cache warming aborted: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"warmed":  warmed,
	})
}

// ClearCache drops every cached plot and statistics entry
// @Summary Clear the result cache
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/admin/cache/clear [post]
func (h *CacheHandler) ClearCache(c *gin.Context) {
	if err := h.admin.ClearCache(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to clear cache")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to clear cache",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache cleared successfully",
	})
}
