package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCacheAdmin struct {
	warmed   int
	warmErr  error
	clearErr error
	cleared  bool
	stats    cache.ResultCacheStats
}

func (f *fakeCacheAdmin) WarmCache(context.Context) (int, error) { return f.warmed, f.warmErr }

func (f *fakeCacheAdmin) ClearCache(context.Context) error {
	f.cleared = f.clearErr == nil
	return f.clearErr
}

func (f *fakeCacheAdmin) CacheStats() cache.ResultCacheStats { return f.stats }

func newCacheRouter(admin CacheAdmin) *gin.Engine {
	h := NewCacheHandler(admin, nil)
	router := gin.New()
	router.GET("/cache/stats", h.GetCacheStats)
	router.POST("/cache/warm", h.WarmCache)
	router.POST("/cache/clear", h.ClearCache)
	return router
}

func TestCacheHandler_GetCacheStats(t *testing.T) {
	admin := &fakeCacheAdmin{stats: cache.ResultCacheStats{Hits: 3, Misses: 1, Sets: 2}}
	w := get(newCacheRouter(admin), "/cache/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Success bool                   `json:"success"`
		Data    cache.ResultCacheStats `json:"data"`
		HitRate float64                `json:"hit_rate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, int64(3), response.Data.Hits)
	assert.Equal(t, 75.0, response.HitRate)
}

func TestCacheHandler_WarmCache(t *testing.T) {
	w := postJSON(newCacheRouter(&fakeCacheAdmin{warmed: 5}), "/cache/warm", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"warmed":5}`, w.Body.String())

	w = postJSON(newCacheRouter(&fakeCacheAdmin{warmErr: context.Canceled}), "/cache/warm", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "context canceled")
}

func TestCacheHandler_ClearCache(t *testing.T) {
	admin := &fakeCacheAdmin{}
	w := postJSON(newCacheRouter(admin), "/cache/clear", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, admin.cleared)

	w = postJSON(newCacheRouter(&fakeCacheAdmin{clearErr: errors.New("redis down")}), "/cache/clear", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "redis down")
}
