package webserver

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/export"
	"github.com/stake-plus/hermes/src/logging"
	"github.com/stake-plus/hermes/src/types"
)

const (
	dashboardLimit = 100
	defaultLimit   = 20
	maxLimit       = 100
	listingTTL     = 15 * time.Second
)

var periods = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"all": 0,
}

type Reports struct {
	store *data.ReportStore
	cache *data.Cache
	log   *logging.Logger
}

func NewReports(store *data.ReportStore, cache *data.Cache, log *logging.Logger) Reports {
	return Reports{store: store, cache: cache, log: log}
}

type dashboardResponse struct {
	Items     []types.Report `json:"items"`
	Stats     data.Stats     `json:"stats"`
	Timestamp time.Time      `json:"timestamp"`
}

func (r Reports) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	key := r.cache.ListKey(ctx, "dashboard")
	var resp dashboardResponse
	if key != "" && r.cache.GetJSON(ctx, key, &resp) {
		c.JSON(http.StatusOK, resp)
		return
	}

	items, err := r.store.Recent(ctx, dashboardLimit)
	if err == nil {
		resp.Stats, err = r.store.Stats(ctx)
	}
	if err != nil {
		if dbUnavailable(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Database not available",
				"items": []types.Report{},
				"stats": data.Stats{},
			})
			return
		}
		r.log.Error("dashboard query failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dashboard data", "items": []types.Report{}})
		return
	}

	resp.Items = nonNil(items)
	resp.Timestamp = time.Now().UTC()
	r.cacheListing(c, key, resp)
	c.JSON(http.StatusOK, resp)
}

type trendingResponse struct {
	Items     []types.Report `json:"items"`
	Period    string         `json:"period"`
	SortBy    string         `json:"sortBy"`
	Count     int            `json:"count"`
	Timestamp time.Time      `json:"timestamp"`
}

func (r Reports) Trending(c *gin.Context) {
	ctx := c.Request.Context()
	period := c.DefaultQuery("period", "24h")
	window, ok := periods[period]
	if !ok {
		period, window = "24h", periods["24h"]
	}
	sortBy := c.DefaultQuery("sortBy", data.SortUpvotes)
	switch sortBy {
	case data.SortUpvotes, data.SortRecent, data.SortConfidence:
	default:
		sortBy = data.SortUpvotes
	}
	limit := parseLimit(c.Query("limit"))

	key := r.cache.ListKey(ctx, fmt.Sprintf("trending:%s:%s:%d", period, sortBy, limit))
	var resp trendingResponse
	if key != "" && r.cache.GetJSON(ctx, key, &resp) {
		c.JSON(http.StatusOK, resp)
		return
	}

	since := time.Unix(0, 0)
	if window > 0 {
		since = time.Now().Add(-window)
	}
	items, err := r.store.Trending(ctx, data.TrendingQuery{Since: since, SortBy: sortBy, Limit: limit})
	if err != nil {
		if dbUnavailable(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not available", "items": []types.Report{}})
			return
		}
		r.log.Error("trending query failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trending data", "items": []types.Report{}})
		return
	}

	resp = trendingResponse{
		Items:     nonNil(items),
		Period:    period,
		SortBy:    sortBy,
		Count:     len(items),
		Timestamp: time.Now().UTC(),
	}
	r.cacheListing(c, key, resp)
	c.JSON(http.StatusOK, resp)
}

func (r Reports) Upvote(c *gin.Context) {
	var req struct {
		ID     string `json:"id"`
		ItemID string `json:"itemId"`
	}
	_ = c.ShouldBindJSON(&req)
	id := req.ID
	if id == "" {
		id = req.ItemID
	}
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item ID is required"})
		return
	}

	ctx := c.Request.Context()
	if err := r.store.Upvote(ctx, id); err != nil {
		switch {
		case errors.Is(err, data.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		case dbUnavailable(err):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not available"})
		default:
			r.log.Error("upvote failed", "id", id, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record upvote"})
		}
		return
	}
	if err := r.cache.InvalidateLists(ctx); err != nil {
		r.log.Debug("listing cache invalidation failed", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Upvote recorded"})
}

func (r Reports) Export(c *gin.Context) {
	now := time.Now()
	reports, err := export.Collect(c.Request.Context(), r.store, now)
	if err != nil {
		if dbUnavailable(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not available"})
			return
		}
		r.log.Error("export failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate export"})
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, reports); err != nil {
		r.log.Error("export encode failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate export"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(now)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (r Reports) Cluster(c *gin.Context) {
	id := c.Param("id")
	members, err := r.store.ClusterMembers(c.Request.Context(), id)
	if err != nil {
		if dbUnavailable(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not available"})
			return
		}
		r.log.Error("cluster query failed", "cluster", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cluster"})
		return
	}
	if len(members) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cluster not found"})
		return
	}

	resp := gin.H{
		"clusterId":     id,
		"allVariations": members,
		"count":         len(members),
	}
	// ClusterMembers orders the head first.
	if head := members[0]; head.IsClusterHead {
		resp["head"] = head
		resp["messageTemplate"] = head.MessageTemplate
		resp["variations"] = head.Variations
	}
	c.JSON(http.StatusOK, resp)
}

func (r Reports) cacheListing(c *gin.Context, key string, v interface{}) {
	if key == "" {
		return
	}
	if err := r.cache.SetJSON(c.Request.Context(), key, v, listingTTL); err != nil {
		r.log.Debug("listing cache write failed", "key", key, "err", err)
	}
}

func dbUnavailable(err error) bool {
	return errors.Is(err, data.ErrNoDatabase) || errors.Is(err, data.ErrConnect)
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func nonNil(items []types.Report) []types.Report {
	if items == nil {
		return []types.Report{}
	}
	return items
}
