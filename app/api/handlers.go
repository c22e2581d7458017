package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/store"
	"github.com/lysyi3m/badge-comb/app/tasks"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = store.MaxRuns
)

func NewHandler(scheduler tasks.TaskSchedulerInterface, repo store.Repository, page PageView, version string) *Handler {
	return &Handler{
		scheduler: scheduler,
		repo:      repo,
		page:      page,
		version:   version,
	}
}

// PostMessage is the external command channel. A recognised action is always
// acknowledged; whether a run follows is up to the scheduler's gate.
func (h *Handler) PostMessage(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Invalid message body"})
		return
	}

	switch msg.Action {
	case ActionRefreshCounts:
		if err := h.scheduler.Request(tasks.TriggerManual); err != nil {
			slog.Warn("Refresh request dropped", "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Unknown action"})
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	_, err := h.page.HTML()
	health["page_loaded"] = err == nil

	if runCount, err := h.repo.GetRunCount(); err == nil {
		health["runs"] = runCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	status := h.scheduler.Status()

	stats := map[string]interface{}{
		"runs":         status.Runs,
		"min_interval": status.MinInterval.String(),
	}
	if !status.LastRun.IsZero() {
		stats["last_run_at"] = status.LastRun.Format(time.RFC3339)
		stats["next_allowed_at"] = status.NextAllowed.Format(time.RFC3339)
	}

	if counts, err := h.repo.GetListCounts(); err == nil {
		byStatus := map[store.ListStatus]int{}
		for _, lc := range counts {
			byStatus[lc.Status]++
		}
		stats["lists"] = map[string]interface{}{
			"total":      len(counts),
			"reconciled": byStatus[store.ListStatusReconciled],
			"unchanged":  byStatus[store.ListStatusUnchanged],
			"skipped":    byStatus[store.ListStatusSkipped],
		}
	} else {
		slog.Error("Database error", "operation", "get_list_counts", "error", err)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetView(c *gin.Context) {
	markup, err := h.page.HTML()
	if err != nil {
		if errors.Is(err, dom.ErrNoDocument) {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		slog.Error("Page render error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(markup)), "<!doctype") {
		markup = "<!DOCTYPE html>" + markup
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, markup)
}

func (h *Handler) APIListCounts(c *gin.Context) {
	counts, err := h.repo.GetListCounts()
	if err != nil {
		slog.Error("Database error", "operation", "get_list_counts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]map[string]interface{}, 0, len(counts))
	for _, lc := range counts {
		info := map[string]interface{}{
			"id":         lc.ListID,
			"name":       lc.Name,
			"displayed":  lc.Displayed,
			"resolved":   lc.Resolved,
			"status":     lc.Status,
			"source":     lc.Source,
			"checked_at": lc.CheckedAt.Format(time.RFC3339),
		}
		if lc.ChangedAt != nil {
			info["changed_at"] = lc.ChangedAt.Format(time.RFC3339)
		}
		result = append(result, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"lists": result,
		"total": len(result),
	})
}

func (h *Handler) APIListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.repo.GetRecentRuns(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]map[string]interface{}, 0, len(runs))
	for _, r := range runs {
		result = append(result, map[string]interface{}{
			"id":          r.ID,
			"trigger":     r.Cause,
			"started_at":  r.StartedAt.Format(time.RFC3339),
			"finished_at": r.FinishedAt.Format(time.RFC3339),
			"duration":    r.FinishedAt.Sub(r.StartedAt).String(),
			"lists":       r.Lists,
			"updated":     r.Updated,
			"skipped":     r.Skipped,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  result,
		"total": len(result),
	})
}
