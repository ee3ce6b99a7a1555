// Package handler implements the read-only ops API. It exposes the state of
// past ingestion runs: file records, process logs and aggregate stats.
// Nothing here mutates storage; ingestion happens only through the
// scheduler.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fileflow/ingestd/internal/gateway"
	"github.com/fileflow/ingestd/internal/response"
	"github.com/fileflow/ingestd/internal/scheduler"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// OpsHandler serves audit and health endpoints.
type OpsHandler struct {
	gw    gateway.Gateway
	sched *scheduler.Scheduler
}

// NewOpsHandler creates the ops API handler.
func NewOpsHandler(gw gateway.Gateway, sched *scheduler.Scheduler) *OpsHandler {
	return &OpsHandler{gw: gw, sched: sched}
}

// Health reports service and storage backend health.
func (h *OpsHandler) Health(c *gin.Context) {
	if err := h.gw.HealthCheck(); err != nil {
		response.ServiceUnavailable(c, "storage backend unreachable: "+err.Error())
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}

// Stats returns process log counts grouped by outcome plus the most recent
// cycle summary.
func (h *OpsHandler) Stats(c *gin.Context) {
	stats, err := h.gw.Stats()
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}

	payload := gin.H{"outcomes": stats}
	if h.sched != nil {
		last := h.sched.LastCycle()
		if !last.Started.IsZero() {
			payload["last_cycle"] = gin.H{
				"batch":      last.Batch,
				"started":    last.Started,
				"found":      last.Found,
				"succeeded":  last.Succeeded,
				"failed":     last.Failed,
				"duplicates": last.Duplicates,
			}
		}
	}
	response.Success(c, payload)
}

// ListFiles pages through ingested file records. Supports file_type and
// status query filters.
func (h *OpsHandler) ListFiles(c *gin.Context) {
	page, pageSize, ok := pagination(c)
	if !ok {
		return
	}

	records, total, err := h.gw.ListFiles(page, pageSize, c.Query("file_type"), c.Query("status"))
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	response.SuccessWithPage(c, records, total, page, pageSize)
}

// GetFile returns one file record by its file ID.
func (h *OpsHandler) GetFile(c *gin.Context) {
	record, err := h.gw.GetMetadata(c.Param("id"))
	if err != nil {
		if err == gateway.ErrNotFound {
			response.NotFound(c, "file record not found")
			return
		}
		response.InternalServerError(c, err.Error())
		return
	}
	response.Success(c, record)
}

// ListProcessLogs pages through the audit trail. Supports status and batch
// query filters.
func (h *OpsHandler) ListProcessLogs(c *gin.Context) {
	page, pageSize, ok := pagination(c)
	if !ok {
		return
	}

	entries, total, err := h.gw.ListProcessLogs(page, pageSize, c.Query("status"), c.Query("batch"))
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	response.SuccessWithPage(c, entries, total, page, pageSize)
}

// pagination parses page and page_size query params, writing a 400 response
// on invalid input.
func pagination(c *gin.Context) (page, pageSize int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		response.BadRequest(c, "invalid page parameter")
		return 0, 0, false
	}

	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		response.BadRequest(c, "invalid page_size parameter")
		return 0, 0, false
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, true
}
