package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/image-release-tools/internal/apperr"
	"github.com/ironsheep/image-release-tools/internal/release"
	"github.com/ironsheep/image-release-tools/internal/store"
)

// ReleaseHandler serves the release endpoints.
type ReleaseHandler struct {
	orch *release.Orchestrator
	// ctx outlives requests; releases keep running after the POST returns.
	ctx context.Context
}

// NewReleaseHandler returns a handler whose releases run under ctx.
func NewReleaseHandler(ctx context.Context, orch *release.Orchestrator) *ReleaseHandler {
	return &ReleaseHandler{orch: orch, ctx: ctx}
}

// ListTransforms lists the catalog.
func (h *ReleaseHandler) ListTransforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"kinds": h.orch.Catalog().Describe(),
	})
}

// Plan returns the configs a release would generate.
func (h *ReleaseHandler) Plan(c *gin.Context) {
	var req release.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sum, err := h.orch.PlanRelease(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// StartRelease validates and starts a release. Processing continues after the
// response is sent.
func (h *ReleaseHandler) StartRelease(c *gin.Context) {
	var req release.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.orch.Start(h.ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"release_id": job.ID()}
	if p, ok := h.orch.Tracker().Get(job.ID()); ok {
		resp["status"] = p.Status
		resp["current_step"] = p.CurrentStep
	}
	c.Header("Location", "/api/releases/"+job.ID())
	c.JSON(http.StatusAccepted, resp)
}

// ListReleases returns the stored records together with the releases still
// running.
func (h *ReleaseHandler) ListReleases(c *gin.Context) {
	records, err := h.orch.Store().Releases(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	var active []release.Progress
	for _, p := range h.orch.Tracker().List() {
		if !p.Status.Terminal() {
			active = append(active, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"releases": records,
		"active":   active,
	})
}

// GetRelease returns the stored record of a release.
func (h *ReleaseHandler) GetRelease(c *gin.Context) {
	rec, err := h.orch.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetProgress returns the live progress of a release.
func (h *ReleaseHandler) GetProgress(c *gin.Context) {
	p, err := h.orch.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrData):
		status = http.StatusUnprocessableEntity
	}
	body := gin.H{"error": err.Error()}
	if k := apperr.KindOf(err); k != "" {
		body["kind"] = k
	}
	c.JSON(status, body)
}
