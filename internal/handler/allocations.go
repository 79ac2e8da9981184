package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fifopnl/internal/repository"
)

type AllocationHandler struct {
	Repo repository.Repository
}

func (h *AllocationHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/allocations")
	group.GET("", h.list)
}

func (h *AllocationHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	version, err := strconv.Atoi(c.Query("version"))
	if err != nil {
		Error(c, http.StatusBadRequest, "version query parameter required", nil)
		return
	}
	params := repository.ListAllocationsParams{Version: version}
	if symbol := c.Query("symbol"); symbol != "" {
		params.Symbol = &symbol
	}
	if c.Query("unmatched") == "true" {
		params.UnmatchedOnly = true
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		params.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		params.Offset = offset
	}
	items, err := h.Repo.ListAllocations(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	count, err := h.Repo.CountAllocationsByVersion(c.Request.Context(), version)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"version_total": count})
}
