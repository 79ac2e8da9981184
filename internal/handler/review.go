package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fifopnl/internal/models"
	"fifopnl/internal/repository"
)

type ReviewHandler struct {
	Repo repository.Repository
}

func (h *ReviewHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/review")
	group.GET("", h.list)
	group.PATCH("/:id/status", h.updateStatus)
}

func (h *ReviewHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListReviewParams{}
	if status := c.Query("status"); status != "" {
		params.Status = &status
	}
	if symbol := c.Query("symbol"); symbol != "" {
		params.Symbol = &symbol
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		params.Limit = limit
	}
	items, err := h.Repo.ListManualReviewItems(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type reviewStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ReviewHandler) updateStatus(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req reviewStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	switch req.Status {
	case models.ReviewStatusPending, models.ReviewStatusInProgress,
		models.ReviewStatusResolved, models.ReviewStatusDismissed:
	default:
		Error(c, http.StatusBadRequest, "unknown status", nil)
		return
	}
	if err := h.Repo.UpdateManualReviewStatus(c.Request.Context(), id, req.Status); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"id": id, "status": req.Status}, nil)
}
