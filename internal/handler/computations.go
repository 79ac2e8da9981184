package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fifopnl/internal/repository"
)

type ComputationHandler struct {
	Repo repository.Repository
}

func (h *ComputationHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/computations", h.list)
}

func (h *ComputationHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := 100
	if n, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = n
	}
	items, err := h.Repo.ListComputationLogs(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
