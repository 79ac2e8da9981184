package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fifopnl/internal/validator"
)

type ValidationHandler struct {
	Validator *validator.Validator
}

func (h *ValidationHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/validation/:version", h.validate)
	r.GET("/api/v1/report/:version", h.report)
}

func (h *ValidationHandler) validate(c *gin.Context) {
	if h.Validator == nil {
		Error(c, http.StatusInternalServerError, "validator unavailable", nil)
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid version", nil)
		return
	}
	strict := c.Query("strict") == "true"
	res, err := h.Validator.ValidateVersion(c.Request.Context(), version, strict)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, res, map[string]any{"strict": strict})
}

func (h *ValidationHandler) report(c *gin.Context) {
	if h.Validator == nil {
		Error(c, http.StatusInternalServerError, "validator unavailable", nil)
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid version", nil)
		return
	}
	report, err := h.Validator.GenerateHealthReport(c.Request.Context(), version)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, nil)
}
