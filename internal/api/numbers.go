package api

import (
	"errors"
	"net/http"
	"strconv"

	"free-numbers-bot/internal/middleware"
	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/service"
	"free-numbers-bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type numberRoutes struct {
	numbers *service.NumberService
}

func NewNumberRoutes(handler *gin.RouterGroup, numbers *service.NumberService, a *middleware.Authorization) {
	r := &numberRoutes{numbers: numbers}

	h := handler.Group("/countries")
	h.Use(a.AdminOnly())
	{
		h.GET("/", r.ListCountries)
		h.GET("/:id/counts", r.GetCountryCounts)
		h.POST("/:id/toggle", r.ToggleCountry)
		h.POST("/:id/numbers", r.ImportNumbers)
		h.GET("/:id/numbers/premium", r.ListPremiumNumbers)
	}
}

func (r *numberRoutes) ListCountries(c *gin.Context) {
	countries, err := r.numbers.Countries(c.Request.Context())
	if err != nil {
		logger.Logger().Error("failed to list countries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list countries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"countries": countries})
}

func (r *numberRoutes) GetCountryCounts(c *gin.Context) {
	countryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid country id"})
		return
	}

	counts, err := r.numbers.CountryCounts(c.Request.Context(), countryID)
	if err != nil {
		logger.Logger().Error("failed to get country counts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get country counts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": counts.Total, "premium": counts.Premium})
}

func (r *numberRoutes) ToggleCountry(c *gin.Context) {
	countryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid country id"})
		return
	}

	active, err := r.numbers.ToggleCountry(c.Request.Context(), countryID)
	if err != nil {
		if errors.Is(err, service.ErrCountryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "country not found"})
			return
		}
		logger.Logger().Error("failed to toggle country", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle country"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": active})
}

type ImportNumbersRequest struct {
	Platform string   `json:"platform"`
	AddedBy  int64    `json:"added_by"`
	Numbers  []string `json:"numbers" binding:"required"`
}

func (r *numberRoutes) ImportNumbers(c *gin.Context) {
	log := logger.Logger()

	countryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid country id"})
		return
	}

	var req ImportNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Platform == "" {
		req.Platform = "Telegram"
	}

	res, err := r.numbers.BulkImport(c.Request.Context(), countryID, req.AddedBy, req.Platform, req.Numbers)
	if err != nil {
		if errors.Is(err, service.ErrCountryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "country not found"})
			return
		}
		log.Error("failed to import numbers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to import numbers"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"inserted": res.Inserted,
		"premium":  res.Premium,
		"skipped":  res.Skipped,
	})
}

func (r *numberRoutes) ListPremiumNumbers(c *gin.Context) {
	countryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid country id"})
		return
	}

	pattern := model.PremiumPattern(c.Query("pattern"))
	numbers, err := r.numbers.PremiumNumbers(c.Request.Context(), countryID, pattern)
	if err != nil {
		logger.Logger().Error("failed to list premium numbers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list premium numbers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"numbers": numbers})
}
