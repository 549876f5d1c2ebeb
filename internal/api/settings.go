package api

import (
	"errors"
	"net/http"

	"free-numbers-bot/internal/middleware"
	"free-numbers-bot/internal/service"
	"free-numbers-bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type settingsRoutes struct {
	settings *service.SettingsService
}

func NewSettingsRoutes(handler *gin.RouterGroup, settings *service.SettingsService, a *middleware.Authorization) {
	r := &settingsRoutes{settings: settings}

	h := handler.Group("/settings")
	h.Use(a.AdminOnly())
	{
		h.GET("/:key", r.GetSetting)
		h.PUT("/:key", r.SetSetting)
	}
}

func (r *settingsRoutes) GetSetting(c *gin.Context) {
	key := c.Param("key")

	value, err := r.settings.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrSettingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
			return
		}
		logger.Logger().Error("failed to get setting", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

type SetSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

func (r *settingsRoutes) SetSetting(c *gin.Context) {
	key := c.Param("key")

	var req SetSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := r.settings.Set(c.Request.Context(), key, req.Value); err != nil {
		logger.Logger().Error("failed to set setting", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
