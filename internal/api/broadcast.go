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

type broadcastRoutes struct {
	engine *service.BroadcastEngine
}

func NewBroadcastRoutes(handler *gin.RouterGroup, engine *service.BroadcastEngine, a *middleware.Authorization) {
	r := &broadcastRoutes{engine: engine}

	h := handler.Group("/")
	h.Use(a.AdminOnly())
	{
		h.POST("/broadcasts", r.StartBroadcast)
		h.GET("/broadcasts/:id", r.GetBroadcast)
		h.POST("/broadcasts/:id/stop", r.StopBroadcast)

		h.POST("/advertisements", r.CreateAdvertisement)
		h.GET("/advertisements", r.ListAdvertisements)
		h.POST("/advertisements/:id/toggle", r.ToggleAdvertisement)
		h.DELETE("/advertisements/:id", r.DeleteAdvertisement)
	}
}

type StartBroadcastRequest struct {
	AdID     int64  `json:"ad_id" binding:"required"`
	Audience string `json:"audience"`
}

type StartBroadcastResponse struct {
	BroadcastID string `json:"broadcast_id"`
}

func (r *broadcastRoutes) StartBroadcast(c *gin.Context) {
	log := logger.Logger()

	var req StartBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Audience == "" {
		req.Audience = string(model.AudienceAll)
	}

	runID, err := r.engine.Start(c.Request.Context(), req.AdID, model.Audience(req.Audience))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAudience):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audience"})
		case errors.Is(err, service.ErrAdNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "advertisement not found"})
		case errors.Is(err, service.ErrAdInactive):
			c.JSON(http.StatusConflict, gin.H{"error": "advertisement is not active"})
		default:
			log.Error("failed to start broadcast", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start broadcast"})
		}
		return
	}

	c.JSON(http.StatusCreated, StartBroadcastResponse{BroadcastID: runID})
}

type BroadcastResponse struct {
	BroadcastID string  `json:"broadcast_id"`
	AdID        int64   `json:"ad_id"`
	AdTitle     string  `json:"ad_title"`
	Status      string  `json:"status"`
	TotalUsers  int     `json:"total_users"`
	SentCount   int     `json:"sent_count"`
	FailedCount int     `json:"failed_count"`
	StartTime   string  `json:"start_time"`
	EndTime     *string `json:"end_time,omitempty"`
	Errors      string  `json:"errors,omitempty"`
}

func (r *broadcastRoutes) GetBroadcast(c *gin.Context) {
	report, err := r.engine.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrBroadcastNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "broadcast not found"})
			return
		}
		logger.Logger().Error("failed to get broadcast", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get broadcast"})
		return
	}

	out := BroadcastResponse{
		BroadcastID: report.BroadcastID,
		AdID:        report.AdID,
		AdTitle:     report.AdTitle,
		Status:      string(report.Status),
		TotalUsers:  report.TotalUsers,
		SentCount:   report.SentCount,
		FailedCount: report.FailedCount,
		StartTime:   report.StartTime.UTC().Format("2006-01-02T15:04:05Z"),
		Errors:      report.Errors,
	}
	if report.EndTime != nil {
		end := report.EndTime.UTC().Format("2006-01-02T15:04:05Z")
		out.EndTime = &end
	}
	c.JSON(http.StatusOK, out)
}

func (r *broadcastRoutes) StopBroadcast(c *gin.Context) {
	stopped, err := r.engine.Stop(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrBroadcastNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "broadcast not found"})
			return
		}
		logger.Logger().Error("failed to stop broadcast", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop broadcast"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

type CreateAdvertisementRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Audience string `json:"audience"`
}

func (r *broadcastRoutes) CreateAdvertisement(c *gin.Context) {
	log := logger.Logger()

	var req CreateAdvertisementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ad := &model.Advertisement{
		Title:    req.Title,
		Content:  req.Content,
		IsActive: true,
		Audience: model.Audience(req.Audience),
	}
	id, err := r.engine.CreateAdvertisement(c.Request.Context(), ad)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAudience) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audience"})
			return
		}
		log.Error("failed to create advertisement", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create advertisement"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (r *broadcastRoutes) ListAdvertisements(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	ads, err := r.engine.ListAdvertisements(c.Request.Context(), 50, activeOnly)
	if err != nil {
		logger.Logger().Error("failed to list advertisements", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list advertisements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"advertisements": ads})
}

func (r *broadcastRoutes) ToggleAdvertisement(c *gin.Context) {
	adID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid advertisement id"})
		return
	}

	active, err := r.engine.ToggleAdvertisement(c.Request.Context(), adID)
	if err != nil {
		if errors.Is(err, service.ErrAdNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "advertisement not found"})
			return
		}
		logger.Logger().Error("failed to toggle advertisement", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle advertisement"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": active})
}

func (r *broadcastRoutes) DeleteAdvertisement(c *gin.Context) {
	adID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid advertisement id"})
		return
	}

	if err := r.engine.DeleteAdvertisement(c.Request.Context(), adID); err != nil {
		if errors.Is(err, service.ErrAdNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "advertisement not found"})
			return
		}
		logger.Logger().Error("failed to delete advertisement", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete advertisement"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
