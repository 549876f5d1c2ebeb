package api

import (
	"errors"
	"net/http"
	"strconv"

	"free-numbers-bot/internal/middleware"
	"free-numbers-bot/internal/service"
	"free-numbers-bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type userRoutes struct {
	users  *service.UserService
	ledger *service.LedgerService
}

func NewUserRoutes(handler *gin.RouterGroup, users *service.UserService, ledger *service.LedgerService, a *middleware.Authorization) {
	r := &userRoutes{users: users, ledger: ledger}

	h := handler.Group("/users")
	h.Use(a.AdminOnly())
	{
		h.GET("/top", r.GetTopUsers)
		h.POST("/:id/ban", r.BanUser)
		h.POST("/:id/unban", r.UnbanUser)
		h.POST("/:id/points", r.AddPoints)
		h.POST("/:id/proofs/approve", r.ApproveProof)
	}

	ch := handler.Group("/channels")
	ch.Use(a.AdminOnly())
	{
		ch.POST("/", r.AddChannel)
		ch.DELETE("/", r.RemoveChannel)
	}
}

func (r *userRoutes) GetTopUsers(c *gin.Context) {
	users, err := r.users.TopUsers(c.Request.Context())
	if err != nil {
		logger.Logger().Error("failed to get top users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get top users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (r *userRoutes) setBanned(c *gin.Context, banned bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := r.users.SetBanned(c.Request.Context(), userID, banned, 0); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.Logger().Error("failed to update ban state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update ban state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"banned": banned})
}

func (r *userRoutes) BanUser(c *gin.Context)   { r.setBanned(c, true) }
func (r *userRoutes) UnbanUser(c *gin.Context) { r.setBanned(c, false) }

type AddPointsRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func (r *userRoutes) AddPoints(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req AddPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := r.ledger.AddPoints(c.Request.Context(), userID, req.Delta, req.Reason); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.Logger().Error("failed to add points", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add points"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"delta": req.Delta})
}

func (r *userRoutes) ApproveProof(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	points, err := r.ledger.ApproveProof(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.Logger().Error("failed to approve proof", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to approve proof"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

type ChannelRequest struct {
	Channel string `json:"channel" binding:"required"`
	IsGroup bool   `json:"is_group"`
}

func (r *userRoutes) AddChannel(c *gin.Context) {
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := r.users.AddRequiredChannel(c.Request.Context(), req.Channel, req.IsGroup); err != nil {
		logger.Logger().Error("failed to add channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add channel"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"channel": req.Channel})
}

func (r *userRoutes) RemoveChannel(c *gin.Context) {
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := r.users.RemoveRequiredChannel(c.Request.Context(), req.Channel); err != nil {
		logger.Logger().Error("failed to remove channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove channel"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": req.Channel})
}
