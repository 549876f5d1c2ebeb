package api

import (
	"net/http"

	"free-numbers-bot/internal/middleware"
	"free-numbers-bot/internal/service"
	"free-numbers-bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type statsRoutes struct {
	users  *service.UserService
	ledger *service.LedgerService
	pro    *service.ProService
}

func NewStatsRoutes(handler *gin.RouterGroup, users *service.UserService, ledger *service.LedgerService, pro *service.ProService, a *middleware.Authorization) {
	r := &statsRoutes{users: users, ledger: ledger, pro: pro}

	h := handler.Group("/")
	h.Use(a.AdminOnly())
	{
		h.GET("/stats", r.GetStats)
	}
}

type StatsResponse struct {
	TotalUsers        int `json:"total_users"`
	ProUsers          int `json:"pro_users"`
	PointsDistributed int `json:"points_distributed"`
}

func (r *statsRoutes) GetStats(c *gin.Context) {
	log := logger.Logger()
	ctx := c.Request.Context()

	totalUsers, err := r.users.CountUsers(ctx)
	if err != nil {
		log.Error("failed to count users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}

	proUsers, err := r.pro.ProUsersCount(ctx)
	if err != nil {
		log.Error("failed to count pro users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}

	distributed, err := r.ledger.TotalPointsDistributed(ctx)
	if err != nil {
		log.Error("failed to sum distributed points", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		TotalUsers:        totalUsers,
		ProUsers:          proUsers,
		PointsDistributed: distributed,
	})
}
