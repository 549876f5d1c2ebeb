package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"free-numbers-bot/internal/api"
	"free-numbers-bot/internal/cache"
	"free-numbers-bot/internal/middleware"
	"free-numbers-bot/internal/ratelimit"
	"free-numbers-bot/internal/repository"
	"free-numbers-bot/internal/service"
	"free-numbers-bot/internal/session"
	"free-numbers-bot/internal/telegram"
	"free-numbers-bot/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := repo.SeedDefaultSettings(ctx); err != nil {
		zapLogger.Fatal("Failed to seed default settings", zap.Error(err))
	}

	gateway, err := telegram.New(cfg.Telegram.BotToken)
	if err != nil {
		zapLogger.Fatal("Failed to initialize telegram gateway", zap.Error(err))
	}

	statsCache := cache.New(repo)
	limiter := ratelimit.New()
	sessions := session.NewStore()

	ledgerService := service.NewLedgerService(repo, repo, repo, statsCache, gateway)
	proService := service.NewProService(repo, repo, statsCache)
	numberService := service.NewNumberService(repo, repo, repo, statsCache)
	broadcastEngine := service.NewBroadcastEngine(repo, gateway, 0)
	userService := service.NewUserService(repo, statsCache, gateway, limiter, ledgerService)
	settingsService := service.NewSettingsService(repo, statsCache)
	svc := service.NewService(userService, ledgerService, proService, numberService, broadcastEngine, settingsService)

	if err := broadcastEngine.Resume(ctx); err != nil {
		zapLogger.Error("Failed to resume broadcasts", zap.Error(err))
	}

	sweeper := service.NewSweeper(proService, limiter, sessions, repo, statsCache)
	if err := sweeper.Start(); err != nil {
		zapLogger.Fatal("Failed to start sweepers", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodDelete,
	}
	corsConfig.AllowHeaders = []string{"*"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	auth := middleware.NewAuthorization(cfg.Admin.Token)
	a := router.Group("/api/v1")
	api.NewBroadcastRoutes(a, svc.BroadcastEngine, auth)
	api.NewNumberRoutes(a, svc.NumberService, auth)
	api.NewUserRoutes(a, svc.UserService, svc.LedgerService, auth)
	api.NewStatsRoutes(a, svc.UserService, svc.LedgerService, svc.ProService, auth)
	api.NewSettingsRoutes(a, svc.SettingsService, auth)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zapLogger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to stop server cleanly", zap.Error(err))
	}

	sweeper.Stop()
	broadcastEngine.Shutdown()
}
