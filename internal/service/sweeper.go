package service

import (
	"context"
	"time"

	"free-numbers-bot/internal/ratelimit"
	"free-numbers-bot/internal/session"
	"free-numbers-bot/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultRateLimitWindow = 10
	DefaultCleanupDays     = 30

	sweepTimeout = time.Minute
)

// Sweeper runs the periodic maintenance jobs: PRO expiry, in-memory GC
// for the rate limiter and session store, and retention purge of old
// history rows. Jobs are fault-isolated: a panic or error in one run is
// logged and the schedule keeps ticking.
type Sweeper struct {
	pro       *ProService
	limiter   *ratelimit.Limiter
	sessions  *session.Store
	retention RetentionRepository
	cache     StatsCache
	now       func() time.Time

	cron *cron.Cron
}

func NewSweeper(pro *ProService, limiter *ratelimit.Limiter, sessions *session.Store, retention RetentionRepository, cache StatsCache) *Sweeper {
	return &Sweeper{
		pro:       pro,
		limiter:   limiter,
		sessions:  sessions,
		retention: retention,
		cache:     cache,
		now:       time.Now,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
		)),
	}
}

// Start registers and launches the schedule. Intervals are fixed; the
// parameters each job reads (window size, retention days) come from
// settings at run time, so they can change without a restart.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@every 1h", s.sweepProExpiry); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 5m", s.sweepMemory); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1h", s.sweepRetention); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for any running job to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweepProExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	expired, err := s.pro.ExpireOverdue(ctx)
	if err != nil {
		logger.Logger().Error("pro expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		logger.Logger().Info("pro subscriptions expired", zap.Int("count", expired))
	}
}

func (s *Sweeper) sweepMemory() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	windowSec, err := s.cache.SettingInt(ctx, "rate_limit_window", DefaultRateLimitWindow)
	if err != nil {
		logger.Logger().Error("memory sweep failed", zap.Error(err))
		return
	}

	evicted := s.limiter.GC(time.Duration(windowSec) * time.Second)
	cleared := s.sessions.GC()
	if evicted > 0 || cleared > 0 {
		logger.Logger().Info("memory sweep",
			zap.Int("rate_windows_evicted", evicted),
			zap.Int("sessions_cleared", cleared))
	}
}

func (s *Sweeper) sweepRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	days, err := s.cache.SettingInt(ctx, "auto_cleanup_days", DefaultCleanupDays)
	if err != nil {
		logger.Logger().Error("retention sweep failed", zap.Error(err))
		return
	}
	if days <= 0 {
		return
	}

	cutoff := s.now().UTC().AddDate(0, 0, -days)
	purged, err := s.retention.PurgeBefore(ctx, cutoff)
	if err != nil {
		logger.Logger().Error("retention sweep failed", zap.Error(err))
		return
	}
	if purged.Proofs > 0 || purged.Logs > 0 || purged.PointsHistory > 0 {
		logger.Logger().Info("old rows purged",
			zap.Time("cutoff", cutoff),
			zap.Int64("proofs", purged.Proofs),
			zap.Int64("logs", purged.Logs),
			zap.Int64("points_history", purged.PointsHistory))
	}
}
