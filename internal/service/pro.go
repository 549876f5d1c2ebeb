package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"
	"free-numbers-bot/pkg/logger"

	"go.uber.org/zap"
)

const (
	DefaultProPointsCost   = 100
	DefaultProDaysDuration = 30

	proMethodPoints = "points"
	proMethodAdmin  = "admin_grant"
)

// ProService manages PRO subscriptions: purchases with points, admin
// grants, and expiry. Expired users are demoted lazily on read and by
// the hourly sweep, whichever runs first.
type ProService struct {
	repo  ProRepository
	cache StatsCache
	users UserRepository
	now   func() time.Time
}

func NewProService(repo ProRepository, users UserRepository, cache StatsCache) *ProService {
	return &ProService{
		repo:  repo,
		cache: cache,
		users: users,
		now:   time.Now,
	}
}

// GrantPro activates a subscription for the given number of days without
// charging points. The expiry timestamp is computed once and stored on
// both the user row and the subscription row.
func (s *ProService) GrantPro(ctx context.Context, userID int64, days int) (time.Time, error) {
	if days <= 0 {
		days = DefaultProDaysDuration
	}
	expiresAt := s.now().UTC().AddDate(0, 0, days)

	err := s.repo.SetPro(ctx, userID, days, proMethodAdmin, 0, expiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("failed to grant pro: %w", err)
	}

	s.cache.InvalidateUser(userID)

	if err := s.users.InsertLog(ctx, userID, "pro_granted", fmt.Sprintf("days=%d", days)); err != nil {
		logger.Logger().Warn("failed to write audit log",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return expiresAt, nil
}

// BuyProWithPoints debits the configured cost and activates the
// subscription in one transaction. The debit is guarded against the
// current balance, so a stale cached balance can never oversell.
func (s *ProService) BuyProWithPoints(ctx context.Context, userID int64) (time.Time, error) {
	cost, err := s.cache.SettingInt(ctx, "pro_points_cost", DefaultProPointsCost)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read pro cost setting: %w", err)
	}
	days, err := s.cache.SettingInt(ctx, "pro_days_duration", DefaultProDaysDuration)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read pro duration setting: %w", err)
	}

	stats, err := s.cache.UserStats(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, err
	}
	if stats.Points < cost {
		return time.Time{}, ErrInsufficientPoints
	}

	expiresAt := s.now().UTC().AddDate(0, 0, days)

	err = s.repo.SetPro(ctx, userID, days, proMethodPoints, cost, expiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			return time.Time{}, ErrInsufficientPoints
		}
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("failed to purchase pro: %w", err)
	}

	s.cache.InvalidateUser(userID)

	if err := s.users.InsertLog(ctx, userID, "pro_purchased", fmt.Sprintf("cost=%d days=%d", cost, days)); err != nil {
		logger.Logger().Warn("failed to write audit log",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return expiresAt, nil
}

// IsPro reports whether the user holds a live subscription. A user whose
// expiry has passed is demoted here instead of waiting for the sweep.
func (s *ProService) IsPro(ctx context.Context, userID int64) (bool, error) {
	stats, err := s.cache.UserStats(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	if !stats.IsPro {
		return false, nil
	}
	if stats.ProExpiry != nil && !stats.ProExpiry.After(s.now().UTC()) {
		if err := s.RevokePro(ctx, userID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// RevokePro deactivates the subscription and clears the user flag.
// Idempotent: revoking a user who is not PRO is a no-op.
func (s *ProService) RevokePro(ctx context.Context, userID int64) error {
	if err := s.repo.ClearPro(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke pro: %w", err)
	}

	s.cache.InvalidateUser(userID)

	if err := s.users.InsertLog(ctx, userID, "pro_revoked", ""); err != nil {
		logger.Logger().Warn("failed to write audit log",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return nil
}

// ProInfo returns the user's active subscription record.
func (s *ProService) ProInfo(ctx context.Context, userID int64) (*model.ProSubscription, error) {
	sub, err := s.repo.ActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (s *ProService) ProUsersCount(ctx context.Context) (int, error) {
	count, err := s.repo.ProUsersCount(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count pro users: %w", err)
	}
	return count, nil
}

// ExpireOverdue demotes every user whose expiry has passed. Called by the
// hourly sweep.
func (s *ProService) ExpireOverdue(ctx context.Context) (int, error) {
	ids, err := s.repo.ExpiredProUserIDs(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired pro users: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := s.RevokePro(ctx, id); err != nil {
			logger.Logger().Error("failed to expire pro subscription",
				zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}
