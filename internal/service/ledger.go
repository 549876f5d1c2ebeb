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
	DefaultDailyBonusPoints = 10
	DefaultInvitePoints     = 5
	DefaultProofPoints      = 3
)

// LedgerService owns the points economy: balance mutations with their
// append-only history, the daily bonus, and invite rewards.
type LedgerService struct {
	repo    LedgerRepository
	proofs  ProofRepository
	users   UserRepository
	cache   StatsCache
	gateway MessageGateway
	now     func() time.Time
}

func NewLedgerService(repo LedgerRepository, proofs ProofRepository, users UserRepository, cache StatsCache, gateway MessageGateway) *LedgerService {
	return &LedgerService{
		repo:    repo,
		proofs:  proofs,
		users:   users,
		cache:   cache,
		gateway: gateway,
		now:     time.Now,
	}
}

// AddPoints adjusts the balance and appends the history row atomically,
// then invalidates the user's cached stats.
func (s *LedgerService) AddPoints(ctx context.Context, userID int64, delta int, reason string) error {
	err := s.repo.AddPoints(ctx, userID, delta, reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to add points: %w", err)
	}

	s.cache.InvalidateUser(userID)

	if err := s.users.InsertLog(ctx, userID, "add_points", fmt.Sprintf("points=%d reason=%s", delta, reason)); err != nil {
		logger.Logger().Warn("failed to write audit log",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return nil
}

// CanClaimDailyBonus reports whether the user has not yet claimed on the
// current calendar date. The gate is calendar-day granularity, not a
// rolling 24 hours.
func (s *LedgerService) CanClaimDailyBonus(ctx context.Context, userID int64) (bool, error) {
	claimed, err := s.repo.DailyBonusDate(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	if claimed == nil {
		return true, nil
	}

	cy, cm, cd := claimed.UTC().Date()
	ny, nm, nd := s.now().UTC().Date()
	return cy != ny || cm != nm || cd != nd, nil
}

// ClaimDailyBonus credits the configured bonus once per calendar day.
func (s *LedgerService) ClaimDailyBonus(ctx context.Context, userID int64) (int, error) {
	ok, err := s.CanClaimDailyBonus(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrBonusAlreadyClaimed
	}

	points, err := s.cache.SettingInt(ctx, "daily_bonus_points", DefaultDailyBonusPoints)
	if err != nil {
		return 0, fmt.Errorf("failed to read bonus setting: %w", err)
	}

	err = s.repo.ClaimDailyBonus(ctx, userID, s.now().UTC(), points)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimed) {
			return 0, ErrBonusAlreadyClaimed
		}
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to claim daily bonus: %w", err)
	}

	s.cache.InvalidateUser(userID)
	return points, nil
}

// AwardInvitePoints credits the inviter once the invited user is a member
// of every required channel. Safe to call repeatedly: the second and
// later calls for the same invited user report ErrInviteAlreadyAwarded.
func (s *LedgerService) AwardInvitePoints(ctx context.Context, inviterID, invitedID int64) (int, error) {
	member, err := s.isMemberOfRequiredChannels(ctx, invitedID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, ErrNotChannelMember
	}

	points, err := s.cache.SettingInt(ctx, "invite_points", DefaultInvitePoints)
	if err != nil {
		return 0, fmt.Errorf("failed to read invite setting: %w", err)
	}

	err = s.repo.AwardInvite(ctx, inviterID, invitedID, points)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyAwarded) {
			return 0, ErrInviteAlreadyAwarded
		}
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to award invite points: %w", err)
	}

	s.cache.InvalidateUser(inviterID)
	return points, nil
}

func (s *LedgerService) isMemberOfRequiredChannels(ctx context.Context, userID int64) (bool, error) {
	channels, err := s.users.RequiredChannels(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get required channels: %w", err)
	}

	for _, ch := range channels {
		status, err := s.gateway.MembershipStatus(ctx, ch.Channel, userID)
		if err != nil {
			return false, fmt.Errorf("failed to check membership in %s: %w", ch.Channel, err)
		}
		if !status.IsMember() {
			return false, nil
		}
	}
	return true, nil
}

// SubmitProof stores an activation proof and bumps the user's counter.
// No points move until an admin approves it.
func (s *LedgerService) SubmitProof(ctx context.Context, p *model.Proof) error {
	if p.PostedAt.IsZero() {
		p.PostedAt = s.now().UTC()
	}
	if err := s.proofs.AddProof(ctx, p); err != nil {
		return fmt.Errorf("failed to store proof: %w", err)
	}
	return nil
}

// ApproveProof credits the configured proof reward to the user.
func (s *LedgerService) ApproveProof(ctx context.Context, userID int64) (int, error) {
	points, err := s.cache.SettingInt(ctx, "proof_points", DefaultProofPoints)
	if err != nil {
		return 0, fmt.Errorf("failed to read proof setting: %w", err)
	}
	if err := s.AddPoints(ctx, userID, points, "proof_approved"); err != nil {
		return 0, err
	}
	return points, nil
}

func (s *LedgerService) Points(ctx context.Context, userID int64) (int, error) {
	stats, err := s.cache.UserStats(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return stats.Points, nil
}

func (s *LedgerService) PointsHistory(ctx context.Context, userID int64, limit int) ([]*model.PointsHistoryEntry, error) {
	entries, err := s.repo.PointsHistory(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get points history: %w", err)
	}
	return entries, nil
}

func (s *LedgerService) TotalPointsDistributed(ctx context.Context) (int, error) {
	total, err := s.repo.TotalPointsDistributed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get total points: %w", err)
	}
	return total, nil
}
