package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/ratelimit"
	"free-numbers-bot/internal/repository"
	"free-numbers-bot/pkg/logger"

	"go.uber.org/zap"
)

const (
	DefaultRateLimitRequests = 5

	topUsersLimit = 10
)

// UserService covers registration, bans, channel-membership gating and
// per-user admission control.
type UserService struct {
	repo    UserRepository
	cache   StatsCache
	gateway MessageGateway
	limiter *ratelimit.Limiter
	ledger  *LedgerService
}

func NewUserService(repo UserRepository, cache StatsCache, gateway MessageGateway, limiter *ratelimit.Limiter, ledger *LedgerService) *UserService {
	return &UserService{
		repo:    repo,
		cache:   cache,
		gateway: gateway,
		limiter: limiter,
		ledger:  ledger,
	}
}

// RegisterUser creates the user on first contact and reports whether a
// new row was written. A referral on a brand-new user triggers a
// best-effort invite reward for the inviter; reward failures never fail
// registration.
func (s *UserService) RegisterUser(ctx context.Context, u *model.User) (bool, error) {
	if u.InvitedBy != nil && *u.InvitedBy == u.TelegramID {
		u.InvitedBy = nil
	}

	created, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	if !created {
		return false, nil
	}

	s.cache.InvalidateUser(u.TelegramID)

	if u.InvitedBy != nil {
		_, err := s.ledger.AwardInvitePoints(ctx, *u.InvitedBy, u.TelegramID)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotChannelMember), errors.Is(err, ErrInviteAlreadyAwarded):
			// Not payable yet or already paid. The award is retried when
			// the invited user's membership is next verified.
		default:
			logger.Logger().Warn("failed to award invite points",
				zap.Int64("inviter_id", *u.InvitedBy),
				zap.Int64("invited_id", u.TelegramID),
				zap.Error(err))
		}
	}
	return true, nil
}

// GetUser returns the user or ErrUserNotFound.
func (s *UserService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	u, err := s.repo.GetUser(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// EnsureActive loads the user and rejects banned accounts.
func (s *UserService) EnsureActive(ctx context.Context, telegramID int64) (*model.User, error) {
	u, err := s.GetUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if u.Banned {
		return nil, ErrUserBanned
	}

	if err := s.repo.TouchLastActivity(ctx, telegramID); err != nil {
		logger.Logger().Warn("failed to touch last activity",
			zap.Int64("user_id", telegramID), zap.Error(err))
	}
	return u, nil
}

// AllowRequest applies the sliding-window limit to one user action. The
// window parameters come from settings, so admins can tune them live.
func (s *UserService) AllowRequest(ctx context.Context, userID int64) (bool, error) {
	maxRequests, err := s.cache.SettingInt(ctx, "rate_limit_requests", DefaultRateLimitRequests)
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit setting: %w", err)
	}
	windowSec, err := s.cache.SettingInt(ctx, "rate_limit_window", DefaultRateLimitWindow)
	if err != nil {
		return false, fmt.Errorf("failed to read rate window setting: %w", err)
	}

	return s.limiter.Allow(userID, maxRequests, time.Duration(windowSec)*time.Second), nil
}

// MissingChannels returns the required channels the user has not joined.
// An empty result means the membership gate is satisfied.
func (s *UserService) MissingChannels(ctx context.Context, userID int64) ([]model.RequiredChannel, error) {
	channels, err := s.repo.RequiredChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get required channels: %w", err)
	}

	var missing []model.RequiredChannel
	for _, ch := range channels {
		status, err := s.gateway.MembershipStatus(ctx, ch.Channel, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check membership in %s: %w", ch.Channel, err)
		}
		if !status.IsMember() {
			missing = append(missing, ch)
		}
	}
	return missing, nil
}

func (s *UserService) SetBanned(ctx context.Context, telegramID int64, banned bool, byAdmin int64) error {
	if err := s.repo.SetBanned(ctx, telegramID, banned); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update ban state: %w", err)
	}

	s.cache.InvalidateUser(telegramID)

	action := "user_banned"
	if !banned {
		action = "user_unbanned"
	}
	if err := s.repo.InsertLog(ctx, byAdmin, action, fmt.Sprintf("user_id=%d", telegramID)); err != nil {
		logger.Logger().Warn("failed to write audit log",
			zap.Int64("user_id", telegramID), zap.Error(err))
	}
	return nil
}

// TopUsers returns the points leaderboard.
func (s *UserService) TopUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.TopUsers(ctx, topUsersLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	return users, nil
}

func (s *UserService) CountUsers(ctx context.Context) (int, error) {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (s *UserService) AddRequiredChannel(ctx context.Context, channel string, isGroup bool) error {
	if err := s.repo.AddRequiredChannel(ctx, channel, isGroup); err != nil {
		return fmt.Errorf("failed to add required channel: %w", err)
	}
	return nil
}

func (s *UserService) RemoveRequiredChannel(ctx context.Context, channel string) error {
	if err := s.repo.RemoveRequiredChannel(ctx, channel); err != nil {
		return fmt.Errorf("failed to remove required channel: %w", err)
	}
	return nil
}
