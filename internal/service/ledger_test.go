package service

import (
	"context"
	"testing"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"free-numbers-bot/internal/service/mocks"
)

func newLedgerForTest(now time.Time) (*LedgerService, *mocks.MockLedgerRepository, *mocks.MockUserRepository, *mocks.MockStatsCache, *mocks.MockMessageGateway) {
	repo := &mocks.MockLedgerRepository{}
	users := &mocks.MockUserRepository{}
	cache := &mocks.MockStatsCache{}
	gateway := &mocks.MockMessageGateway{}

	svc := NewLedgerService(repo, &mocks.MockProofRepository{}, users, cache, gateway)
	svc.now = func() time.Time { return now }
	return svc, repo, users, cache, gateway
}

func TestLedgerService_ClaimDailyBonus(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name           string
		userID         int64
		mockSetup      func(*mocks.MockLedgerRepository, *mocks.MockStatsCache)
		expectedPoints int
		expectedError  error
	}{
		{
			name:   "never claimed before",
			userID: 1,
			mockSetup: func(repo *mocks.MockLedgerRepository, cache *mocks.MockStatsCache) {
				repo.On("DailyBonusDate", mock.Anything, int64(1)).Return(nil, nil)
				cache.On("SettingInt", mock.Anything, "daily_bonus_points", DefaultDailyBonusPoints).Return(10, nil)
				repo.On("ClaimDailyBonus", mock.Anything, int64(1), mock.Anything, 10).Return(nil)
				cache.On("InvalidateUser", int64(1)).Return()
			},
			expectedPoints: 10,
		},
		{
			name:   "already claimed today",
			userID: 2,
			mockSetup: func(repo *mocks.MockLedgerRepository, cache *mocks.MockStatsCache) {
				claimed := time.Date(2025, 1, 2, 0, 15, 0, 0, time.UTC)
				repo.On("DailyBonusDate", mock.Anything, int64(2)).Return(&claimed, nil)
			},
			expectedError: ErrBonusAlreadyClaimed,
		},
		{
			name:   "claimed yesterday",
			userID: 3,
			mockSetup: func(repo *mocks.MockLedgerRepository, cache *mocks.MockStatsCache) {
				claimed := time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)
				repo.On("DailyBonusDate", mock.Anything, int64(3)).Return(&claimed, nil)
				cache.On("SettingInt", mock.Anything, "daily_bonus_points", DefaultDailyBonusPoints).Return(10, nil)
				repo.On("ClaimDailyBonus", mock.Anything, int64(3), mock.Anything, 10).Return(nil)
				cache.On("InvalidateUser", int64(3)).Return()
			},
			expectedPoints: 10,
		},
		{
			name:   "lost race on the claim write",
			userID: 4,
			mockSetup: func(repo *mocks.MockLedgerRepository, cache *mocks.MockStatsCache) {
				repo.On("DailyBonusDate", mock.Anything, int64(4)).Return(nil, nil)
				cache.On("SettingInt", mock.Anything, "daily_bonus_points", DefaultDailyBonusPoints).Return(10, nil)
				repo.On("ClaimDailyBonus", mock.Anything, int64(4), mock.Anything, 10).Return(repository.ErrAlreadyClaimed)
			},
			expectedError: ErrBonusAlreadyClaimed,
		},
		{
			name:   "user not found",
			userID: 5,
			mockSetup: func(repo *mocks.MockLedgerRepository, cache *mocks.MockStatsCache) {
				repo.On("DailyBonusDate", mock.Anything, int64(5)).Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, cache, _ := newLedgerForTest(now)
			tt.mockSetup(repo, cache)

			points, err := svc.ClaimDailyBonus(context.Background(), tt.userID)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedPoints, points)
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestLedgerService_CanClaimDailyBonus_CalendarDay(t *testing.T) {
	// The gate is calendar-date granularity: a claim at 23:59 does not
	// block a claim at 00:01 the next day, and a claim at 00:01 blocks
	// the rest of that day.
	claimed := time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)

	svc, repo, _, _, _ := newLedgerForTest(time.Date(2025, 1, 1, 23, 59, 30, 0, time.UTC))
	repo.On("DailyBonusDate", mock.Anything, int64(1)).Return(&claimed, nil)

	ok, err := svc.CanClaimDailyBonus(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, ok)

	svc.now = func() time.Time { return time.Date(2025, 1, 2, 0, 1, 0, 0, time.UTC) }
	ok, err = svc.CanClaimDailyBonus(context.Background(), 1)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestLedgerService_AwardInvitePoints(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	channels := []model.RequiredChannel{{Channel: "@numbers_channel"}}

	tests := []struct {
		name           string
		mockSetup      func(*mocks.MockLedgerRepository, *mocks.MockUserRepository, *mocks.MockStatsCache, *mocks.MockMessageGateway)
		expectedPoints int
		expectedError  error
	}{
		{
			name: "member gets inviter credited once",
			mockSetup: func(repo *mocks.MockLedgerRepository, users *mocks.MockUserRepository, cache *mocks.MockStatsCache, gateway *mocks.MockMessageGateway) {
				users.On("RequiredChannels", mock.Anything).Return(channels, nil)
				gateway.On("MembershipStatus", mock.Anything, "@numbers_channel", int64(20)).Return(model.MembershipMember, nil)
				cache.On("SettingInt", mock.Anything, "invite_points", DefaultInvitePoints).Return(5, nil)
				repo.On("AwardInvite", mock.Anything, int64(10), int64(20), 5).Return(nil)
				cache.On("InvalidateUser", int64(10)).Return()
			},
			expectedPoints: 5,
		},
		{
			name: "second award for the same invited user is rejected",
			mockSetup: func(repo *mocks.MockLedgerRepository, users *mocks.MockUserRepository, cache *mocks.MockStatsCache, gateway *mocks.MockMessageGateway) {
				users.On("RequiredChannels", mock.Anything).Return(channels, nil)
				gateway.On("MembershipStatus", mock.Anything, "@numbers_channel", int64(20)).Return(model.MembershipMember, nil)
				cache.On("SettingInt", mock.Anything, "invite_points", DefaultInvitePoints).Return(5, nil)
				repo.On("AwardInvite", mock.Anything, int64(10), int64(20), 5).Return(repository.ErrAlreadyAwarded)
			},
			expectedError: ErrInviteAlreadyAwarded,
		},
		{
			name: "invited user not in the required channel",
			mockSetup: func(repo *mocks.MockLedgerRepository, users *mocks.MockUserRepository, cache *mocks.MockStatsCache, gateway *mocks.MockMessageGateway) {
				users.On("RequiredChannels", mock.Anything).Return(channels, nil)
				gateway.On("MembershipStatus", mock.Anything, "@numbers_channel", int64(20)).Return(model.MembershipNone, nil)
			},
			expectedError: ErrNotChannelMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, users, cache, gateway := newLedgerForTest(now)
			tt.mockSetup(repo, users, cache, gateway)

			points, err := svc.AwardInvitePoints(context.Background(), 10, 20)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedPoints, points)
			}
			repo.AssertExpectations(t)
			gateway.AssertExpectations(t)
		})
	}
}

func TestLedgerService_ProofFlow(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	proofs := &mocks.MockProofRepository{}
	repo := &mocks.MockLedgerRepository{}
	users := &mocks.MockUserRepository{}
	cache := &mocks.MockStatsCache{}

	svc := NewLedgerService(repo, proofs, users, cache, &mocks.MockMessageGateway{})
	svc.now = func() time.Time { return now }

	proof := &model.Proof{UserID: 5, Number: "96712345", Platform: "Telegram"}
	proofs.On("AddProof", mock.Anything, proof).Return(nil)

	assert.NoError(t, svc.SubmitProof(context.Background(), proof))
	assert.Equal(t, now, proof.PostedAt)

	cache.On("SettingInt", mock.Anything, "proof_points", DefaultProofPoints).Return(3, nil)
	repo.On("AddPoints", mock.Anything, int64(5), 3, "proof_approved").Return(nil)
	cache.On("InvalidateUser", int64(5)).Return()
	users.On("InsertLog", mock.Anything, int64(5), "add_points", mock.Anything).Return(nil)

	points, err := svc.ApproveProof(context.Background(), 5)
	assert.NoError(t, err)
	assert.Equal(t, 3, points)
	proofs.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestLedgerService_AddPoints(t *testing.T) {
	svc, repo, users, cache, _ := newLedgerForTest(time.Now())

	repo.On("AddPoints", mock.Anything, int64(7), 25, "proof_approved").Return(nil)
	cache.On("InvalidateUser", int64(7)).Return()
	users.On("InsertLog", mock.Anything, int64(7), "add_points", mock.Anything).Return(nil)

	err := svc.AddPoints(context.Background(), 7, 25, "proof_approved")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)

	repo.On("AddPoints", mock.Anything, int64(8), 10, "daily_bonus").Return(repository.ErrNotFound)
	err = svc.AddPoints(context.Background(), 8, 10, "daily_bonus")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
