package service

import (
	"context"
	"testing"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/ratelimit"
	"free-numbers-bot/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"free-numbers-bot/internal/service/mocks"
)

func newUserForTest() (*UserService, *mocks.MockUserRepository, *mocks.MockLedgerRepository, *mocks.MockStatsCache, *mocks.MockMessageGateway) {
	users := &mocks.MockUserRepository{}
	ledgerRepo := &mocks.MockLedgerRepository{}
	cache := &mocks.MockStatsCache{}
	gateway := &mocks.MockMessageGateway{}

	ledger := NewLedgerService(ledgerRepo, &mocks.MockProofRepository{}, users, cache, gateway)
	svc := NewUserService(users, cache, gateway, ratelimit.New(), ledger)
	return svc, users, ledgerRepo, cache, gateway
}

func TestUserService_RegisterUser(t *testing.T) {
	inviter := int64(10)

	tests := []struct {
		name            string
		user            *model.User
		mockSetup       func(*mocks.MockUserRepository, *mocks.MockLedgerRepository, *mocks.MockStatsCache, *mocks.MockMessageGateway)
		expectedCreated bool
	}{
		{
			name: "new user with referral credits the inviter",
			user: &model.User{TelegramID: 20, Username: "fresh", InvitedBy: &inviter},
			mockSetup: func(users *mocks.MockUserRepository, ledgerRepo *mocks.MockLedgerRepository, cache *mocks.MockStatsCache, gateway *mocks.MockMessageGateway) {
				users.On("CreateUser", mock.Anything, mock.Anything).Return(true, nil)
				cache.On("InvalidateUser", int64(20)).Return()
				users.On("RequiredChannels", mock.Anything).
					Return([]model.RequiredChannel{{Channel: "@numbers_channel"}}, nil)
				gateway.On("MembershipStatus", mock.Anything, "@numbers_channel", int64(20)).
					Return(model.MembershipMember, nil)
				cache.On("SettingInt", mock.Anything, "invite_points", DefaultInvitePoints).Return(5, nil)
				ledgerRepo.On("AwardInvite", mock.Anything, int64(10), int64(20), 5).Return(nil)
				cache.On("InvalidateUser", int64(10)).Return()
			},
			expectedCreated: true,
		},
		{
			name: "returning user does not trigger the reward again",
			user: &model.User{TelegramID: 20, Username: "fresh", InvitedBy: &inviter},
			mockSetup: func(users *mocks.MockUserRepository, ledgerRepo *mocks.MockLedgerRepository, cache *mocks.MockStatsCache, gateway *mocks.MockMessageGateway) {
				users.On("CreateUser", mock.Anything, mock.Anything).Return(false, nil)
			},
			expectedCreated: false,
		},
		{
			name: "self-referral is dropped",
			user: func() *model.User {
				self := int64(30)
				return &model.User{TelegramID: 30, Username: "loop", InvitedBy: &self}
			}(),
			mockSetup: func(users *mocks.MockUserRepository, ledgerRepo *mocks.MockLedgerRepository, cache *mocks.MockStatsCache, gateway *mocks.MockMessageGateway) {
				users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
					return u.InvitedBy == nil
				})).Return(true, nil)
				cache.On("InvalidateUser", int64(30)).Return()
			},
			expectedCreated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, ledgerRepo, cache, gateway := newUserForTest()
			tt.mockSetup(users, ledgerRepo, cache, gateway)

			created, err := svc.RegisterUser(context.Background(), tt.user)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedCreated, created)
			users.AssertExpectations(t)
			ledgerRepo.AssertExpectations(t)
		})
	}
}

func TestUserService_AllowRequest(t *testing.T) {
	svc, _, _, cache, _ := newUserForTest()

	cache.On("SettingInt", mock.Anything, "rate_limit_requests", DefaultRateLimitRequests).Return(2, nil)
	cache.On("SettingInt", mock.Anything, "rate_limit_window", DefaultRateLimitWindow).Return(10, nil)

	ok, err := svc.AllowRequest(context.Background(), 1)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.AllowRequest(context.Background(), 1)
	assert.NoError(t, err)
	assert.True(t, ok)

	// Third request inside the same window is denied.
	ok, err = svc.AllowRequest(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, ok)

	// Another user has an independent window.
	ok, err = svc.AllowRequest(context.Background(), 2)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestUserService_EnsureActive(t *testing.T) {
	svc, users, _, _, _ := newUserForTest()

	joined := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	users.On("GetUser", mock.Anything, int64(1)).
		Return(&model.User{TelegramID: 1, JoinedAt: joined}, nil)
	users.On("TouchLastActivity", mock.Anything, int64(1)).Return(nil)
	users.On("GetUser", mock.Anything, int64(2)).
		Return(&model.User{TelegramID: 2, Banned: true}, nil)
	users.On("GetUser", mock.Anything, int64(3)).Return(nil, repository.ErrNotFound)

	u, err := svc.EnsureActive(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), u.TelegramID)

	_, err = svc.EnsureActive(context.Background(), 2)
	assert.ErrorIs(t, err, ErrUserBanned)

	_, err = svc.EnsureActive(context.Background(), 3)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_MissingChannels(t *testing.T) {
	svc, users, _, _, gateway := newUserForTest()

	channels := []model.RequiredChannel{
		{Channel: "@activation"},
		{Channel: "@proofs"},
	}
	users.On("RequiredChannels", mock.Anything).Return(channels, nil)
	gateway.On("MembershipStatus", mock.Anything, "@activation", int64(1)).Return(model.MembershipMember, nil)
	gateway.On("MembershipStatus", mock.Anything, "@proofs", int64(1)).Return(model.MembershipNone, nil)

	missing, err := svc.MissingChannels(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, missing, 1)
	assert.Equal(t, "@proofs", missing[0].Channel)
}
