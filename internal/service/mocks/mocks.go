package mocks

import (
	"context"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, u *model.User) (bool, error) {
	args := m.Called(ctx, u)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	args := m.Called(ctx, telegramID, banned)
	return args.Error(0)
}

func (m *MockUserRepository) TopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *MockUserRepository) CountUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) TouchLastActivity(ctx context.Context, telegramID int64) error {
	args := m.Called(ctx, telegramID)
	return args.Error(0)
}

func (m *MockUserRepository) RequiredChannels(ctx context.Context) ([]model.RequiredChannel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RequiredChannel), args.Error(1)
}

func (m *MockUserRepository) AddRequiredChannel(ctx context.Context, channel string, isGroup bool) error {
	args := m.Called(ctx, channel, isGroup)
	return args.Error(0)
}

func (m *MockUserRepository) RemoveRequiredChannel(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockUserRepository) InsertLog(ctx context.Context, who int64, action, meta string) error {
	args := m.Called(ctx, who, action, meta)
	return args.Error(0)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) AddPoints(ctx context.Context, userID int64, delta int, reason string) error {
	args := m.Called(ctx, userID, delta, reason)
	return args.Error(0)
}

func (m *MockLedgerRepository) ClaimDailyBonus(ctx context.Context, userID int64, day time.Time, points int) error {
	args := m.Called(ctx, userID, day, points)
	return args.Error(0)
}

func (m *MockLedgerRepository) AwardInvite(ctx context.Context, inviterID, invitedID int64, points int) error {
	args := m.Called(ctx, inviterID, invitedID, points)
	return args.Error(0)
}

func (m *MockLedgerRepository) DailyBonusDate(ctx context.Context, userID int64) (*time.Time, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockLedgerRepository) PointsHistory(ctx context.Context, userID int64, limit int) ([]*model.PointsHistoryEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PointsHistoryEntry), args.Error(1)
}

func (m *MockLedgerRepository) TotalPointsDistributed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetSetting(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockSettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type MockProofRepository struct {
	mock.Mock
}

func (m *MockProofRepository) AddProof(ctx context.Context, p *model.Proof) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockProRepository struct {
	mock.Mock
}

func (m *MockProRepository) SetPro(ctx context.Context, userID int64, days int, method string, pointsCost int, expiresAt time.Time) error {
	args := m.Called(ctx, userID, days, method, pointsCost, expiresAt)
	return args.Error(0)
}

func (m *MockProRepository) ClearPro(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockProRepository) ExpiredProUserIDs(ctx context.Context, now time.Time) ([]int64, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockProRepository) ActiveSubscription(ctx context.Context, userID int64) (*model.ProSubscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProSubscription), args.Error(1)
}

func (m *MockProRepository) ProUsersCount(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type MockCountryRepository struct {
	mock.Mock
}

func (m *MockCountryRepository) GetCountry(ctx context.Context, countryID int64) (*model.Country, error) {
	args := m.Called(ctx, countryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Country), args.Error(1)
}

func (m *MockCountryRepository) ToggleCountryActive(ctx context.Context, countryID int64) (bool, error) {
	args := m.Called(ctx, countryID)
	return args.Bool(0), args.Error(1)
}

type MockNumberRepository struct {
	mock.Mock
}

func (m *MockNumberRepository) NumbersByCountry(ctx context.Context, countryID int64, premiumOnly bool) ([]*model.Number, error) {
	args := m.Called(ctx, countryID, premiumOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Number), args.Error(1)
}

func (m *MockNumberRepository) GetNumber(ctx context.Context, numberID int64) (*model.Number, error) {
	args := m.Called(ctx, numberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Number), args.Error(1)
}

func (m *MockNumberRepository) AddNumber(ctx context.Context, n *model.Number) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNumberRepository) BulkImportNumbers(ctx context.Context, numbers []*model.Number) error {
	args := m.Called(ctx, numbers)
	return args.Error(0)
}

func (m *MockNumberRepository) MarkNumberUsed(ctx context.Context, numberID int64) error {
	args := m.Called(ctx, numberID)
	return args.Error(0)
}

func (m *MockNumberRepository) PremiumNumbers(ctx context.Context, countryID int64) ([]*model.Number, error) {
	args := m.Called(ctx, countryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Number), args.Error(1)
}

func (m *MockNumberRepository) FindNumbersByPattern(ctx context.Context, countryID int64, pattern string, limit int) ([]*model.Number, error) {
	args := m.Called(ctx, countryID, pattern, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Number), args.Error(1)
}

func (m *MockNumberRepository) RecordPatternSearch(ctx context.Context, userID, countryID int64, pattern string, results int) error {
	args := m.Called(ctx, userID, countryID, pattern, results)
	return args.Error(0)
}

type MockBroadcastRepository struct {
	mock.Mock
}

func (m *MockBroadcastRepository) GetAdvertisement(ctx context.Context, adID int64) (*model.Advertisement, error) {
	args := m.Called(ctx, adID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Advertisement), args.Error(1)
}

func (m *MockBroadcastRepository) CreateAdvertisement(ctx context.Context, ad *model.Advertisement) (int64, error) {
	args := m.Called(ctx, ad)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBroadcastRepository) ListAdvertisements(ctx context.Context, limit int, activeOnly bool) ([]*model.Advertisement, error) {
	args := m.Called(ctx, limit, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Advertisement), args.Error(1)
}

func (m *MockBroadcastRepository) ToggleAdvertisement(ctx context.Context, adID int64) (bool, error) {
	args := m.Called(ctx, adID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBroadcastRepository) DeleteAdvertisement(ctx context.Context, adID int64) error {
	args := m.Called(ctx, adID)
	return args.Error(0)
}

func (m *MockBroadcastRepository) AddAdvertisementSent(ctx context.Context, adID int64, sent int) error {
	args := m.Called(ctx, adID, sent)
	return args.Error(0)
}

func (m *MockBroadcastRepository) UserIDsByAudience(ctx context.Context, audience model.Audience, cursor int64) ([]int64, error) {
	args := m.Called(ctx, audience, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockBroadcastRepository) CreateBroadcast(ctx context.Context, p *model.BroadcastProgress) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockBroadcastRepository) BroadcastStatus(ctx context.Context, broadcastID string) (model.BroadcastStatus, error) {
	args := m.Called(ctx, broadcastID)
	return args.Get(0).(model.BroadcastStatus), args.Error(1)
}

func (m *MockBroadcastRepository) UpdateBroadcastProgress(ctx context.Context, broadcastID string, sent, failed int, cursor int64, errText string) error {
	args := m.Called(ctx, broadcastID, sent, failed, cursor, errText)
	return args.Error(0)
}

func (m *MockBroadcastRepository) CompleteBroadcast(ctx context.Context, broadcastID string) error {
	args := m.Called(ctx, broadcastID)
	return args.Error(0)
}

func (m *MockBroadcastRepository) StopBroadcast(ctx context.Context, broadcastID string) (bool, error) {
	args := m.Called(ctx, broadcastID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBroadcastRepository) BroadcastReport(ctx context.Context, broadcastID string) (*model.BroadcastReport, error) {
	args := m.Called(ctx, broadcastID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BroadcastReport), args.Error(1)
}

func (m *MockBroadcastRepository) RunningBroadcasts(ctx context.Context) ([]model.BroadcastProgress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BroadcastProgress), args.Error(1)
}

type MockRetentionRepository struct {
	mock.Mock
}

func (m *MockRetentionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (repository.PurgeResult, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(repository.PurgeResult), args.Error(1)
}

type MockStatsCache struct {
	mock.Mock
}

func (m *MockStatsCache) Countries(ctx context.Context) ([]model.CountrySummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CountrySummary), args.Error(1)
}

func (m *MockStatsCache) CountryCounts(ctx context.Context, countryID int64) (model.CountryCounts, error) {
	args := m.Called(ctx, countryID)
	return args.Get(0).(model.CountryCounts), args.Error(1)
}

func (m *MockStatsCache) Setting(ctx context.Context, key, def string) (string, error) {
	args := m.Called(ctx, key, def)
	return args.String(0), args.Error(1)
}

func (m *MockStatsCache) SettingInt(ctx context.Context, key string, def int) (int, error) {
	args := m.Called(ctx, key, def)
	return args.Int(0), args.Error(1)
}

func (m *MockStatsCache) UserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.UserStats), args.Error(1)
}

func (m *MockStatsCache) InvalidateCountry(countryID int64) {
	m.Called(countryID)
}

func (m *MockStatsCache) InvalidateCountries() {
	m.Called()
}

func (m *MockStatsCache) InvalidateSettings() {
	m.Called()
}

func (m *MockStatsCache) InvalidateUser(userID int64) {
	m.Called(userID)
}

type MockMessageGateway struct {
	mock.Mock
}

func (m *MockMessageGateway) Send(ctx context.Context, chatID int64, text string) (int, error) {
	args := m.Called(ctx, chatID, text)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageGateway) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	args := m.Called(ctx, chatID, messageID, text)
	return args.Error(0)
}

func (m *MockMessageGateway) Delete(ctx context.Context, chatID int64, messageID int) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *MockMessageGateway) MembershipStatus(ctx context.Context, channel string, userID int64) (model.Membership, error) {
	args := m.Called(ctx, channel, userID)
	return args.Get(0).(model.Membership), args.Error(1)
}
