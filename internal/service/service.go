package service

import (
	"context"
	"errors"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserBanned           = errors.New("user is banned")
	ErrBonusAlreadyClaimed  = errors.New("daily bonus already claimed today")
	ErrInviteAlreadyAwarded = errors.New("invite points already awarded")
	ErrNotChannelMember     = errors.New("user has not joined the required channels")
	ErrInsufficientPoints   = errors.New("insufficient points")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrSettingNotFound      = errors.New("setting not found")
	ErrCountryNotFound      = errors.New("country not found")
	ErrAdNotFound           = errors.New("advertisement not found")
	ErrAdInactive           = errors.New("advertisement is not active")
	ErrInvalidAudience      = errors.New("invalid target audience")
	ErrBroadcastNotFound    = errors.New("broadcast not found")
)

type Service struct {
	*UserService
	*LedgerService
	*ProService
	*NumberService
	*BroadcastEngine
	*SettingsService
}

func NewService(users *UserService, ledger *LedgerService, pro *ProService, numbers *NumberService, broadcasts *BroadcastEngine, settings *SettingsService) *Service {
	return &Service{
		UserService:     users,
		LedgerService:   ledger,
		ProService:      pro,
		NumberService:   numbers,
		BroadcastEngine: broadcasts,
		SettingsService: settings,
	}
}

// StatsCache is the read-through cache surface the services consume.
// Implemented by cache.Cache.
type StatsCache interface {
	Countries(ctx context.Context) ([]model.CountrySummary, error)
	CountryCounts(ctx context.Context, countryID int64) (model.CountryCounts, error)
	Setting(ctx context.Context, key, def string) (string, error)
	SettingInt(ctx context.Context, key string, def int) (int, error)
	UserStats(ctx context.Context, userID int64) (model.UserStats, error)
	InvalidateCountry(countryID int64)
	InvalidateCountries()
	InvalidateSettings()
	InvalidateUser(userID int64)
}

// MessageGateway is the messaging surface the core consumes, implemented
// by telegram.Gateway. Any non-success is a delivery failure to be
// counted, not retried inline.
type MessageGateway interface {
	Send(ctx context.Context, chatID int64, text string) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	MembershipStatus(ctx context.Context, channel string, userID int64) (model.Membership, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) (bool, error)
	GetUser(ctx context.Context, telegramID int64) (*model.User, error)
	SetBanned(ctx context.Context, telegramID int64, banned bool) error
	TopUsers(ctx context.Context, limit int) ([]*model.User, error)
	CountUsers(ctx context.Context) (int, error)
	TouchLastActivity(ctx context.Context, telegramID int64) error
	RequiredChannels(ctx context.Context) ([]model.RequiredChannel, error)
	AddRequiredChannel(ctx context.Context, channel string, isGroup bool) error
	RemoveRequiredChannel(ctx context.Context, channel string) error
	InsertLog(ctx context.Context, who int64, action, meta string) error
}

type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type ProofRepository interface {
	AddProof(ctx context.Context, p *model.Proof) error
}

type LedgerRepository interface {
	AddPoints(ctx context.Context, userID int64, delta int, reason string) error
	ClaimDailyBonus(ctx context.Context, userID int64, day time.Time, points int) error
	AwardInvite(ctx context.Context, inviterID, invitedID int64, points int) error
	DailyBonusDate(ctx context.Context, userID int64) (*time.Time, error)
	PointsHistory(ctx context.Context, userID int64, limit int) ([]*model.PointsHistoryEntry, error)
	TotalPointsDistributed(ctx context.Context) (int, error)
}

type ProRepository interface {
	SetPro(ctx context.Context, userID int64, days int, method string, pointsCost int, expiresAt time.Time) error
	ClearPro(ctx context.Context, userID int64) error
	ExpiredProUserIDs(ctx context.Context, now time.Time) ([]int64, error)
	ActiveSubscription(ctx context.Context, userID int64) (*model.ProSubscription, error)
	ProUsersCount(ctx context.Context, now time.Time) (int, error)
}

type CountryRepository interface {
	GetCountry(ctx context.Context, countryID int64) (*model.Country, error)
	ToggleCountryActive(ctx context.Context, countryID int64) (bool, error)
}

type NumberRepository interface {
	NumbersByCountry(ctx context.Context, countryID int64, premiumOnly bool) ([]*model.Number, error)
	GetNumber(ctx context.Context, numberID int64) (*model.Number, error)
	AddNumber(ctx context.Context, n *model.Number) error
	BulkImportNumbers(ctx context.Context, numbers []*model.Number) error
	MarkNumberUsed(ctx context.Context, numberID int64) error
	PremiumNumbers(ctx context.Context, countryID int64) ([]*model.Number, error)
	FindNumbersByPattern(ctx context.Context, countryID int64, pattern string, limit int) ([]*model.Number, error)
	RecordPatternSearch(ctx context.Context, userID, countryID int64, pattern string, results int) error
}

type BroadcastRepository interface {
	GetAdvertisement(ctx context.Context, adID int64) (*model.Advertisement, error)
	CreateAdvertisement(ctx context.Context, ad *model.Advertisement) (int64, error)
	ListAdvertisements(ctx context.Context, limit int, activeOnly bool) ([]*model.Advertisement, error)
	ToggleAdvertisement(ctx context.Context, adID int64) (bool, error)
	DeleteAdvertisement(ctx context.Context, adID int64) error
	AddAdvertisementSent(ctx context.Context, adID int64, sent int) error

	UserIDsByAudience(ctx context.Context, audience model.Audience, cursor int64) ([]int64, error)
	CreateBroadcast(ctx context.Context, p *model.BroadcastProgress) error
	BroadcastStatus(ctx context.Context, broadcastID string) (model.BroadcastStatus, error)
	UpdateBroadcastProgress(ctx context.Context, broadcastID string, sent, failed int, cursor int64, errText string) error
	CompleteBroadcast(ctx context.Context, broadcastID string) error
	StopBroadcast(ctx context.Context, broadcastID string) (bool, error)
	BroadcastReport(ctx context.Context, broadcastID string) (*model.BroadcastReport, error)
	RunningBroadcasts(ctx context.Context) ([]model.BroadcastProgress, error)
}

type RetentionRepository interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (repository.PurgeResult, error)
}
