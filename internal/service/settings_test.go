package service

import (
	"context"
	"testing"

	"free-numbers-bot/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"free-numbers-bot/internal/service/mocks"
)

func TestSettingsService(t *testing.T) {
	repo := &mocks.MockSettingsRepository{}
	cache := &mocks.MockStatsCache{}
	svc := NewSettingsService(repo, cache)

	repo.On("GetSetting", mock.Anything, "daily_bonus_points").Return("10", nil)
	repo.On("GetSetting", mock.Anything, "missing_key").Return("", repository.ErrNotFound)

	value, err := svc.Get(context.Background(), "daily_bonus_points")
	assert.NoError(t, err)
	assert.Equal(t, "10", value)

	_, err = svc.Get(context.Background(), "missing_key")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	// A write must invalidate the cached settings before returning, so
	// no reader keeps serving the old value past one refresh.
	repo.On("SetSetting", mock.Anything, "daily_bonus_points", "20").Return(nil)
	cache.On("InvalidateSettings").Return()

	assert.NoError(t, svc.Set(context.Background(), "daily_bonus_points", "20"))
	cache.AssertCalled(t, "InvalidateSettings")
}
