package service

import (
	"context"
	"errors"
	"fmt"

	"free-numbers-bot/internal/repository"
	"free-numbers-bot/pkg/logger"

	"go.uber.org/zap"
)

// SettingsService exposes the runtime-tunable knobs. Reads bypass the
// cache so an admin always sees the stored value; writes invalidate the
// cached settings so every consumer picks the change up within one read.
type SettingsService struct {
	repo  SettingsRepository
	cache StatsCache
}

func NewSettingsService(repo SettingsRepository, cache StatsCache) *SettingsService {
	return &SettingsService{
		repo:  repo,
		cache: cache,
	}
}

func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	value, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	if err := s.repo.SetSetting(ctx, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}

	s.cache.InvalidateSettings()
	logger.Logger().Info("setting updated", zap.String("key", key))
	return nil
}
