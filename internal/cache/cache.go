// Package cache is the process-wide read-through TTL cache fronting the
// four read-heavy aggregates: the active country list, per-country number
// counts, settings, and per-user stats. Each kind has its own TTL and
// explicit invalidation hooks that writers call in the same logical
// operation as their write. Concurrent misses for the same key collapse
// to a single store read.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"

	"golang.org/x/sync/singleflight"
)

const (
	CountriesTTL     = 5 * time.Minute
	CountryCountsTTL = time.Minute
	SettingsTTL      = 10 * time.Minute
	UserStatsTTL     = 5 * time.Minute
)

// Store is the durable backing for every cache kind. Each method is one
// round-trip query.
type Store interface {
	ActiveCountries(ctx context.Context) ([]model.CountrySummary, error)
	CountryCounts(ctx context.Context, countryID int64) (model.CountryCounts, error)
	GetSetting(ctx context.Context, key string) (string, error)
	UserStats(ctx context.Context, userID int64) (model.UserStats, error)
}

type countriesEntry struct {
	values    []model.CountrySummary
	cacheTime time.Time
}

type countsEntry struct {
	counts    model.CountryCounts
	cacheTime time.Time
}

type settingEntry struct {
	value     string
	cacheTime time.Time
}

type userEntry struct {
	stats     model.UserStats
	cacheTime time.Time
}

type Cache struct {
	store Store
	now   func() time.Time

	mu        sync.RWMutex
	countries *countriesEntry
	counts    map[int64]countsEntry
	settings  map[string]settingEntry
	users     map[int64]userEntry

	group singleflight.Group
}

func New(store Store) *Cache {
	return &Cache{
		store:    store,
		now:      time.Now,
		counts:   make(map[int64]countsEntry),
		settings: make(map[string]settingEntry),
		users:    make(map[int64]userEntry),
	}
}

func (c *Cache) fresh(cacheTime time.Time, ttl time.Duration) bool {
	return c.now().Sub(cacheTime) <= ttl
}

// Countries returns the active country list with availability counts.
func (c *Cache) Countries(ctx context.Context) ([]model.CountrySummary, error) {
	c.mu.RLock()
	if c.countries != nil && c.fresh(c.countries.cacheTime, CountriesTTL) {
		values := copyCountries(c.countries.values)
		c.mu.RUnlock()
		return values, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("countries", func() (interface{}, error) {
		values, err := c.store.ActiveCountries(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.countries = &countriesEntry{values: values, cacheTime: c.now()}
		c.mu.Unlock()
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return copyCountries(v.([]model.CountrySummary)), nil
}

// CountryCounts returns the total/premium counts for one country.
func (c *Cache) CountryCounts(ctx context.Context, countryID int64) (model.CountryCounts, error) {
	c.mu.RLock()
	if e, ok := c.counts[countryID]; ok && c.fresh(e.cacheTime, CountryCountsTTL) {
		c.mu.RUnlock()
		return e.counts, nil
	}
	c.mu.RUnlock()

	key := fmt.Sprintf("counts:%d", countryID)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		counts, err := c.store.CountryCounts(ctx, countryID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.counts[countryID] = countsEntry{counts: counts, cacheTime: c.now()}
		c.mu.Unlock()
		return counts, nil
	})
	if err != nil {
		return model.CountryCounts{}, err
	}
	return v.(model.CountryCounts), nil
}

// Setting returns the stored value for key, falling back to def when the
// key is absent. The resolved value is cached either way.
func (c *Cache) Setting(ctx context.Context, key, def string) (string, error) {
	c.mu.RLock()
	if e, ok := c.settings[key]; ok && c.fresh(e.cacheTime, SettingsTTL) {
		c.mu.RUnlock()
		return e.value, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("setting:"+key, func() (interface{}, error) {
		value, err := c.store.GetSetting(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			value = def
		} else if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.settings[key] = settingEntry{value: value, cacheTime: c.now()}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SettingInt parses the setting as an integer, returning def when the
// value is absent or malformed.
func (c *Cache) SettingInt(ctx context.Context, key string, def int) (int, error) {
	raw, err := c.Setting(ctx, key, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// UserStats returns the cached points/PRO snapshot for a user.
func (c *Cache) UserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	c.mu.RLock()
	if e, ok := c.users[userID]; ok && c.fresh(e.cacheTime, UserStatsTTL) {
		c.mu.RUnlock()
		return e.stats, nil
	}
	c.mu.RUnlock()

	key := fmt.Sprintf("user:%d", userID)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		stats, err := c.store.UserStats(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.users[userID] = userEntry{stats: stats, cacheTime: c.now()}
		c.mu.Unlock()
		return stats, nil
	})
	if err != nil {
		return model.UserStats{}, err
	}
	return v.(model.UserStats), nil
}

// InvalidateCountry drops the counts entry for one country.
func (c *Cache) InvalidateCountry(countryID int64) {
	c.mu.Lock()
	delete(c.counts, countryID)
	c.mu.Unlock()
}

// InvalidateCountries clears the country list and every counts entry.
func (c *Cache) InvalidateCountries() {
	c.mu.Lock()
	c.countries = nil
	c.counts = make(map[int64]countsEntry)
	c.mu.Unlock()
}

func (c *Cache) InvalidateSettings() {
	c.mu.Lock()
	c.settings = make(map[string]settingEntry)
	c.mu.Unlock()
}

// InvalidateUser drops one user's cached stats.
func (c *Cache) InvalidateUser(userID int64) {
	c.mu.Lock()
	delete(c.users, userID)
	c.mu.Unlock()
}

func (c *Cache) InvalidateUsers() {
	c.mu.Lock()
	c.users = make(map[int64]userEntry)
	c.mu.Unlock()
}

func copyCountries(values []model.CountrySummary) []model.CountrySummary {
	out := make([]model.CountrySummary, len(values))
	copy(out, values)
	return out
}
