package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	mu sync.Mutex

	countries      []model.CountrySummary
	countriesCalls int32
	countsCalls    int32
	settingCalls   int32
	statsCalls     int32

	stats    model.UserStats
	settings map[string]string

	statsErr  error
	statsGate chan struct{}
}

func (f *fakeStore) ActiveCountries(ctx context.Context) ([]model.CountrySummary, error) {
	atomic.AddInt32(&f.countriesCalls, 1)
	return f.countries, nil
}

func (f *fakeStore) CountryCounts(ctx context.Context, countryID int64) (model.CountryCounts, error) {
	atomic.AddInt32(&f.countsCalls, 1)
	return model.CountryCounts{Total: 42, Premium: 7}, nil
}

func (f *fakeStore) GetSetting(ctx context.Context, key string) (string, error) {
	atomic.AddInt32(&f.settingCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.settings[key]; ok {
		return v, nil
	}
	return "", repository.ErrNotFound
}

func (f *fakeStore) UserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	if f.statsGate != nil {
		<-f.statsGate
	}
	atomic.AddInt32(&f.statsCalls, 1)
	if f.statsErr != nil {
		return model.UserStats{}, f.statsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, nil
}

func TestCache_UserStatsTTL(t *testing.T) {
	store := &fakeStore{stats: model.UserStats{Points: 10}}
	c := New(store)

	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	stats, err := c.UserStats(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 10, stats.Points)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.statsCalls))

	// Fresh entry is served without touching the store, even after the
	// backing row changed.
	store.mu.Lock()
	store.stats = model.UserStats{Points: 99}
	store.mu.Unlock()

	stats, err = c.UserStats(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 10, stats.Points)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.statsCalls))

	// Past the TTL the next read refreshes.
	current = current.Add(UserStatsTTL + time.Second)
	stats, err = c.UserStats(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 99, stats.Points)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.statsCalls))
}

func TestCache_InvalidateUser(t *testing.T) {
	store := &fakeStore{stats: model.UserStats{Points: 5}}
	c := New(store)

	_, err := c.UserStats(context.Background(), 7)
	assert.NoError(t, err)

	store.mu.Lock()
	store.stats = model.UserStats{Points: 6}
	store.mu.Unlock()

	c.InvalidateUser(7)

	stats, err := c.UserStats(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, 6, stats.Points)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.statsCalls))
}

func TestCache_SingleFlight(t *testing.T) {
	store := &fakeStore{
		stats:     model.UserStats{Points: 3},
		statsGate: make(chan struct{}),
	}
	c := New(store)

	const callers = 16
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			stats, err := c.UserStats(context.Background(), 1)
			assert.NoError(t, err)
			assert.Equal(t, 3, stats.Points)
		}()
	}

	// Let every caller reach the miss path before the store answers.
	time.Sleep(50 * time.Millisecond)
	close(store.statsGate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&store.statsCalls),
		"concurrent misses must collapse to one store read")
}

func TestCache_RefreshErrorPropagates(t *testing.T) {
	store := &fakeStore{statsErr: assert.AnError}
	c := New(store)

	_, err := c.UserStats(context.Background(), 1)
	assert.Error(t, err)

	// Errors are not cached; the next call hits the store again.
	store.statsErr = nil
	stats, err := c.UserStats(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 0, stats.Points)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.statsCalls))
}

func TestCache_SettingDefault(t *testing.T) {
	store := &fakeStore{settings: map[string]string{"invite_points": "8"}}
	c := New(store)

	v, err := c.Setting(context.Background(), "invite_points", "5")
	assert.NoError(t, err)
	assert.Equal(t, "8", v)

	v, err = c.Setting(context.Background(), "missing_key", "fallback")
	assert.NoError(t, err)
	assert.Equal(t, "fallback", v)

	n, err := c.SettingInt(context.Background(), "invite_points", 5)
	assert.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = c.SettingInt(context.Background(), "absent", 12)
	assert.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestCache_SettingInvalidation(t *testing.T) {
	store := &fakeStore{settings: map[string]string{"daily_bonus_points": "10"}}
	c := New(store)

	v, err := c.Setting(context.Background(), "daily_bonus_points", "10")
	assert.NoError(t, err)
	assert.Equal(t, "10", v)

	store.mu.Lock()
	store.settings["daily_bonus_points"] = "20"
	store.mu.Unlock()

	// Still served from cache until the writer invalidates.
	v, _ = c.Setting(context.Background(), "daily_bonus_points", "10")
	assert.Equal(t, "10", v)

	c.InvalidateSettings()

	v, err = c.Setting(context.Background(), "daily_bonus_points", "10")
	assert.NoError(t, err)
	assert.Equal(t, "20", v)
}

func TestCache_Countries(t *testing.T) {
	store := &fakeStore{countries: []model.CountrySummary{
		{ID: 1, Name: "Egypt", AvailableCount: 10},
		{ID: 2, Name: "Morocco", AvailableCount: 4},
	}}
	c := New(store)

	list, err := c.Countries(context.Background())
	assert.NoError(t, err)
	assert.Len(t, list, 2)

	// Callers get copies; mutating the result must not poison the cache.
	list[0].Name = "mutated"
	list, err = c.Countries(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "Egypt", list[0].Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.countriesCalls))

	c.InvalidateCountries()
	_, err = c.Countries(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.countriesCalls))
}

func TestCache_CountryCounts(t *testing.T) {
	store := &fakeStore{}
	c := New(store)

	counts, err := c.CountryCounts(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, 42, counts.Total)
	assert.Equal(t, 7, counts.Premium)

	_, _ = c.CountryCounts(context.Background(), 3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.countsCalls))

	c.InvalidateCountry(3)
	_, _ = c.CountryCounts(context.Background(), 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.countsCalls))
}
