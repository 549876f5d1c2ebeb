package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"
	"free-numbers-bot/pkg/logger"

	"go.uber.org/zap"
)

const (
	// Pools below this size are drawn from uniformly. Larger pools go
	// through index sampling so no unbounded set is ever fully shuffled.
	directPickThreshold = 100
	pickSampleSize      = 10

	patternSearchLimit = 50
)

// NumberService hands out numbers: random selection with an optional
// premium preference, pattern search for PRO users, and admin imports.
type NumberService struct {
	repo      NumberRepository
	countries CountryRepository
	cache     StatsCache
	users     UserRepository

	mu  sync.Mutex
	rng *rand.Rand
}

func NewNumberService(repo NumberRepository, countries CountryRepository, users UserRepository, cache StatsCache) *NumberService {
	return &NumberService{
		repo:      repo,
		countries: countries,
		cache:     cache,
		users:     users,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Countries returns the cached active-country list with counts.
func (s *NumberService) Countries(ctx context.Context) ([]model.CountrySummary, error) {
	countries, err := s.cache.Countries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get countries: %w", err)
	}
	return countries, nil
}

// CountryCounts returns the cached total and premium counts.
func (s *NumberService) CountryCounts(ctx context.Context, countryID int64) (model.CountryCounts, error) {
	counts, err := s.cache.CountryCounts(ctx, countryID)
	if err != nil {
		return model.CountryCounts{}, fmt.Errorf("failed to get country counts: %w", err)
	}
	return counts, nil
}

// ToggleCountry flips a country's active flag and returns the new state.
// Countries are soft-activated rather than deleted.
func (s *NumberService) ToggleCountry(ctx context.Context, countryID int64) (bool, error) {
	active, err := s.countries.ToggleCountryActive(ctx, countryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrCountryNotFound
		}
		return false, fmt.Errorf("failed to toggle country: %w", err)
	}

	s.cache.InvalidateCountry(countryID)
	s.cache.InvalidateCountries()
	return active, nil
}

// PremiumPatternOf classifies a raw number string. Non-digit characters
// are stripped first; strings shorter than three digits never qualify.
// A string matching several shapes gets the first match in a fixed
// order, so classification is deterministic: a palindromic digit run
// like "50005" is a palindrome, not repeating or mirror.
func PremiumPatternOf(number string) model.PremiumPattern {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 3 {
		return model.PatternNone
	}

	ascending, descending := true, true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[i-1]+1 {
			ascending = false
		}
		if digits[i] != digits[i-1]-1 {
			descending = false
		}
	}
	if ascending {
		return model.PatternAscending
	}
	if descending {
		return model.PatternDescending
	}

	palindrome := true
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		if digits[i] != digits[j] {
			palindrome = false
			break
		}
	}
	if palindrome {
		return model.PatternPalindrome
	}

	run := 1
	for i := 1; i < len(digits); i++ {
		if digits[i] == digits[i-1] {
			run++
			if run >= 3 {
				return model.PatternRepeating
			}
		} else {
			run = 1
		}
	}

	if digits[0] == digits[len(digits)-1] {
		return model.PatternMirror
	}
	return model.PatternNone
}

// PickRandom selects one available number for the country. Small pools
// are picked from uniformly; large pools are narrowed to a random index
// sample first, trading perfect uniformity for bounded work. With
// preferPremium the premium pool is tried first and the general pool is
// the fallback when it is empty. Returns nil when nothing is available.
func (s *NumberService) PickRandom(ctx context.Context, countryID int64, preferPremium bool) (*model.Number, error) {
	if preferPremium {
		pool, err := s.repo.NumbersByCountry(ctx, countryID, true)
		if err != nil {
			return nil, fmt.Errorf("failed to load premium numbers: %w", err)
		}
		if len(pool) > 0 {
			return s.pickFrom(pool), nil
		}
	}

	pool, err := s.repo.NumbersByCountry(ctx, countryID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load numbers: %w", err)
	}
	if len(pool) == 0 {
		return nil, nil
	}
	return s.pickFrom(pool), nil
}

func (s *NumberService) pickFrom(pool []*model.Number) *model.Number {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(pool) < directPickThreshold {
		return pool[s.rng.Intn(len(pool))]
	}

	indices := s.rng.Perm(len(pool))[:pickSampleSize]
	return pool[indices[s.rng.Intn(len(indices))]]
}

// AddNumber classifies and stores a single number, then invalidates the
// country's cached counts.
func (s *NumberService) AddNumber(ctx context.Context, n *model.Number) error {
	n.PremiumPattern = PremiumPatternOf(n.Number)
	n.IsPremium = n.PremiumPattern != model.PatternNone

	if err := s.repo.AddNumber(ctx, n); err != nil {
		return fmt.Errorf("failed to add number: %w", err)
	}

	s.cache.InvalidateCountry(n.CountryID)
	s.cache.InvalidateCountries()
	return nil
}

// BulkImport classifies and inserts a batch of raw number strings for a
// country, skipping blanks and duplicates within the batch.
func (s *NumberService) BulkImport(ctx context.Context, countryID, addedBy int64, platform string, raw []string) (model.ImportResult, error) {
	var res model.ImportResult

	if _, err := s.countries.GetCountry(ctx, countryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return res, ErrCountryNotFound
		}
		return res, fmt.Errorf("failed to get country: %w", err)
	}

	seen := make(map[string]struct{}, len(raw))
	batch := make([]*model.Number, 0, len(raw))
	for _, line := range raw {
		number := strings.TrimSpace(line)
		if number == "" {
			res.Skipped++
			continue
		}
		if _, dup := seen[number]; dup {
			res.Skipped++
			continue
		}
		seen[number] = struct{}{}

		pattern := PremiumPatternOf(number)
		n := &model.Number{
			CountryID:      countryID,
			Number:         number,
			Platform:       platform,
			AddedBy:        addedBy,
			IsPremium:      pattern != model.PatternNone,
			PremiumPattern: pattern,
		}
		if n.IsPremium {
			res.Premium++
		}
		batch = append(batch, n)
	}

	if len(batch) > 0 {
		if err := s.repo.BulkImportNumbers(ctx, batch); err != nil {
			return res, fmt.Errorf("failed to import numbers: %w", err)
		}
		res.Inserted = len(batch)
	}

	s.cache.InvalidateCountry(countryID)
	s.cache.InvalidateCountries()

	logger.Logger().Info("numbers imported",
		zap.Int64("country_id", countryID),
		zap.Int("inserted", res.Inserted),
		zap.Int("premium", res.Premium),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// MarkUsed records a hand-out: bumps the usage counter and stamps
// last_used, then invalidates the country's cached counts.
func (s *NumberService) MarkUsed(ctx context.Context, n *model.Number) error {
	if err := s.repo.MarkNumberUsed(ctx, n.ID); err != nil {
		return fmt.Errorf("failed to mark number used: %w", err)
	}

	s.cache.InvalidateCountry(n.CountryID)
	s.cache.InvalidateCountries()
	return nil
}

// PremiumNumbers lists a country's premium numbers, optionally filtered
// to one pattern type.
func (s *NumberService) PremiumNumbers(ctx context.Context, countryID int64, pattern model.PremiumPattern) ([]*model.Number, error) {
	numbers, err := s.repo.PremiumNumbers(ctx, countryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list premium numbers: %w", err)
	}
	if pattern == model.PatternNone {
		return numbers, nil
	}

	filtered := numbers[:0]
	for _, n := range numbers {
		if n.PremiumPattern == pattern {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}

// FindByPattern searches a country's numbers by digit substring and
// records the search for analytics. Premium matches sort first.
func (s *NumberService) FindByPattern(ctx context.Context, userID, countryID int64, pattern string) ([]*model.Number, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}

	numbers, err := s.repo.FindNumbersByPattern(ctx, countryID, pattern, patternSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search numbers: %w", err)
	}

	if err := s.repo.RecordPatternSearch(ctx, userID, countryID, pattern, len(numbers)); err != nil {
		logger.Logger().Warn("failed to record pattern search",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return numbers, nil
}
