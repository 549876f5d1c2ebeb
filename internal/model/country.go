package model

import "time"

type Country struct {
	ID                int64
	Name              string
	Flag              string
	Platform          string
	ActivationChannel string
	IsActive          bool
	CreatedAt         time.Time
}

// CountrySummary is the cached aggregate row for the country list:
// the country plus how many numbers it currently has available.
type CountrySummary struct {
	ID                int64
	Name              string
	Flag              string
	Platform          string
	ActivationChannel string
	AvailableCount    int
}

// CountryCounts holds the per-country totals served by the cache layer.
type CountryCounts struct {
	Total   int
	Premium int
}

type Number struct {
	ID             int64
	CountryID      int64
	Number         string
	Platform       string
	AddedBy        int64
	AddedAt        time.Time
	IsPremium      bool
	PremiumPattern PremiumPattern
	TimesUsed      int
	LastUsed       *time.Time
}

// PremiumPattern classifies a digit string as one of the desirable
// shapes. PatternNone means the number is ordinary.
type PremiumPattern string

const (
	PatternNone       PremiumPattern = ""
	PatternRepeating  PremiumPattern = "repeating"
	PatternAscending  PremiumPattern = "ascending"
	PatternDescending PremiumPattern = "descending"
	PatternPalindrome PremiumPattern = "palindrome"
	PatternMirror     PremiumPattern = "mirror"
)

type ImportResult struct {
	Inserted int
	Premium  int
	Skipped  int
}
