package service

import (
	"context"
	"fmt"
	"testing"

	"free-numbers-bot/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"free-numbers-bot/internal/service/mocks"
)

func TestPremiumPatternOf(t *testing.T) {
	tests := []struct {
		number   string
		expected model.PremiumPattern
	}{
		{"0000555", model.PatternRepeating},
		{"12345", model.PatternAscending},
		{"54321", model.PatternDescending},
		{"12321", model.PatternPalindrome},
		{"50005", model.PatternPalindrome},
		{"13579", model.PatternNone},
		{"51235", model.PatternMirror},
		{"+1 (234) 5", model.PatternAscending},
		{"777", model.PatternRepeating},
		{"12", model.PatternNone},
		{"ab", model.PatternNone},
		{"", model.PatternNone},
		{"12031", model.PatternMirror},
		{"987654", model.PatternDescending},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			assert.Equal(t, tt.expected, PremiumPatternOf(tt.number))
		})
	}
}

func numberPool(countryID int64, premium bool, n int) []*model.Number {
	pool := make([]*model.Number, n)
	for i := range pool {
		pool[i] = &model.Number{
			ID:        int64(i + 1),
			CountryID: countryID,
			Number:    fmt.Sprintf("96%07d", i),
			IsPremium: premium,
		}
	}
	return pool
}

func TestNumberService_PickRandom(t *testing.T) {
	tests := []struct {
		name          string
		preferPremium bool
		mockSetup     func(*mocks.MockNumberRepository)
		check         func(*testing.T, *model.Number)
	}{
		{
			name:          "premium preferred and available",
			preferPremium: true,
			mockSetup: func(repo *mocks.MockNumberRepository) {
				repo.On("NumbersByCountry", mock.Anything, int64(1), true).
					Return(numberPool(1, true, 5), nil)
			},
			check: func(t *testing.T, n *model.Number) {
				assert.NotNil(t, n)
				assert.True(t, n.IsPremium)
			},
		},
		{
			name:          "premium pool empty falls back to general",
			preferPremium: true,
			mockSetup: func(repo *mocks.MockNumberRepository) {
				repo.On("NumbersByCountry", mock.Anything, int64(1), true).
					Return([]*model.Number{}, nil)
				repo.On("NumbersByCountry", mock.Anything, int64(1), false).
					Return(numberPool(1, false, 5), nil)
			},
			check: func(t *testing.T, n *model.Number) {
				assert.NotNil(t, n)
				assert.False(t, n.IsPremium)
			},
		},
		{
			name: "no numbers at all",
			mockSetup: func(repo *mocks.MockNumberRepository) {
				repo.On("NumbersByCountry", mock.Anything, int64(1), false).
					Return([]*model.Number{}, nil)
			},
			check: func(t *testing.T, n *model.Number) {
				assert.Nil(t, n)
			},
		},
		{
			name: "large pool goes through index sampling",
			mockSetup: func(repo *mocks.MockNumberRepository) {
				repo.On("NumbersByCountry", mock.Anything, int64(1), false).
					Return(numberPool(1, false, 500), nil)
			},
			check: func(t *testing.T, n *model.Number) {
				assert.NotNil(t, n)
				assert.GreaterOrEqual(t, n.ID, int64(1))
				assert.LessOrEqual(t, n.ID, int64(500))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockNumberRepository{}
			countries := &mocks.MockCountryRepository{}
			cache := &mocks.MockStatsCache{}
			svc := NewNumberService(repo, countries, &mocks.MockUserRepository{}, cache)
			tt.mockSetup(repo)

			n, err := svc.PickRandom(context.Background(), 1, tt.preferPremium)
			assert.NoError(t, err)
			tt.check(t, n)
			repo.AssertExpectations(t)
		})
	}
}

func TestNumberService_PickRandom_NeverNonPremiumWhenPremiumExists(t *testing.T) {
	repo := &mocks.MockNumberRepository{}
	countries := &mocks.MockCountryRepository{}
	svc := NewNumberService(repo, countries, &mocks.MockUserRepository{}, &mocks.MockStatsCache{})

	repo.On("NumbersByCountry", mock.Anything, int64(1), true).
		Return(numberPool(1, true, 3), nil)

	for i := 0; i < 200; i++ {
		n, err := svc.PickRandom(context.Background(), 1, true)
		assert.NoError(t, err)
		assert.True(t, n.IsPremium)
	}
}

func TestNumberService_BulkImport(t *testing.T) {
	repo := &mocks.MockNumberRepository{}
	countries := &mocks.MockCountryRepository{}
	cache := &mocks.MockStatsCache{}
	svc := NewNumberService(repo, countries, &mocks.MockUserRepository{}, cache)

	countries.On("GetCountry", mock.Anything, int64(3)).Return(&model.Country{ID: 3, Name: "Yemen"}, nil)

	var imported []*model.Number
	repo.On("BulkImportNumbers", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			imported = args.Get(1).([]*model.Number)
		}).
		Return(nil)
	cache.On("InvalidateCountry", int64(3)).Return()
	cache.On("InvalidateCountries").Return()

	raw := []string{"12345", "12345", "  ", "98765", "13579"}
	res, err := svc.BulkImport(context.Background(), 3, 42, "Telegram", raw)
	assert.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 2, res.Premium)
	assert.Equal(t, 2, res.Skipped)

	assert.Len(t, imported, 3)
	assert.Equal(t, model.PatternAscending, imported[0].PremiumPattern)
	assert.Equal(t, model.PatternDescending, imported[1].PremiumPattern)
	assert.False(t, imported[2].IsPremium)
}

func TestNumberService_AddNumber_Classifies(t *testing.T) {
	repo := &mocks.MockNumberRepository{}
	countries := &mocks.MockCountryRepository{}
	cache := &mocks.MockStatsCache{}
	svc := NewNumberService(repo, countries, &mocks.MockUserRepository{}, cache)

	repo.On("AddNumber", mock.Anything, mock.Anything).Return(nil)
	cache.On("InvalidateCountry", int64(2)).Return()
	cache.On("InvalidateCountries").Return()

	n := &model.Number{CountryID: 2, Number: "50005"}
	assert.NoError(t, svc.AddNumber(context.Background(), n))
	assert.True(t, n.IsPremium)
	assert.Equal(t, model.PatternPalindrome, n.PremiumPattern)
}
