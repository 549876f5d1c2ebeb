package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"free-numbers-bot/internal/model"

	"github.com/Masterminds/squirrel"
)

type country struct {
	ID                int64     `db:"id"`
	Name              string    `db:"name"`
	Flag              string    `db:"flag"`
	Platform          string    `db:"platform"`
	ActivationChannel string    `db:"activation_channel"`
	IsActive          bool      `db:"is_active"`
	CreatedAt         time.Time `db:"created_at"`
}

type countrySummary struct {
	ID                int64  `db:"id"`
	Name              string `db:"name"`
	Flag              string `db:"flag"`
	Platform          string `db:"platform"`
	ActivationChannel string `db:"activation_channel"`
	AvailableCount    int    `db:"available_count"`
}

// ActiveCountries is the backing query for the countries cache kind:
// active countries joined with their available number counts, one
// round trip.
func (r *Repository) ActiveCountries(ctx context.Context) ([]model.CountrySummary, error) {
	query, args, err := squirrel.
		Select(
			"c.id",
			"c.name",
			"c.flag",
			"c.platform",
			"COALESCE(c.activation_channel, '') AS activation_channel",
			"COUNT(n.id) AS available_count",
		).
		From("countries c").
		LeftJoin("numbers n ON c.id = n.country_id").
		Where(squirrel.Eq{"c.is_active": true}).
		GroupBy("c.id", "c.name", "c.flag", "c.platform", "c.activation_channel").
		OrderBy("c.name").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []countrySummary
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get active countries: %w", err)
	}

	summaries := make([]model.CountrySummary, len(rows))
	for i, row := range rows {
		summaries[i] = model.CountrySummary{
			ID:                row.ID,
			Name:              row.Name,
			Flag:              row.Flag,
			Platform:          row.Platform,
			ActivationChannel: row.ActivationChannel,
			AvailableCount:    row.AvailableCount,
		}
	}
	return summaries, nil
}

// CountryCounts is the backing query for the country_counts cache kind.
func (r *Repository) CountryCounts(ctx context.Context, countryID int64) (model.CountryCounts, error) {
	var row struct {
		Total   int `db:"total_count"`
		Premium int `db:"premium_count"`
	}
	query, args, err := squirrel.
		Select(
			"COUNT(*) AS total_count",
			"COALESCE(SUM(CASE WHEN is_premium THEN 1 ELSE 0 END), 0) AS premium_count",
		).
		From("numbers").
		Where(squirrel.Eq{"country_id": countryID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return model.CountryCounts{}, err
	}

	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		return model.CountryCounts{}, fmt.Errorf("failed to get country counts: %w", err)
	}

	return model.CountryCounts{Total: row.Total, Premium: row.Premium}, nil
}

func (r *Repository) GetCountry(ctx context.Context, countryID int64) (*model.Country, error) {
	var c country
	query, args, err := squirrel.
		Select("id", "name", "flag", "platform", "COALESCE(activation_channel, '') AS activation_channel", "is_active", "created_at").
		From("countries").
		Where(squirrel.Eq{"id": countryID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &c, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.Country{
		ID:                c.ID,
		Name:              c.Name,
		Flag:              c.Flag,
		Platform:          c.Platform,
		ActivationChannel: c.ActivationChannel,
		IsActive:          c.IsActive,
		CreatedAt:         c.CreatedAt,
	}, nil
}

// ToggleCountryActive flips the soft-activation flag and returns the new
// state. Countries are never deleted this way.
func (r *Repository) ToggleCountryActive(ctx context.Context, countryID int64) (bool, error) {
	query, args, err := squirrel.
		Update("countries").
		Set("is_active", squirrel.Expr("NOT is_active")).
		Where(squirrel.Eq{"id": countryID}).
		Suffix("RETURNING is_active").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, err
	}

	var active bool
	err = r.db.GetContext(ctx, &active, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to toggle country: %w", err)
	}
	return active, nil
}
