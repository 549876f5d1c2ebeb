package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// Default settings seeded at bootstrap. Values are strings; callers parse
// what they need through the cache layer.
var DefaultSettings = map[string]string{
	"activation_channel":      "",
	"proof_channel":           "",
	"numbers_channel":         "",
	"daily_bonus_points":      "10",
	"invite_points":           "5",
	"proof_points":            "3",
	"pro_days_duration":       "30",
	"pro_points_cost":         "100",
	"max_numbers_per_country": "1000",
	"auto_cleanup_days":       "30",
	"premium_number_bonus":    "2",
	"rate_limit_requests":     "5",
	"rate_limit_window":       "10",
}

// GetSetting returns the stored value for key, or ErrNotFound when the
// key is absent. Default fallback lives in the cache layer.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	query, args, err := squirrel.
		Select("value").
		From("settings").
		Where(squirrel.Eq{"key": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", err
	}

	err = r.db.GetContext(ctx, &value, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	query, args, err := squirrel.
		Insert("settings").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// SeedDefaultSettings inserts any missing default keys without touching
// values an operator already changed.
func (r *Repository) SeedDefaultSettings(ctx context.Context) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		for key, value := range DefaultSettings {
			query, args, err := squirrel.
				Insert("settings").
				Columns("key", "value").
				Values(key, value).
				Suffix("ON CONFLICT (key) DO NOTHING").
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to seed setting %s: %w", key, err)
			}
		}
		return nil
	})
}
