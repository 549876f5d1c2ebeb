package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"free-numbers-bot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type number struct {
	ID             int64      `db:"id"`
	CountryID      int64      `db:"country_id"`
	Number         string     `db:"number"`
	Platform       string     `db:"platform"`
	AddedBy        int64      `db:"added_by"`
	AddedAt        time.Time  `db:"added_at"`
	IsPremium      bool       `db:"is_premium"`
	PremiumPattern *string    `db:"premium_pattern"`
	TimesUsed      int        `db:"times_used"`
	LastUsed       *time.Time `db:"last_used"`
}

func (n *number) toModel() *model.Number {
	pattern := model.PatternNone
	if n.PremiumPattern != nil {
		pattern = model.PremiumPattern(*n.PremiumPattern)
	}
	return &model.Number{
		ID:             n.ID,
		CountryID:      n.CountryID,
		Number:         n.Number,
		Platform:       n.Platform,
		AddedBy:        n.AddedBy,
		AddedAt:        n.AddedAt,
		IsPremium:      n.IsPremium,
		PremiumPattern: pattern,
		TimesUsed:      n.TimesUsed,
		LastUsed:       n.LastUsed,
	}
}

func numbersToModels(rows []number) []*model.Number {
	list := make([]*model.Number, len(rows))
	for i := range rows {
		list[i] = rows[i].toModel()
	}
	return list
}

// NumbersByCountry returns the candidate pool for the random selector,
// ordered by id so index sampling is stable.
func (r *Repository) NumbersByCountry(ctx context.Context, countryID int64, premiumOnly bool) ([]*model.Number, error) {
	b := squirrel.
		Select("*").
		From("numbers").
		Where(squirrel.Eq{"country_id": countryID})
	if premiumOnly {
		b = b.Where(squirrel.Eq{"is_premium": true})
	}

	query, args, err := b.
		OrderBy("id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []number
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get numbers: %w", err)
	}
	return numbersToModels(rows), nil
}

func (r *Repository) GetNumber(ctx context.Context, numberID int64) (*model.Number, error) {
	var n number
	query, args, err := squirrel.
		Select("*").
		From("numbers").
		Where(squirrel.Eq{"id": numberID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &n, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n.toModel(), nil
}

func (r *Repository) AddNumber(ctx context.Context, n *model.Number) error {
	var pattern *string
	if n.PremiumPattern != model.PatternNone {
		p := string(n.PremiumPattern)
		pattern = &p
	}

	query, args, err := squirrel.
		Insert("numbers").
		SetMap(map[string]interface{}{
			"country_id":      n.CountryID,
			"number":          n.Number,
			"platform":        n.Platform,
			"added_by":        n.AddedBy,
			"added_at":        time.Now().UTC(),
			"is_premium":      n.IsPremium,
			"premium_pattern": pattern,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert number: %w", err)
	}
	return nil
}

// BulkImportNumbers inserts a batch inside one transaction so a failed
// import leaves nothing behind.
func (r *Repository) BulkImportNumbers(ctx context.Context, numbers []*model.Number) error {
	if len(numbers) == 0 {
		return nil
	}
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		builder := squirrel.
			Insert("numbers").
			Columns("country_id", "number", "platform", "added_by", "added_at", "is_premium", "premium_pattern")

		now := time.Now().UTC()
		for _, n := range numbers {
			var pattern *string
			if n.PremiumPattern != model.PatternNone {
				p := string(n.PremiumPattern)
				pattern = &p
			}
			builder = builder.Values(n.CountryID, n.Number, n.Platform, n.AddedBy, now, n.IsPremium, pattern)
		}

		query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to bulk insert numbers: %w", err)
		}
		return nil
	})
}

func (r *Repository) MarkNumberUsed(ctx context.Context, numberID int64) error {
	query, args, err := squirrel.
		Update("numbers").
		Set("times_used", squirrel.Expr("times_used + 1")).
		Set("last_used", time.Now().UTC()).
		Where(squirrel.Eq{"id": numberID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark number used: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// PremiumNumbers lists the premium pool for a country, least-used first.
func (r *Repository) PremiumNumbers(ctx context.Context, countryID int64) ([]*model.Number, error) {
	query, args, err := squirrel.
		Select("*").
		From("numbers").
		Where(squirrel.And{
			squirrel.Eq{"country_id": countryID},
			squirrel.Eq{"is_premium": true},
		}).
		OrderBy("times_used ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []number
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get premium numbers: %w", err)
	}
	return numbersToModels(rows), nil
}

func (r *Repository) FindNumbersByPattern(ctx context.Context, countryID int64, pattern string, limit int) ([]*model.Number, error) {
	query, args, err := squirrel.
		Select("*").
		From("numbers").
		Where(squirrel.And{
			squirrel.Eq{"country_id": countryID},
			squirrel.Like{"number": "%" + pattern + "%"},
		}).
		OrderBy("is_premium DESC", "times_used ASC", "id ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []number
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search numbers: %w", err)
	}
	return numbersToModels(rows), nil
}

func (r *Repository) RecordPatternSearch(ctx context.Context, userID, countryID int64, pattern string, results int) error {
	query, args, err := squirrel.
		Insert("number_patterns").
		Columns("user_id", "country_id", "pattern", "results_count", "searched_at").
		Values(userID, countryID, pattern, results, time.Now().UTC()).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to record pattern search: %w", err)
	}
	return nil
}
