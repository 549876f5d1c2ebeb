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

type pointsHistoryEntry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Delta     int       `db:"points"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

func addPointsTx(ctx context.Context, tx *sqlx.Tx, userID int64, delta int, reason string) error {
	updateQuery, updateArgs, err := squirrel.
		Update("users").
		Set("points", squirrel.Expr("points + ?", delta)).
		Set("last_activity", time.Now().UTC()).
		Where(squirrel.Eq{"telegram_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
	if err != nil {
		return fmt.Errorf("failed to update points: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	historyQuery, historyArgs, err := squirrel.
		Insert("points_history").
		Columns("user_id", "points", "reason", "created_at").
		Values(userID, delta, reason, time.Now().UTC()).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, historyQuery, historyArgs...)
	if err != nil {
		return fmt.Errorf("failed to insert history row: %w", err)
	}
	return nil
}

// AddPoints adjusts the balance and appends the matching history row in
// one transaction. No partial credit is possible.
func (r *Repository) AddPoints(ctx context.Context, userID int64, delta int, reason string) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		return addPointsTx(ctx, tx, userID, delta, reason)
	})
}

// ClaimDailyBonus credits the bonus and records the claim day. The WHERE
// clause rejects a second claim on the same calendar day, so two
// concurrent claims serialize on the row and only one commits the credit.
func (r *Repository) ClaimDailyBonus(ctx context.Context, userID int64, day time.Time, points int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		claimDay := day.Truncate(24 * time.Hour)
		query, args, err := squirrel.
			Update("users").
			Set("daily_bonus_date", claimDay).
			Where(squirrel.And{
				squirrel.Eq{"telegram_id": userID},
				squirrel.Or{
					squirrel.Eq{"daily_bonus_date": nil},
					squirrel.Lt{"daily_bonus_date": claimDay},
				},
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to record bonus claim: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyClaimed
		}

		return addPointsTx(ctx, tx, userID, points, "daily_bonus")
	})
}

// AwardInvite credits the inviter exactly once per invited user. The
// invite_awarded flag on the invited row is the idempotency guard.
func (r *Repository) AwardInvite(ctx context.Context, inviterID, invitedID int64, points int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("users").
			Set("invite_awarded", true).
			Where(squirrel.And{
				squirrel.Eq{"telegram_id": invitedID},
				squirrel.Eq{"invite_awarded": false},
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to mark invite awarded: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyAwarded
		}

		return addPointsTx(ctx, tx, inviterID, points, "invite")
	})
}

func (r *Repository) DailyBonusDate(ctx context.Context, userID int64) (*time.Time, error) {
	var claimed sql.NullTime
	query, args, err := squirrel.
		Select("daily_bonus_date").
		From("users").
		Where(squirrel.Eq{"telegram_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &claimed, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !claimed.Valid {
		return nil, nil
	}
	t := claimed.Time
	return &t, nil
}

func (r *Repository) PointsHistory(ctx context.Context, userID int64, limit int) ([]*model.PointsHistoryEntry, error) {
	query, args, err := squirrel.
		Select("*").
		From("points_history").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []pointsHistoryEntry
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get points history: %w", err)
	}

	entries := make([]*model.PointsHistoryEntry, len(rows))
	for i, row := range rows {
		entries[i] = &model.PointsHistoryEntry{
			ID:        row.ID,
			UserID:    row.UserID,
			Delta:     row.Delta,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt,
		}
	}
	return entries, nil
}

// TotalPointsDistributed sums all positive history deltas.
func (r *Repository) TotalPointsDistributed(ctx context.Context) (int, error) {
	query, args, err := squirrel.
		Select("COALESCE(SUM(points), 0)").
		From("points_history").
		Where(squirrel.Gt{"points": 0}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var total int
	err = r.db.GetContext(ctx, &total, query, args...)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// UserStats is the single round-trip backing query for the user_stats
// cache kind.
func (r *Repository) UserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	var row struct {
		Points    int        `db:"points"`
		IsPro     bool       `db:"is_pro"`
		ProExpiry *time.Time `db:"pro_expiry"`
	}
	query, args, err := squirrel.
		Select("points", "is_pro", "pro_expiry").
		From("users").
		Where(squirrel.Eq{"telegram_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return model.UserStats{}, err
	}

	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserStats{}, ErrNotFound
		}
		return model.UserStats{}, err
	}

	return model.UserStats{
		Points:    row.Points,
		IsPro:     row.IsPro,
		ProExpiry: row.ProExpiry,
	}, nil
}
