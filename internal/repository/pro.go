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

type proSubscription struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	Method     string    `db:"method"`
	PointsPaid int       `db:"points_paid"`
	Days       int       `db:"days"`
	StartedAt  time.Time `db:"started_at"`
	ExpiresAt  time.Time `db:"expires_at"`
	IsActive   bool      `db:"is_active"`
}

// SetPro writes the PRO flag, the expiry, and the subscription row in one
// transaction. The expiry timestamp is computed once by the caller and
// reused for both rows. A positive pointsCost debits the balance with a
// guard that refuses to drive it negative.
func (r *Repository) SetPro(ctx context.Context, userID int64, days int, method string, pointsCost int, expiresAt time.Time) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if pointsCost > 0 {
			debitQuery, debitArgs, err := squirrel.
				Update("users").
				Set("points", squirrel.Expr("points - ?", pointsCost)).
				Where(squirrel.And{
					squirrel.Eq{"telegram_id": userID},
					squirrel.GtOrEq{"points": pointsCost},
				}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx, debitQuery, debitArgs...)
			if err != nil {
				return fmt.Errorf("failed to debit points: %w", err)
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrInsufficientPoints
			}

			historyQuery, historyArgs, err := squirrel.
				Insert("points_history").
				Columns("user_id", "points", "reason", "created_at").
				Values(userID, -pointsCost, "pro_purchase", time.Now().UTC()).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, historyQuery, historyArgs...)
			if err != nil {
				return fmt.Errorf("failed to insert history row: %w", err)
			}
		}

		// A fresh grant supersedes whatever subscription was active.
		deactivateQuery, deactivateArgs, err := squirrel.
			Update("pro_subscriptions").
			Set("is_active", false).
			Where(squirrel.And{
				squirrel.Eq{"user_id": userID},
				squirrel.Eq{"is_active": true},
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, deactivateQuery, deactivateArgs...)
		if err != nil {
			return fmt.Errorf("failed to deactivate previous subscription: %w", err)
		}

		userQuery, userArgs, err := squirrel.
			Update("users").
			Set("is_pro", true).
			Set("pro_expiry", expiresAt).
			Set("last_activity", time.Now().UTC()).
			Where(squirrel.Eq{"telegram_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, userQuery, userArgs...)
		if err != nil {
			return fmt.Errorf("failed to set pro flag: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}

		subQuery, subArgs, err := squirrel.
			Insert("pro_subscriptions").
			SetMap(map[string]interface{}{
				"user_id":     userID,
				"method":      method,
				"points_paid": pointsCost,
				"days":        days,
				"started_at":  time.Now().UTC(),
				"expires_at":  expiresAt,
				"is_active":   true,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, subQuery, subArgs...)
		if err != nil {
			return fmt.Errorf("failed to insert subscription: %w", err)
		}
		return nil
	})
}

// ClearPro removes PRO state and deactivates the active subscription.
// Safe to call for a user who is not PRO.
func (r *Repository) ClearPro(ctx context.Context, userID int64) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		userQuery, userArgs, err := squirrel.
			Update("users").
			Set("is_pro", false).
			Set("pro_expiry", nil).
			Where(squirrel.Eq{"telegram_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, userQuery, userArgs...)
		if err != nil {
			return fmt.Errorf("failed to clear pro flag: %w", err)
		}

		subQuery, subArgs, err := squirrel.
			Update("pro_subscriptions").
			Set("is_active", false).
			Where(squirrel.And{
				squirrel.Eq{"user_id": userID},
				squirrel.Eq{"is_active": true},
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, subQuery, subArgs...)
		if err != nil {
			return fmt.Errorf("failed to deactivate subscription: %w", err)
		}
		return nil
	})
}

// ExpiredProUserIDs returns users whose stored expiry has passed but
// whose PRO flag is still set.
func (r *Repository) ExpiredProUserIDs(ctx context.Context, now time.Time) ([]int64, error) {
	query, args, err := squirrel.
		Select("telegram_id").
		From("users").
		Where(squirrel.And{
			squirrel.Eq{"is_pro": true},
			squirrel.NotEq{"pro_expiry": nil},
			squirrel.Lt{"pro_expiry": now},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired pro users: %w", err)
	}
	return ids, nil
}

func (r *Repository) ActiveSubscription(ctx context.Context, userID int64) (*model.ProSubscription, error) {
	var sub proSubscription
	query, args, err := squirrel.
		Select("*").
		From("pro_subscriptions").
		Where(squirrel.And{
			squirrel.Eq{"user_id": userID},
			squirrel.Eq{"is_active": true},
		}).
		OrderBy("started_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &sub, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.ProSubscription{
		ID:         sub.ID,
		UserID:     sub.UserID,
		Method:     sub.Method,
		PointsPaid: sub.PointsPaid,
		Days:       sub.Days,
		StartedAt:  sub.StartedAt,
		ExpiresAt:  sub.ExpiresAt,
		IsActive:   sub.IsActive,
	}, nil
}

func (r *Repository) ProUsersCount(ctx context.Context, now time.Time) (int, error) {
	query, args, err := squirrel.
		Select("COUNT(*)").
		From("users").
		Where(squirrel.And{
			squirrel.Eq{"is_pro": true},
			squirrel.Or{
				squirrel.Eq{"pro_expiry": nil},
				squirrel.Gt{"pro_expiry": now},
			},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, err
	}
	return count, nil
}
