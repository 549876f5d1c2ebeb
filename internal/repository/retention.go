package repository

import (
	"context"
	"fmt"
	"time"

	"free-numbers-bot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// PurgeResult counts rows removed by one retention pass.
type PurgeResult struct {
	Proofs        int64
	Logs          int64
	PointsHistory int64
}

// PurgeBefore deletes historical rows older than the cutoff in one
// transaction. The cutoff is computed by the caller and bound as a
// parameter; no date arithmetic happens in SQL.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	var result PurgeResult
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		targets := []struct {
			table   string
			column  string
			counter *int64
		}{
			{"proofs", "posted_at", &result.Proofs},
			{"logs", "created_at", &result.Logs},
			{"points_history", "created_at", &result.PointsHistory},
		}

		for _, t := range targets {
			query, args, err := squirrel.
				Delete(t.table).
				Where(squirrel.Lt{t.column: cutoff}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to purge %s: %w", t.table, err)
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return err
			}
			*t.counter = rows
		}
		return nil
	})
	return result, err
}

// AddProof records a submitted activation proof and bumps the user's
// counter in the same transaction.
func (r *Repository) AddProof(ctx context.Context, p *model.Proof) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("proofs").
			SetMap(map[string]interface{}{
				"user_id":      p.UserID,
				"number":       p.Number,
				"platform":     p.Platform,
				"code":         p.Code,
				"country_name": p.CountryName,
				"posted_at":    time.Now().UTC(),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert proof: %w", err)
		}

		counterQuery, counterArgs, err := squirrel.
			Update("users").
			Set("proofs_submitted", squirrel.Expr("proofs_submitted + 1")).
			Where(squirrel.Eq{"telegram_id": p.UserID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, counterQuery, counterArgs...)
		if err != nil {
			return fmt.Errorf("failed to bump proof counter: %w", err)
		}
		return nil
	})
}
