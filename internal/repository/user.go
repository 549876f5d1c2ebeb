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

type user struct {
	TelegramID      int64      `db:"telegram_id"`
	Username        string     `db:"username"`
	FirstName       string     `db:"first_name"`
	LastName        string     `db:"last_name"`
	JoinedAt        time.Time  `db:"joined_at"`
	Banned          bool       `db:"banned"`
	Points          int        `db:"points"`
	InvitedBy       *int64     `db:"invited_by"`
	InviteAwarded   bool       `db:"invite_awarded"`
	DailyBonusDate  *time.Time `db:"daily_bonus_date"`
	IsPro           bool       `db:"is_pro"`
	ProExpiry       *time.Time `db:"pro_expiry"`
	TotalInvites    int        `db:"total_invites"`
	ProofsSubmitted int        `db:"proofs_submitted"`
	LastActivity    time.Time  `db:"last_activity"`
}

func (u *user) toModel() *model.User {
	return &model.User{
		TelegramID:      u.TelegramID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		JoinedAt:        u.JoinedAt,
		Banned:          u.Banned,
		Points:          u.Points,
		InvitedBy:       u.InvitedBy,
		InviteAwarded:   u.InviteAwarded,
		DailyBonusDate:  u.DailyBonusDate,
		IsPro:           u.IsPro,
		ProExpiry:       u.ProExpiry,
		TotalInvites:    u.TotalInvites,
		ProofsSubmitted: u.ProofsSubmitted,
		LastActivity:    u.LastActivity,
	}
}

// CreateUser inserts the user on first contact. It returns false without
// error when the user already exists. Referral attribution happens in the
// same transaction: invited_by is set on the new user and the inviter's
// total_invites counter is bumped.
func (r *Repository) CreateUser(ctx context.Context, u *model.User) (bool, error) {
	created := false
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		query, args, err := squirrel.
			Insert("users").
			SetMap(map[string]interface{}{
				"telegram_id":   u.TelegramID,
				"username":      u.Username,
				"first_name":    u.FirstName,
				"last_name":     u.LastName,
				"joined_at":     now,
				"invited_by":    u.InvitedBy,
				"last_activity": now,
			}).
			Suffix("ON CONFLICT (telegram_id) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user insert query: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		created = true

		if u.InvitedBy != nil {
			updateQuery, updateArgs, err := squirrel.
				Update("users").
				Set("total_invites", squirrel.Expr("total_invites + 1")).
				Where(squirrel.Eq{"telegram_id": u.InvitedBy}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build inviter update query: %w", err)
			}

			_, err = tx.ExecContext(ctx, updateQuery, updateArgs...)
			if err != nil {
				return fmt.Errorf("failed to update inviter: %w", err)
			}
		}

		return nil
	})
	return created, err
}

func (r *Repository) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	var u user
	query, args, err := squirrel.
		Select("*").
		From("users").
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return u.toModel(), nil
}

func (r *Repository) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	query, args, err := squirrel.
		Update("users").
		Set("banned", banned).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update ban flag: %w", err)
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

func (r *Repository) TopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	query, args, err := squirrel.
		Select("*").
		From("users").
		Where(squirrel.And{
			squirrel.Gt{"points": 0},
			squirrel.Eq{"banned": false},
		}).
		OrderBy("points DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var users []user
	err = r.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}

	list := make([]*model.User, len(users))
	for i := range users {
		list[i] = users[i].toModel()
	}
	return list, nil
}

// UserIDsByAudience resolves the broadcast target snapshot. Cursor limits
// the result to ids strictly greater than it, which is how an interrupted
// run picks up where it left off.
func (r *Repository) UserIDsByAudience(ctx context.Context, audience model.Audience, cursor int64) ([]int64, error) {
	b := squirrel.
		Select("telegram_id").
		From("users").
		Where(squirrel.Eq{"banned": false})

	switch audience {
	case model.AudiencePro:
		b = b.Where(squirrel.Eq{"is_pro": true})
	case model.AudiencePoints:
		b = b.Where(squirrel.Gt{"points": 0})
	}
	if cursor > 0 {
		b = b.Where(squirrel.Gt{"telegram_id": cursor})
	}

	query, args, err := b.
		OrderBy("telegram_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}
	return ids, nil
}

func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	query, args, err := squirrel.
		Select("COUNT(*)").
		From("users").
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

func (r *Repository) TouchLastActivity(ctx context.Context, telegramID int64) error {
	query, args, err := squirrel.
		Update("users").
		Set("last_activity", time.Now().UTC()).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// InsertLog appends an audit log row.
func (r *Repository) InsertLog(ctx context.Context, who int64, action, meta string) error {
	query, args, err := squirrel.
		Insert("logs").
		Columns("who", "action", "meta", "created_at").
		Values(who, action, meta, time.Now().UTC()).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

type requiredChannel struct {
	ID          int64  `db:"id"`
	Channel     string `db:"channel"`
	IsGroup     bool   `db:"is_group"`
	RequireJoin bool   `db:"require_join_for_points"`
}

func (r *Repository) RequiredChannels(ctx context.Context) ([]model.RequiredChannel, error) {
	query, args, err := squirrel.
		Select("id", "channel", "is_group", "require_join_for_points").
		From("mandatory_channels").
		Where(squirrel.Eq{"require_join_for_points": true}).
		OrderBy("id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []requiredChannel
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get required channels: %w", err)
	}

	channels := make([]model.RequiredChannel, len(rows))
	for i, row := range rows {
		channels[i] = model.RequiredChannel{
			ID:          row.ID,
			Channel:     row.Channel,
			IsGroup:     row.IsGroup,
			RequireJoin: row.RequireJoin,
		}
	}
	return channels, nil
}

func (r *Repository) AddRequiredChannel(ctx context.Context, channel string, isGroup bool) error {
	query, args, err := squirrel.
		Insert("mandatory_channels").
		Columns("channel", "is_group", "require_join_for_points").
		Values(channel, isGroup, true).
		Suffix("ON CONFLICT (channel) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) RemoveRequiredChannel(ctx context.Context, channel string) error {
	query, args, err := squirrel.
		Delete("mandatory_channels").
		Where(squirrel.Eq{"channel": channel}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
