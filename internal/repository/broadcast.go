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

type advertisement struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	CreatedBy int64     `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
	SentTo    int       `db:"sent_to"`
	IsActive  bool      `db:"is_active"`
	Audience  string    `db:"target_audience"`
}

func (a *advertisement) toModel() *model.Advertisement {
	return &model.Advertisement{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
		SentTo:    a.SentTo,
		IsActive:  a.IsActive,
		Audience:  model.Audience(a.Audience),
	}
}

type broadcastProgress struct {
	ID            int64      `db:"id"`
	BroadcastID   string     `db:"broadcast_id"`
	AdID          int64      `db:"ad_id"`
	CurrentUserID int64      `db:"current_user_id"`
	TotalUsers    int        `db:"total_users"`
	SentCount     int        `db:"sent_count"`
	FailedCount   int        `db:"failed_count"`
	Status        string     `db:"status"`
	StartTime     time.Time  `db:"start_time"`
	EndTime       *time.Time `db:"end_time"`
	Errors        string     `db:"errors"`
}

func (b *broadcastProgress) toModel() model.BroadcastProgress {
	return model.BroadcastProgress{
		ID:            b.ID,
		BroadcastID:   b.BroadcastID,
		AdID:          b.AdID,
		CurrentUserID: b.CurrentUserID,
		TotalUsers:    b.TotalUsers,
		SentCount:     b.SentCount,
		FailedCount:   b.FailedCount,
		Status:        model.BroadcastStatus(b.Status),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Errors:        b.Errors,
	}
}

func (r *Repository) CreateAdvertisement(ctx context.Context, ad *model.Advertisement) (int64, error) {
	query, args, err := squirrel.
		Insert("advertisements").
		SetMap(map[string]interface{}{
			"title":           ad.Title,
			"content":         ad.Content,
			"created_by":      ad.CreatedBy,
			"created_at":      time.Now().UTC(),
			"is_active":       true,
			"target_audience": string(ad.Audience),
		}).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.GetContext(ctx, &id, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create advertisement: %w", err)
	}
	return id, nil
}

func (r *Repository) GetAdvertisement(ctx context.Context, adID int64) (*model.Advertisement, error) {
	var ad advertisement
	query, args, err := squirrel.
		Select("*").
		From("advertisements").
		Where(squirrel.Eq{"id": adID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &ad, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ad.toModel(), nil
}

func (r *Repository) ListAdvertisements(ctx context.Context, limit int, activeOnly bool) ([]*model.Advertisement, error) {
	b := squirrel.
		Select("*").
		From("advertisements")
	if activeOnly {
		b = b.Where(squirrel.Eq{"is_active": true})
	}

	query, args, err := b.
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []advertisement
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list advertisements: %w", err)
	}

	ads := make([]*model.Advertisement, len(rows))
	for i := range rows {
		ads[i] = rows[i].toModel()
	}
	return ads, nil
}

func (r *Repository) ToggleAdvertisement(ctx context.Context, adID int64) (bool, error) {
	query, args, err := squirrel.
		Update("advertisements").
		Set("is_active", squirrel.Expr("NOT is_active")).
		Where(squirrel.Eq{"id": adID}).
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
		return false, fmt.Errorf("failed to toggle advertisement: %w", err)
	}
	return active, nil
}

func (r *Repository) DeleteAdvertisement(ctx context.Context, adID int64) error {
	query, args, err := squirrel.
		Delete("advertisements").
		Where(squirrel.Eq{"id": adID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete advertisement: %w", err)
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

func (r *Repository) AddAdvertisementSent(ctx context.Context, adID int64, sent int) error {
	query, args, err := squirrel.
		Update("advertisements").
		Set("sent_to", squirrel.Expr("sent_to + ?", sent)).
		Where(squirrel.Eq{"id": adID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) CreateBroadcast(ctx context.Context, p *model.BroadcastProgress) error {
	query, args, err := squirrel.
		Insert("broadcast_progress").
		SetMap(map[string]interface{}{
			"broadcast_id": p.BroadcastID,
			"ad_id":        p.AdID,
			"total_users":  p.TotalUsers,
			"status":       string(model.BroadcastRunning),
			"start_time":   time.Now().UTC(),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create broadcast: %w", err)
	}
	return nil
}

// BroadcastStatus is the worker's cancellation poll: one cheap read of the
// persisted status.
func (r *Repository) BroadcastStatus(ctx context.Context, broadcastID string) (model.BroadcastStatus, error) {
	var status string
	query, args, err := squirrel.
		Select("status").
		From("broadcast_progress").
		Where(squirrel.Eq{"broadcast_id": broadcastID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", err
	}

	err = r.db.GetContext(ctx, &status, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return model.BroadcastStatus(status), nil
}

// UpdateBroadcastProgress persists counters and cursor after every
// delivery attempt. A crash loses at most the in-flight message.
func (r *Repository) UpdateBroadcastProgress(ctx context.Context, broadcastID string, sent, failed int, cursor int64, errText string) error {
	query, args, err := squirrel.
		Update("broadcast_progress").
		Set("sent_count", sent).
		Set("failed_count", failed).
		Set("current_user_id", cursor).
		Set("errors", errText).
		Where(squirrel.Eq{"broadcast_id": broadcastID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update broadcast progress: %w", err)
	}
	return nil
}

// CompleteBroadcast marks the run completed, but only if it is still
// running: a stop that raced the final send wins.
func (r *Repository) CompleteBroadcast(ctx context.Context, broadcastID string) error {
	query, args, err := squirrel.
		Update("broadcast_progress").
		Set("status", string(model.BroadcastCompleted)).
		Set("end_time", time.Now().UTC()).
		Where(squirrel.And{
			squirrel.Eq{"broadcast_id": broadcastID},
			squirrel.Eq{"status": string(model.BroadcastRunning)},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to complete broadcast: %w", err)
	}
	return nil
}

// StopBroadcast transitions running→stopped and reports whether the
// transition happened. Calling it on a terminal run is a no-op.
func (r *Repository) StopBroadcast(ctx context.Context, broadcastID string) (bool, error) {
	query, args, err := squirrel.
		Update("broadcast_progress").
		Set("status", string(model.BroadcastStopped)).
		Set("end_time", time.Now().UTC()).
		Where(squirrel.And{
			squirrel.Eq{"broadcast_id": broadcastID},
			squirrel.Eq{"status": string(model.BroadcastRunning)},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to stop broadcast: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *Repository) BroadcastReport(ctx context.Context, broadcastID string) (*model.BroadcastReport, error) {
	var row struct {
		broadcastProgress
		AdTitle   string `db:"ad_title"`
		AdContent string `db:"ad_content"`
	}
	query, args, err := squirrel.
		Select("bp.*", "a.title AS ad_title", "a.content AS ad_content").
		From("broadcast_progress bp").
		Join("advertisements a ON bp.ad_id = a.id").
		Where(squirrel.Eq{"bp.broadcast_id": broadcastID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.BroadcastReport{
		BroadcastProgress: row.broadcastProgress.toModel(),
		AdTitle:           row.AdTitle,
		AdContent:         row.AdContent,
	}, nil
}

// RunningBroadcasts returns runs left in the running state, used at
// startup to resume work interrupted by a restart.
func (r *Repository) RunningBroadcasts(ctx context.Context) ([]model.BroadcastProgress, error) {
	query, args, err := squirrel.
		Select("*").
		From("broadcast_progress").
		Where(squirrel.Eq{"status": string(model.BroadcastRunning)}).
		OrderBy("start_time").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []broadcastProgress
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get running broadcasts: %w", err)
	}

	runs := make([]model.BroadcastProgress, len(rows))
	for i := range rows {
		runs[i] = rows[i].toModel()
	}
	return runs, nil
}
