package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"
	"free-numbers-bot/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Delay between consecutive sends so the gateway's own rate limits
	// are never tripped by a large audience.
	defaultSendPace = 100 * time.Millisecond

	// Accumulated delivery error text is capped so a run with many
	// failures cannot grow the progress row without bound.
	maxErrorsText = 2000
)

// BroadcastEngine fans an advertisement out to a resolved audience
// snapshot. Every run persists a progress row with counters and a user
// cursor after each attempt, so a run survives restarts and honors
// out-of-band stop requests. Status transitions only running to stopped
// or running to completed; a stopped run is never reactivated.
type BroadcastEngine struct {
	repo    BroadcastRepository
	gateway MessageGateway
	pace    time.Duration
	now     func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewBroadcastEngine(repo BroadcastRepository, gateway MessageGateway, pace time.Duration) *BroadcastEngine {
	if pace <= 0 {
		pace = defaultSendPace
	}
	return &BroadcastEngine{
		repo:    repo,
		gateway: gateway,
		pace:    pace,
		now:     time.Now,
		cancels: make(map[string]context.CancelFunc),
	}
}

// CreateAdvertisement stores a new advertisement and returns its id.
func (e *BroadcastEngine) CreateAdvertisement(ctx context.Context, ad *model.Advertisement) (int64, error) {
	if ad.Audience == "" {
		ad.Audience = model.AudienceAll
	}
	if !ad.Audience.Valid() {
		return 0, ErrInvalidAudience
	}

	id, err := e.repo.CreateAdvertisement(ctx, ad)
	if err != nil {
		return 0, fmt.Errorf("failed to create advertisement: %w", err)
	}
	return id, nil
}

func (e *BroadcastEngine) ListAdvertisements(ctx context.Context, limit int, activeOnly bool) ([]*model.Advertisement, error) {
	ads, err := e.repo.ListAdvertisements(ctx, limit, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list advertisements: %w", err)
	}
	return ads, nil
}

// ToggleAdvertisement flips the active flag and returns the new state.
func (e *BroadcastEngine) ToggleAdvertisement(ctx context.Context, adID int64) (bool, error) {
	active, err := e.repo.ToggleAdvertisement(ctx, adID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrAdNotFound
		}
		return false, fmt.Errorf("failed to toggle advertisement: %w", err)
	}
	return active, nil
}

func (e *BroadcastEngine) DeleteAdvertisement(ctx context.Context, adID int64) error {
	if err := e.repo.DeleteAdvertisement(ctx, adID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAdNotFound
		}
		return fmt.Errorf("failed to delete advertisement: %w", err)
	}
	return nil
}

// Start resolves the audience for the advertisement, persists a running
// progress row and launches the delivery worker. The audience is a
// snapshot: membership changes during the run do not add or remove
// targets. Returns the run id.
func (e *BroadcastEngine) Start(ctx context.Context, adID int64, audience model.Audience) (string, error) {
	if !audience.Valid() {
		return "", ErrInvalidAudience
	}

	ad, err := e.repo.GetAdvertisement(ctx, adID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAdNotFound
		}
		return "", fmt.Errorf("failed to get advertisement: %w", err)
	}
	if !ad.IsActive {
		return "", ErrAdInactive
	}

	targets, err := e.repo.UserIDsByAudience(ctx, audience, 0)
	if err != nil {
		return "", fmt.Errorf("failed to resolve audience: %w", err)
	}

	progress := &model.BroadcastProgress{
		BroadcastID: uuid.NewString(),
		AdID:        adID,
		TotalUsers:  len(targets),
		Status:      model.BroadcastRunning,
		StartTime:   e.now().UTC(),
	}
	if err := e.repo.CreateBroadcast(ctx, progress); err != nil {
		return "", fmt.Errorf("failed to create broadcast: %w", err)
	}

	e.launch(progress, ad, targets)

	logger.Logger().Info("broadcast started",
		zap.String("broadcast_id", progress.BroadcastID),
		zap.Int64("ad_id", adID),
		zap.String("audience", string(audience)),
		zap.Int("targets", len(targets)))
	return progress.BroadcastID, nil
}

// Stop cancels a running broadcast. Stopping a run that already reached
// a terminal state is a no-op; the return value reports whether the
// transition happened on this call.
func (e *BroadcastEngine) Stop(ctx context.Context, broadcastID string) (bool, error) {
	if _, err := e.repo.BroadcastStatus(ctx, broadcastID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrBroadcastNotFound
		}
		return false, fmt.Errorf("failed to get broadcast status: %w", err)
	}

	stopped, err := e.repo.StopBroadcast(ctx, broadcastID)
	if err != nil {
		return false, fmt.Errorf("failed to stop broadcast: %w", err)
	}

	e.mu.Lock()
	if cancel, ok := e.cancels[broadcastID]; ok {
		cancel()
	}
	e.mu.Unlock()

	if stopped {
		logger.Logger().Info("broadcast stopped", zap.String("broadcast_id", broadcastID))
	}
	return stopped, nil
}

// Progress returns the run descriptor joined with the advertisement.
func (e *BroadcastEngine) Progress(ctx context.Context, broadcastID string) (*model.BroadcastReport, error) {
	report, err := e.repo.BroadcastReport(ctx, broadcastID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBroadcastNotFound
		}
		return nil, fmt.Errorf("failed to get broadcast report: %w", err)
	}
	return report, nil
}

// Resume relaunches every run that was still marked running when the
// process last exited, continuing past the persisted cursor. The
// audience is re-resolved, so users created after the crash point may
// be included; counters and the cursor carry over.
func (e *BroadcastEngine) Resume(ctx context.Context) error {
	runs, err := e.repo.RunningBroadcasts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list running broadcasts: %w", err)
	}

	for i := range runs {
		run := runs[i]

		ad, err := e.repo.GetAdvertisement(ctx, run.AdID)
		if err != nil {
			logger.Logger().Error("failed to resume broadcast",
				zap.String("broadcast_id", run.BroadcastID), zap.Error(err))
			continue
		}

		targets, err := e.repo.UserIDsByAudience(ctx, ad.Audience, run.CurrentUserID)
		if err != nil {
			logger.Logger().Error("failed to resume broadcast",
				zap.String("broadcast_id", run.BroadcastID), zap.Error(err))
			continue
		}

		// Users registered since the original snapshot may reappear in
		// the re-resolved audience. Capping at the snapshot remainder
		// keeps sent+failed within the persisted total.
		remaining := run.TotalUsers - run.SentCount - run.FailedCount
		if remaining < 0 {
			remaining = 0
		}
		if len(targets) > remaining {
			targets = targets[:remaining]
		}

		e.launch(&run, ad, targets)

		logger.Logger().Info("broadcast resumed",
			zap.String("broadcast_id", run.BroadcastID),
			zap.Int("remaining", len(targets)))
	}
	return nil
}

// Shutdown cancels all in-flight workers and waits for them to persist
// their final cursor. The runs stay marked running and are picked up by
// Resume on the next start.
func (e *BroadcastEngine) Shutdown() {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// Wait blocks until every launched worker has finished.
func (e *BroadcastEngine) Wait() {
	e.wg.Wait()
}

func (e *BroadcastEngine) launch(progress *model.BroadcastProgress, ad *model.Advertisement, targets []int64) {
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.cancels[progress.BroadcastID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		defer func() {
			e.mu.Lock()
			delete(e.cancels, progress.BroadcastID)
			e.mu.Unlock()
		}()

		e.deliver(ctx, progress, ad, targets)
	}()
}

func (e *BroadcastEngine) deliver(ctx context.Context, progress *model.BroadcastProgress, ad *model.Advertisement, targets []int64) {
	text := fmt.Sprintf("<b>%s</b>\n\n%s", ad.Title, ad.Content)
	sent, failed := progress.SentCount, progress.FailedCount
	errText := progress.Errors

	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}

		// Out-of-band stops go through the store, so the persisted
		// status is re-read before every send.
		status, err := e.repo.BroadcastStatus(ctx, progress.BroadcastID)
		if err != nil {
			logger.Logger().Error("failed to poll broadcast status",
				zap.String("broadcast_id", progress.BroadcastID), zap.Error(err))
			return
		}
		if status != model.BroadcastRunning {
			return
		}

		if _, err := e.gateway.Send(ctx, target, text); err != nil {
			failed++
			errText = appendErrorText(errText, target, err)
		} else {
			sent++
		}

		if err := e.repo.UpdateBroadcastProgress(ctx, progress.BroadcastID, sent, failed, target, errText); err != nil {
			logger.Logger().Error("failed to persist broadcast progress",
				zap.String("broadcast_id", progress.BroadcastID), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.pace):
		}
	}

	if err := e.repo.CompleteBroadcast(context.Background(), progress.BroadcastID); err != nil {
		logger.Logger().Error("failed to complete broadcast",
			zap.String("broadcast_id", progress.BroadcastID), zap.Error(err))
		return
	}
	if err := e.repo.AddAdvertisementSent(context.Background(), ad.ID, sent); err != nil {
		logger.Logger().Error("failed to update advertisement counters",
			zap.String("broadcast_id", progress.BroadcastID), zap.Error(err))
	}

	logger.Logger().Info("broadcast completed",
		zap.String("broadcast_id", progress.BroadcastID),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
}

func appendErrorText(errText string, target int64, err error) string {
	entry := fmt.Sprintf("%d: %v; ", target, err)
	if len(errText)+len(entry) > maxErrorsText {
		return errText
	}
	return errText + entry
}
