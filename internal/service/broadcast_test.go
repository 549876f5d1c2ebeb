package service

import (
	"context"
	"testing"
	"time"

	"free-numbers-bot/internal/model"
	"free-numbers-bot/internal/repository"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"free-numbers-bot/internal/service/mocks"
)

type progressCapture struct {
	sent   int
	failed int
	cursor int64
}

func captureProgress(repo *mocks.MockBroadcastRepository, into *progressCapture) {
	repo.On("UpdateBroadcastProgress", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			into.sent = args.Int(2)
			into.failed = args.Int(3)
			into.cursor = args.Get(4).(int64)
		}).
		Return(nil)
}

func activeAd(id int64) *model.Advertisement {
	return &model.Advertisement{
		ID:       id,
		Title:    "New numbers",
		Content:  "Fresh numbers are available",
		IsActive: true,
		Audience: model.AudienceAll,
	}
}

func TestBroadcastEngine_RunToCompletion(t *testing.T) {
	repo := &mocks.MockBroadcastRepository{}
	gateway := &mocks.MockMessageGateway{}
	engine := NewBroadcastEngine(repo, gateway, time.Millisecond)

	targets := []int64{1, 2, 3, 4, 5}
	repo.On("GetAdvertisement", mock.Anything, int64(10)).Return(activeAd(10), nil)
	repo.On("UserIDsByAudience", mock.Anything, model.AudienceAll, int64(0)).Return(targets, nil)
	repo.On("CreateBroadcast", mock.Anything, mock.Anything).Return(nil)
	repo.On("BroadcastStatus", mock.Anything, mock.Anything).Return(model.BroadcastRunning, nil)

	// Target 3 is unreachable; the failure is counted, not retried.
	gateway.On("Send", mock.Anything, int64(3), mock.Anything).Return(0, errors.New("blocked by user"))
	gateway.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(1, nil)

	var captured progressCapture
	captureProgress(repo, &captured)
	repo.On("CompleteBroadcast", mock.Anything, mock.Anything).Return(nil)
	repo.On("AddAdvertisementSent", mock.Anything, int64(10), 4).Return(nil)

	runID, err := engine.Start(context.Background(), 10, model.AudienceAll)
	assert.NoError(t, err)
	assert.NotEmpty(t, runID)

	engine.Wait()

	assert.Equal(t, 4, captured.sent)
	assert.Equal(t, 1, captured.failed)
	assert.Equal(t, int64(5), captured.cursor)
	assert.LessOrEqual(t, captured.sent+captured.failed, len(targets))
	repo.AssertExpectations(t)
	gateway.AssertNumberOfCalls(t, "Send", len(targets))
}

func TestBroadcastEngine_StopMidRun(t *testing.T) {
	repo := &mocks.MockBroadcastRepository{}
	gateway := &mocks.MockMessageGateway{}
	engine := NewBroadcastEngine(repo, gateway, time.Millisecond)

	targets := []int64{1, 2, 3, 4, 5}
	repo.On("GetAdvertisement", mock.Anything, int64(10)).Return(activeAd(10), nil)
	repo.On("UserIDsByAudience", mock.Anything, model.AudienceAll, int64(0)).Return(targets, nil)
	repo.On("CreateBroadcast", mock.Anything, mock.Anything).Return(nil)

	// The persisted status flips to stopped after two deliveries. The
	// worker notices on its next poll and quits without completing.
	repo.On("BroadcastStatus", mock.Anything, mock.Anything).Return(model.BroadcastRunning, nil).Twice()
	repo.On("BroadcastStatus", mock.Anything, mock.Anything).Return(model.BroadcastStopped, nil)
	gateway.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(1, nil)

	var captured progressCapture
	captureProgress(repo, &captured)

	_, err := engine.Start(context.Background(), 10, model.AudienceAll)
	assert.NoError(t, err)

	engine.Wait()

	assert.Equal(t, 2, captured.sent)
	assert.Equal(t, 0, captured.failed)
	assert.LessOrEqual(t, captured.sent+captured.failed, len(targets))
	repo.AssertNotCalled(t, "CompleteBroadcast", mock.Anything, mock.Anything)
	gateway.AssertNumberOfCalls(t, "Send", 2)
}

func TestBroadcastEngine_Stop(t *testing.T) {
	repo := &mocks.MockBroadcastRepository{}
	engine := NewBroadcastEngine(repo, &mocks.MockMessageGateway{}, time.Millisecond)

	repo.On("BroadcastStatus", mock.Anything, "run-1").Return(model.BroadcastRunning, nil)
	repo.On("StopBroadcast", mock.Anything, "run-1").Return(true, nil)

	stopped, err := engine.Stop(context.Background(), "run-1")
	assert.NoError(t, err)
	assert.True(t, stopped)

	// A second stop on the now-terminal run is a no-op, not an error.
	repo.On("BroadcastStatus", mock.Anything, "run-2").Return(model.BroadcastStopped, nil)
	repo.On("StopBroadcast", mock.Anything, "run-2").Return(false, nil)

	stopped, err = engine.Stop(context.Background(), "run-2")
	assert.NoError(t, err)
	assert.False(t, stopped)

	repo.On("BroadcastStatus", mock.Anything, "missing").
		Return(model.BroadcastStatus(""), repository.ErrNotFound)

	_, err = engine.Stop(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBroadcastNotFound)
}

func TestBroadcastEngine_StartValidation(t *testing.T) {
	tests := []struct {
		name          string
		adID          int64
		audience      model.Audience
		mockSetup     func(*mocks.MockBroadcastRepository)
		expectedError error
	}{
		{
			name:          "unknown audience",
			adID:          1,
			audience:      model.Audience("everyone"),
			mockSetup:     func(repo *mocks.MockBroadcastRepository) {},
			expectedError: ErrInvalidAudience,
		},
		{
			name:     "missing advertisement",
			adID:     2,
			audience: model.AudienceAll,
			mockSetup: func(repo *mocks.MockBroadcastRepository) {
				repo.On("GetAdvertisement", mock.Anything, int64(2)).Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrAdNotFound,
		},
		{
			name:     "inactive advertisement",
			adID:     3,
			audience: model.AudienceAll,
			mockSetup: func(repo *mocks.MockBroadcastRepository) {
				ad := activeAd(3)
				ad.IsActive = false
				repo.On("GetAdvertisement", mock.Anything, int64(3)).Return(ad, nil)
			},
			expectedError: ErrAdInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockBroadcastRepository{}
			engine := NewBroadcastEngine(repo, &mocks.MockMessageGateway{}, time.Millisecond)
			tt.mockSetup(repo)

			_, err := engine.Start(context.Background(), tt.adID, tt.audience)
			assert.ErrorIs(t, err, tt.expectedError)
			repo.AssertNotCalled(t, "CreateBroadcast", mock.Anything, mock.Anything)
		})
	}
}

func TestBroadcastEngine_Resume(t *testing.T) {
	repo := &mocks.MockBroadcastRepository{}
	gateway := &mocks.MockMessageGateway{}
	engine := NewBroadcastEngine(repo, gateway, time.Millisecond)

	interrupted := model.BroadcastProgress{
		BroadcastID:   "run-7",
		AdID:          10,
		CurrentUserID: 3,
		TotalUsers:    5,
		SentCount:     2,
		FailedCount:   1,
		Status:        model.BroadcastRunning,
	}
	repo.On("RunningBroadcasts", mock.Anything).Return([]model.BroadcastProgress{interrupted}, nil)
	repo.On("GetAdvertisement", mock.Anything, int64(10)).Return(activeAd(10), nil)
	repo.On("UserIDsByAudience", mock.Anything, model.AudienceAll, int64(3)).Return([]int64{4, 5}, nil)
	repo.On("BroadcastStatus", mock.Anything, "run-7").Return(model.BroadcastRunning, nil)
	gateway.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(1, nil)

	var captured progressCapture
	captureProgress(repo, &captured)
	repo.On("CompleteBroadcast", mock.Anything, "run-7").Return(nil)
	repo.On("AddAdvertisementSent", mock.Anything, int64(10), 4).Return(nil)

	assert.NoError(t, engine.Resume(context.Background()))
	engine.Wait()

	// Counters carry over from the interrupted run.
	assert.Equal(t, 4, captured.sent)
	assert.Equal(t, 1, captured.failed)
	assert.Equal(t, int64(5), captured.cursor)
	repo.AssertExpectations(t)
}
