package model

import "time"

type Advertisement struct {
	ID        int64
	Title     string
	Content   string
	CreatedBy int64
	CreatedAt time.Time
	SentTo    int
	IsActive  bool
	Audience  Audience
}

// Audience selects which users a broadcast targets.
type Audience string

const (
	AudienceAll    Audience = "all"
	AudiencePro    Audience = "pro"
	AudiencePoints Audience = "points"
)

func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudiencePro, AudiencePoints:
		return true
	}
	return false
}

type BroadcastStatus string

const (
	BroadcastRunning   BroadcastStatus = "running"
	BroadcastStopped   BroadcastStatus = "stopped"
	BroadcastCompleted BroadcastStatus = "completed"
)

// Terminal reports whether the run can no longer change state.
func (s BroadcastStatus) Terminal() bool {
	return s == BroadcastStopped || s == BroadcastCompleted
}

// BroadcastProgress is the persisted run descriptor. It is the sole
// source of truth for resumability and cancellation.
type BroadcastProgress struct {
	ID            int64
	BroadcastID   string
	AdID          int64
	CurrentUserID int64
	TotalUsers    int
	SentCount     int
	FailedCount   int
	Status        BroadcastStatus
	StartTime     time.Time
	EndTime       *time.Time
	Errors        string
}

// BroadcastReport joins the run descriptor with the advertisement it
// delivers, for status reporting.
type BroadcastReport struct {
	BroadcastProgress
	AdTitle   string
	AdContent string
}
