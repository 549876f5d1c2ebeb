package model

import "time"

// PointsHistoryEntry is an immutable ledger fact. The sum of a user's
// deltas reconciles to User.Points.
type PointsHistoryEntry struct {
	ID        int64
	UserID    int64
	Delta     int
	Reason    string
	CreatedAt time.Time
}

type ProSubscription struct {
	ID         int64
	UserID     int64
	Method     string
	PointsPaid int
	Days       int
	StartedAt  time.Time
	ExpiresAt  time.Time
	IsActive   bool
}

type Proof struct {
	ID          int64
	UserID      int64
	Number      string
	Platform    string
	Code        string
	CountryName string
	PostedAt    time.Time
	Verified    bool
	VerifiedBy  *int64
	VerifiedAt  *time.Time
}
