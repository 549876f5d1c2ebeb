package model

import "time"

type User struct {
	TelegramID      int64
	Username        string
	FirstName       string
	LastName        string
	JoinedAt        time.Time
	Banned          bool
	Points          int
	InvitedBy       *int64
	InviteAwarded   bool
	DailyBonusDate  *time.Time
	IsPro           bool
	ProExpiry       *time.Time
	TotalInvites    int
	ProofsSubmitted int
	LastActivity    time.Time
}

// UserStats is the cached per-user snapshot served by the cache layer.
type UserStats struct {
	Points    int
	IsPro     bool
	ProExpiry *time.Time
}

type Membership string

const (
	MembershipMember Membership = "member"
	MembershipAdmin  Membership = "admin"
	MembershipOwner  Membership = "owner"
	MembershipNone   Membership = "none"
)

// IsMember reports whether the status counts as being inside the channel.
func (m Membership) IsMember() bool {
	return m == MembershipMember || m == MembershipAdmin || m == MembershipOwner
}

type RequiredChannel struct {
	ID          int64
	Channel     string
	IsGroup     bool
	RequireJoin bool
}
