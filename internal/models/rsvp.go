package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RSVP statuses. A WAITLISTED record becomes CONFIRMED only through
// waitlist promotion; CANCELLED is terminal for the record, not the pair
// (a member may claim again with a new record).
const (
	StatusConfirmed  = "CONFIRMED"
	StatusWaitlisted = "WAITLISTED"
	StatusCancelled  = "CANCELLED"
)

type RSVP struct {
	bun.BaseModel `bun:"table:rsvps"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id,notnull" json:"event_id"`
	MemberID  string    `bun:"member_id,notnull" json:"member_id"`
	Status    string    `bun:"status,notnull" json:"status"`
	ClaimedAt time.Time `bun:"claimed_at,notnull" json:"claimed_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// IsActive reports whether the record still counts against the event
// (confirmed or queued).
func (r *RSVP) IsActive() bool {
	return r.Status == StatusConfirmed || r.Status == StatusWaitlisted
}

type ClaimRequest struct {
	MemberID string `json:"member_id"`
}

type ClaimResult struct {
	RSVPID         string `json:"rsvp_id"`
	EventID        string `json:"event_id"`
	MemberID       string `json:"member_id"`
	Status         string `json:"status"`
	AvailableSpots int    `json:"available_spots"`
}

type CancelResult struct {
	EventID          string `json:"event_id"`
	MemberID         string `json:"member_id"`
	WaitlistPromoted bool   `json:"waitlist_promoted"`
}

type EventCancellation struct {
	EventID           string    `json:"event_id"`
	CancelledAt       time.Time `json:"cancelled_at"`
	AffectedAttendees int       `json:"affected_attendees"`
	Message           string    `json:"message"`
}
