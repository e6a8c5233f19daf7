package models

import "time"

// RSVPNotice tells a member the outcome of their claim.
type RSVPNotice struct {
	EventID    string    `json:"event_id"`
	EventTitle string    `json:"event_title"`
	StartsAt   time.Time `json:"starts_at"`
	Location   string    `json:"location"`
	MemberID   string    `json:"member_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Status     string    `json:"status"`
}

// CancellationNotice tells one attendee that an event has been called off.
type CancellationNotice struct {
	EventID    string    `json:"event_id"`
	EventTitle string    `json:"event_title"`
	StartsAt   time.Time `json:"starts_at"`
	Location   string    `json:"location"`
	MemberID   string    `json:"member_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Reason     string    `json:"reason,omitempty"`
}
