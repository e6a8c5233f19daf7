package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event categories as stored in the database.
const (
	CategoryWorship    = "WORSHIP"
	CategoryBibleStudy = "BIBLE_STUDY"
	CategoryCommunity  = "COMMUNITY"
	CategoryFellowship = "FELLOWSHIP"
)

// UnlimitedSpots is the sentinel returned by AvailableSpots for events
// without a capacity.
const UnlimitedSpots = -1

const (
	TitleMinLen    = 3
	TitleMaxLen    = 200
	LocationMinLen = 3
	LocationMaxLen = 500
	CapacityMin    = 1
	CapacityMax    = 10000
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID            string     `bun:"id,pk" json:"id"`
	Title         string     `bun:"title,notnull" json:"title"`
	Description   string     `bun:"description,notnull" json:"description"`
	Location      string     `bun:"location,notnull" json:"location"`
	Category      string     `bun:"category,notnull" json:"category"`
	StartDateTime time.Time  `bun:"start_date_time,notnull" json:"start_date_time"`
	EndDateTime   time.Time  `bun:"end_date_time,notnull" json:"end_date_time"`
	Capacity      *int       `bun:"capacity" json:"capacity"`
	CreatedBy     string     `bun:"created_by,notnull" json:"created_by"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	CancelledAt   *time.Time `bun:"cancelled_at" json:"cancelled_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at" json:"deleted_at,omitempty"`
}

func validCategory(c string) bool {
	switch c {
	case CategoryWorship, CategoryBibleStudy, CategoryCommunity, CategoryFellowship:
		return true
	}
	return false
}

// Validate checks the field-level rules for an event. It returns a
// *ValidationError naming the first violated rule.
func (e *Event) Validate() error {
	if n := len(e.Title); n < TitleMinLen || n > TitleMaxLen {
		return &ValidationError{Field: "title", Rule: "must be between 3 and 200 characters"}
	}
	if e.Description == "" {
		return &ValidationError{Field: "description", Rule: "must not be empty"}
	}
	if n := len(e.Location); n < LocationMinLen || n > LocationMaxLen {
		return &ValidationError{Field: "location", Rule: "must be between 3 and 500 characters"}
	}
	if !validCategory(e.Category) {
		return &ValidationError{Field: "category", Rule: "must be one of WORSHIP, BIBLE_STUDY, COMMUNITY, FELLOWSHIP"}
	}
	if e.StartDateTime.IsZero() || e.EndDateTime.IsZero() {
		return &ValidationError{Field: "start_date_time", Rule: "start and end are required"}
	}
	if !e.EndDateTime.After(e.StartDateTime) {
		return &ValidationError{Field: "end_date_time", Rule: "must be after start_date_time"}
	}
	if e.Capacity != nil && (*e.Capacity < CapacityMin || *e.Capacity > CapacityMax) {
		return &ValidationError{Field: "capacity", Rule: "must be between 1 and 10000"}
	}
	if e.CreatedBy == "" {
		return &ValidationError{Field: "created_by", Rule: "must not be empty"}
	}
	return nil
}

// IsActive reports whether the event has reached neither of its terminal
// states. Cancelled and deleted are independent one-way markers.
func (e *Event) IsActive() bool {
	return e.CancelledAt == nil && e.DeletedAt == nil
}

// CanAcceptClaims reports whether a new RSVP may be taken against the
// event at the given instant.
func (e *Event) CanAcceptClaims(now time.Time) bool {
	return e.IsActive() && e.StartDateTime.After(now)
}

// AvailableSpots returns the number of open seats given the current
// confirmed count, clamped at zero. Events without a capacity return
// UnlimitedSpots.
func (e *Event) AvailableSpots(confirmed int) int {
	if e.Capacity == nil {
		return UnlimitedSpots
	}
	spots := *e.Capacity - confirmed
	if spots < 0 {
		return 0
	}
	return spots
}
