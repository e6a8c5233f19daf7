package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"church-connect/internal/logger"
	"church-connect/internal/models"
	"church-connect/internal/utils"

	"github.com/google/uuid"
)

type DBLayer interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) error
	UpdateEvent(ctx context.Context, event *models.Event) error
	CancelEvent(ctx context.Context, id string, at time.Time) (int64, error)
	SoftDeleteEvent(ctx context.Context, id string, at time.Time) (int64, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]models.Event, error)
	ListRSVPsByEvent(ctx context.Context, eventID string) ([]models.RSVP, error)
	ConfirmedCount(ctx context.Context, eventID string) (int, error)
}

// EventLock is the same per-event lock the claim engine holds. Lifecycle
// transitions take it so a cancellation or capacity change can never
// interleave with an in-flight claim's decide-then-write section.
type EventLock interface {
	AcquireEvent(ctx context.Context, eventID string) (string, error)
	ReleaseEvent(ctx context.Context, eventID, token string) error
}

// Dispatcher delivers cancellation notices best-effort: contact details
// are resolved in the background, one attendee's failure must not stop
// delivery to the rest, and no failure reaches the caller of Cancel.
type Dispatcher interface {
	SendCancellationNotices(memberIDs []string, event models.Event, reason string) error
}

type Service struct {
	DB         DBLayer
	Lock       EventLock
	Dispatcher Dispatcher
	Clock      utils.Clock
	Logger     *logger.Logger
}

func NewService(db DBLayer, lock EventLock, dispatcher Dispatcher, clock utils.Clock, log *logger.Logger) *Service {
	return &Service{DB: db, Lock: lock, Dispatcher: dispatcher, Clock: clock, Logger: log}
}

type CreateRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	Category      string    `json:"category"`
	StartDateTime time.Time `json:"start_date_time"`
	EndDateTime   time.Time `json:"end_date_time"`
	Capacity      *int      `json:"capacity"`
	CreatedBy     string    `json:"created_by"`
}

type UpdateRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	Category      string    `json:"category"`
	StartDateTime time.Time `json:"start_date_time"`
	EndDateTime   time.Time `json:"end_date_time"`
	Capacity      *int      `json:"capacity"`
}

// Create validates the fields and persists a new event.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Event, error) {
	now := s.Clock.Now()
	event := &models.Event{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		Category:      req.Category,
		StartDateTime: req.StartDateTime,
		EndDateTime:   req.EndDateTime,
		Capacity:      req.Capacity,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.Logger.LogEvent("CREATE", event.ID, event.Title)
	return event, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.NotFoundError{Resource: "event", ID: id}
		}
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return event, nil
}

func (s *Service) ListUpcoming(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListUpcoming(ctx, s.Clock.Now())
}

// withEventLock runs fn while holding the event's lock.
func (s *Service) withEventLock(ctx context.Context, eventID string, fn func() error) error {
	token, err := s.Lock.AcquireEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to lock event %s: %w", eventID, err)
	}
	defer func() {
		if err := s.Lock.ReleaseEvent(ctx, eventID, token); err != nil {
			s.Logger.Error("EVENT", fmt.Sprintf("Failed to release lock for event %s: %v", eventID, err))
		}
	}()
	return fn()
}

// Update mutates an event that has not reached a terminal state. The
// capacity may not be lowered below the current confirmed count, which
// would strand already-admitted members; the confirmed count is read
// under the event's lock so a racing claim cannot invalidate the check.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*models.Event, error) {
	var updated *models.Event
	err := s.withEventLock(ctx, id, func() error {
		event, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if event.CancelledAt != nil {
			return &models.InvalidStateError{Reason: "event is cancelled"}
		}
		if event.DeletedAt != nil {
			return &models.InvalidStateError{Reason: "event is deleted"}
		}

		event.Title = req.Title
		event.Description = req.Description
		event.Location = req.Location
		event.Category = req.Category
		event.StartDateTime = req.StartDateTime
		event.EndDateTime = req.EndDateTime
		event.Capacity = req.Capacity
		event.UpdatedAt = s.Clock.Now()

		if err := event.Validate(); err != nil {
			return err
		}

		if event.Capacity != nil {
			confirmed, err := s.DB.ConfirmedCount(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to read confirmed count: %w", err)
			}
			if *event.Capacity < confirmed {
				return &models.ValidationError{Field: "capacity", Rule: fmt.Sprintf("cannot be lower than the %d confirmed attendees", confirmed)}
			}
		}

		if err := s.DB.UpdateEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.LogEvent("UPDATE", updated.ID, updated.Title)
	return updated, nil
}

// Cancel marks the whole event cancelled and fans the cancellation out
// into per-attendee notices. The transition runs under the event's lock
// so no claim can slip in between the attendee snapshot and the
// cancelled_at write. Notice delivery is best-effort and can never
// unwind it.
func (s *Service) Cancel(ctx context.Context, id, actorID, reason string) (*models.EventCancellation, error) {
	var (
		cancelled *models.Event
		memberIDs []string
	)
	err := s.withEventLock(ctx, id, func() error {
		event, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if event.CancelledAt != nil {
			return &models.InvalidStateError{Reason: "event is already cancelled"}
		}
		if event.DeletedAt != nil {
			return &models.InvalidStateError{Reason: "event is deleted"}
		}

		records, err := s.DB.ListRSVPsByEvent(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load rsvps for event %s: %w", id, err)
		}
		for _, r := range records {
			if r.IsActive() {
				memberIDs = append(memberIDs, r.MemberID)
			}
		}

		rows, err := s.DB.CancelEvent(ctx, id, s.Clock.Now())
		if err != nil {
			return fmt.Errorf("failed to cancel event %s: %w", id, err)
		}
		if rows == 0 {
			// Lost a race with another cancel or a delete.
			return &models.InvalidStateError{Reason: "event is already cancelled"}
		}

		// Re-fetch for the authoritative cancelled_at.
		cancelled, err = s.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogEvent("CANCEL", id, fmt.Sprintf("cancelled by %s, %d attendee(s) affected", actorID, len(memberIDs)))

	// The event is already cancelled and stays cancelled; the dispatcher
	// resolves contacts and publishes off the caller's path.
	if len(memberIDs) > 0 {
		if err := s.Dispatcher.SendCancellationNotices(memberIDs, *cancelled, reason); err != nil {
			s.Logger.Error("NOTIFY", fmt.Sprintf("Failed to dispatch cancellation notices for event %s: %v", id, err))
		}
	}

	return &models.EventCancellation{
		EventID:           id,
		CancelledAt:       *cancelled.CancelledAt,
		AffectedAttendees: len(memberIDs),
		Message:           fmt.Sprintf("notifying %d attendee(s)", len(memberIDs)),
	}, nil
}

// Delete soft-deletes an event. Like cancellation it is one-way and runs
// under the event's lock.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.withEventLock(ctx, id, func() error {
		event, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if event.DeletedAt != nil {
			return &models.InvalidStateError{Reason: "event is already deleted"}
		}

		rows, err := s.DB.SoftDeleteEvent(ctx, id, s.Clock.Now())
		if err != nil {
			return fmt.Errorf("failed to delete event %s: %w", id, err)
		}
		if rows == 0 {
			return &models.InvalidStateError{Reason: "event is already deleted"}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.LogEvent("DELETE", id, "soft deleted")
	return nil
}
