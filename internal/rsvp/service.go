package rsvp

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
	FindActiveRSVP(ctx context.Context, eventID, memberID string) (*models.RSVP, error)
	FindLatestRSVP(ctx context.Context, eventID, memberID string) (*models.RSVP, error)
	ConfirmedCount(ctx context.Context, eventID string) (int, error)
	ListWaitlisted(ctx context.Context, eventID string) ([]models.RSVP, error)
	CreateRSVP(ctx context.Context, rsvp *models.RSVP) error
	UpdateRSVPStatus(ctx context.Context, id, status string, at time.Time) error
}

// EventLock serializes claim and cancel against the same event. The
// event lifecycle transitions take the same lock, so an event observed
// active inside the critical section stays active until release.
type EventLock interface {
	AcquireEvent(ctx context.Context, eventID string) (string, error)
	ReleaseEvent(ctx context.Context, eventID, token string) error
}

// Dispatcher is the best-effort notification boundary. Implementations
// must not block; a returned error is logged here and goes no further,
// because by the time dispatch runs the claim has already committed.
type Dispatcher interface {
	SendRSVPNotice(memberID string, event models.Event, status string) error
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

// loadClaimableEvent fetches the event and checks every claim
// precondition. Callers must hold the event's lock, otherwise a
// concurrent cancellation can land between the check and the write.
func (s *Service) loadClaimableEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.NotFoundError{Resource: "event", ID: eventID}
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}

	if event.CancelledAt != nil {
		return nil, &models.InvalidStateError{Reason: "event is cancelled"}
	}
	if event.DeletedAt != nil {
		return nil, &models.InvalidStateError{Reason: "event is deleted"}
	}
	if !event.StartDateTime.After(s.Clock.Now()) {
		return nil, &models.InvalidStateError{Reason: "event has already started"}
	}
	return event, nil
}

// Claim runs the admission policy: the member either gets a CONFIRMED
// seat, a WAITLISTED place in the queue, or a typed precondition
// failure. The event's lock is held from before the state checks until
// after the write, so two racing claims cannot both take the last seat
// and a racing event cancellation cannot admit anyone to a dead event.
func (s *Service) Claim(ctx context.Context, eventID, memberID string) (*models.ClaimResult, error) {
	token, err := s.Lock.AcquireEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock event %s: %w", eventID, err)
	}
	defer func() {
		if err := s.Lock.ReleaseEvent(ctx, eventID, token); err != nil {
			s.Logger.Error("RSVP", fmt.Sprintf("Failed to release lock for event %s: %v", eventID, err))
		}
	}()

	event, err := s.loadClaimableEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	active, err := s.DB.FindActiveRSVP(ctx, eventID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing claim: %w", err)
	}
	if active != nil {
		return nil, &models.ConflictError{Reason: "member already has an active claim for this event"}
	}

	confirmed, err := s.DB.ConfirmedCount(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to read confirmed count: %w", err)
	}

	status := models.StatusConfirmed
	if event.Capacity != nil && confirmed >= *event.Capacity {
		status = models.StatusWaitlisted
	}

	now := s.Clock.Now()
	record := &models.RSVP{
		ID:        uuid.NewString(),
		EventID:   eventID,
		MemberID:  memberID,
		Status:    status,
		ClaimedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.CreateRSVP(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create rsvp: %w", err)
	}

	spots := models.UnlimitedSpots
	if event.Capacity != nil {
		if status == models.StatusConfirmed {
			spots = event.AvailableSpots(confirmed + 1)
		} else {
			spots = event.AvailableSpots(confirmed)
		}
	}

	s.Logger.LogRSVP("CLAIM", eventID, memberID, "admitted as "+status)

	// The claim has committed; the dispatcher resolves contact details
	// and publishes in the background, so this never blocks the caller.
	if err := s.Dispatcher.SendRSVPNotice(memberID, *event, status); err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Failed to dispatch rsvp notice for %s: %v", memberID, err))
	}

	return &models.ClaimResult{
		RSVPID:         record.ID,
		EventID:        eventID,
		MemberID:       memberID,
		Status:         status,
		AvailableSpots: spots,
	}, nil
}

// Cancel runs the promotion policy: the caller's record is marked
// CANCELLED and, when a confirmed seat on a capacity-bounded event was
// freed, the earliest-queued waitlisted member takes it. This is the
// only WAITLISTED-to-CONFIRMED path.
func (s *Service) Cancel(ctx context.Context, eventID, memberID string) (*models.CancelResult, error) {
	token, err := s.Lock.AcquireEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock event %s: %w", eventID, err)
	}
	defer func() {
		if err := s.Lock.ReleaseEvent(ctx, eventID, token); err != nil {
			s.Logger.Error("RSVP", fmt.Sprintf("Failed to release lock for event %s: %v", eventID, err))
		}
	}()

	event, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.NotFoundError{Resource: "event", ID: eventID}
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}

	if !event.StartDateTime.After(s.Clock.Now()) {
		return nil, &models.InvalidStateError{Reason: "event has already started"}
	}

	record, err := s.DB.FindLatestRSVP(ctx, eventID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rsvp: %w", err)
	}
	if record == nil {
		return nil, &models.NotFoundError{Resource: "rsvp", ID: eventID + "/" + memberID}
	}
	if record.Status == models.StatusCancelled {
		return nil, &models.InvalidStateError{Reason: "claim is already cancelled"}
	}

	wasConfirmed := record.Status == models.StatusConfirmed

	now := s.Clock.Now()
	if err := s.DB.UpdateRSVPStatus(ctx, record.ID, models.StatusCancelled, now); err != nil {
		return nil, fmt.Errorf("failed to cancel rsvp: %w", err)
	}
	s.Logger.LogRSVP("CANCEL", eventID, memberID, "claim cancelled")

	promoted := false
	if wasConfirmed && event.Capacity != nil {
		waitlist, err := s.DB.ListWaitlisted(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to read waitlist: %w", err)
		}
		if len(waitlist) > 0 {
			next := waitlist[0]
			if err := s.DB.UpdateRSVPStatus(ctx, next.ID, models.StatusConfirmed, now); err != nil {
				return nil, fmt.Errorf("failed to promote rsvp %s: %w", next.ID, err)
			}
			promoted = true
			// The promoted member is not notified here; the vacated
			// seat just changes hands.
			s.Logger.LogRSVP("PROMOTE", eventID, next.MemberID, "promoted from waitlist")
		}
	}

	return &models.CancelResult{
		EventID:          eventID,
		MemberID:         memberID,
		WaitlistPromoted: promoted,
	}, nil
}
