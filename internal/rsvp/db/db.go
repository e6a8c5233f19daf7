package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"church-connect/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- EVENTS (read side) ----------------

// GetEventByID fetches one event, soft-deleted rows included; the
// policies decide what a deleted_at marker means.
func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ---------------- RSVPS ----------------

// FindActiveRSVP returns the member's CONFIRMED or WAITLISTED record for
// the event, or nil when only CANCELLED history (or nothing) exists.
func (d *DB) FindActiveRSVP(ctx context.Context, eventID, memberID string) (*models.RSVP, error) {
	var rsvp models.RSVP
	err := d.Bun.NewSelect().
		Model(&rsvp).
		Where("event_id = ?", eventID).
		Where("member_id = ?", memberID).
		Where("status != ?", models.StatusCancelled).
		Order("claimed_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rsvp, nil
}

// FindLatestRSVP returns the member's most recent record for the event
// regardless of status. Re-claims append rows, so "latest" is by
// claimed_at with id as the tiebreaker.
func (d *DB) FindLatestRSVP(ctx context.Context, eventID, memberID string) (*models.RSVP, error) {
	var rsvp models.RSVP
	err := d.Bun.NewSelect().
		Model(&rsvp).
		Where("event_id = ?", eventID).
		Where("member_id = ?", memberID).
		Order("claimed_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rsvp, nil
}

// ConfirmedCount returns the number of CONFIRMED records for an event.
// Callers read it under the per-event lock so the decide-then-write step
// never acts on a stale value.
func (d *DB) ConfirmedCount(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.RSVP)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.StatusConfirmed).
		Count(ctx)
}

// ListByEventID fetches every record for an event, oldest claim first.
func (d *DB) ListByEventID(ctx context.Context, eventID string) ([]models.RSVP, error) {
	var rsvps []models.RSVP
	err := d.Bun.NewSelect().
		Model(&rsvps).
		Where("event_id = ?", eventID).
		Order("claimed_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rsvps, nil
}

// ListWaitlisted fetches the event's waitlist queue in promotion order:
// earliest claimed_at first, id as the deterministic tiebreaker.
func (d *DB) ListWaitlisted(ctx context.Context, eventID string) ([]models.RSVP, error) {
	var rsvps []models.RSVP
	err := d.Bun.NewSelect().
		Model(&rsvps).
		Where("event_id = ?", eventID).
		Where("status = ?", models.StatusWaitlisted).
		Order("claimed_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rsvps, nil
}

// CreateRSVP inserts a new attendance record.
func (d *DB) CreateRSVP(ctx context.Context, rsvp *models.RSVP) error {
	_, err := d.Bun.NewInsert().Model(rsvp).Exec(ctx)
	return err
}

// UpdateRSVPStatus transitions one record's status.
func (d *DB) UpdateRSVPStatus(ctx context.Context, id, status string, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.RSVP)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteByEventAndMember removes a member's records for an event
// outright. Claim cancellation keeps history instead; this is the
// administrative purge path.
func (d *DB) DeleteByEventAndMember(ctx context.Context, eventID, memberID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.RSVP)(nil)).
		Where("event_id = ?", eventID).
		Where("member_id = ?", memberID).
		Exec(ctx)
	return err
}

// ---------------- MEMBERS (notification enrichment) ----------------

func (d *DB) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	err := d.Bun.NewSelect().
		Model(&member).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &member, nil
}
