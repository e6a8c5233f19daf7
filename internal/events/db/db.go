package db

import (
	"context"
	"time"

	"church-connect/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- EVENTS ----------------

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

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

// UpdateEvent writes the mutable fields back.
func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewUpdate().
		Model(event).
		Column("title", "description", "location", "category",
			"start_date_time", "end_date_time", "capacity", "updated_at").
		Where("id = ?", event.ID).
		Exec(ctx)
	return err
}

// CancelEvent is the single atomic transition to the cancelled state.
// The guard columns make a second cancel (or a cancel racing a delete)
// touch zero rows, which the service maps to InvalidState.
func (d *DB) CancelEvent(ctx context.Context, id string, at time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("cancelled_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("cancelled_at IS NULL").
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SoftDeleteEvent sets the deleted_at marker. Idempotence is guarded the
// same way as CancelEvent.
func (d *DB) SoftDeleteEvent(ctx context.Context, id string, at time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("deleted_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListUpcoming returns non-deleted events that have not started yet,
// soonest first. Cancelled events stay visible so members can see the
// cancellation.
func (d *DB) ListUpcoming(ctx context.Context, now time.Time) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("deleted_at IS NULL").
		Where("start_date_time > ?", now).
		Order("start_date_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ---------------- RSVPS (cascade reads) ----------------

func (d *DB) ListRSVPsByEvent(ctx context.Context, eventID string) ([]models.RSVP, error) {
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

func (d *DB) ConfirmedCount(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.RSVP)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.StatusConfirmed).
		Count(ctx)
}
