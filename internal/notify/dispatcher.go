package notify

import (
	"context"
	"fmt"
	"sync"

	"church-connect/internal/logger"
	"church-connect/internal/models"
)

// Publisher is the transport behind the dispatcher, normally the Kafka
// producer.
type Publisher interface {
	PublishRSVPNotice(notice models.RSVPNotice) error
	PublishCancellationNotice(notice models.CancellationNotice) error
}

// MemberLookup resolves contact details for a notice. The lookup runs on
// the dispatcher's background goroutine, never on the caller's path.
type MemberLookup interface {
	GetMemberByID(ctx context.Context, id string) (*models.Member, error)
}

// Dispatcher hands notices to the transport without making the caller
// wait: the send methods only capture the member ids and return. Contact
// resolution and the publish both happen in the background. Delivery is
// at-most-once: a failed lookup or publish is logged and dropped, never
// retried, and never surfaced to the state change that triggered it.
type Dispatcher struct {
	Publisher Publisher
	Members   MemberLookup
	Logger    *logger.Logger

	wg sync.WaitGroup
}

func NewDispatcher(publisher Publisher, members MemberLookup, log *logger.Logger) *Dispatcher {
	return &Dispatcher{Publisher: publisher, Members: members, Logger: log}
}

// SendRSVPNotice queues one claim-outcome notice. Always returns nil.
func (d *Dispatcher) SendRSVPNotice(memberID string, event models.Event, status string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		member, err := d.Members.GetMemberByID(context.Background(), memberID)
		if err != nil {
			d.Logger.Error("NOTIFY", fmt.Sprintf("Could not resolve member %s for rsvp notice: %v", memberID, err))
			return
		}

		notice := models.RSVPNotice{
			EventID:    event.ID,
			EventTitle: event.Title,
			StartsAt:   event.StartDateTime,
			Location:   event.Location,
			MemberID:   member.ID,
			Email:      member.Email,
			FullName:   member.FullName,
			Status:     status,
		}
		if err := d.Publisher.PublishRSVPNotice(notice); err != nil {
			d.Logger.Error("NOTIFY", fmt.Sprintf("Failed to publish rsvp notice for %s: %v", notice.Email, err))
			return
		}
		d.Logger.LogNotify("RSVP", event.ID, fmt.Sprintf("%s notice queued for %s", status, notice.Email))
	}()
	return nil
}

// SendCancellationNotices fans one notice out per attendee. A failed
// lookup or publish for one member is logged and skipped so the rest
// still get theirs.
func (d *Dispatcher) SendCancellationNotices(memberIDs []string, event models.Event, reason string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sent := 0
		for _, memberID := range memberIDs {
			member, err := d.Members.GetMemberByID(context.Background(), memberID)
			if err != nil {
				d.Logger.Error("NOTIFY", fmt.Sprintf("Could not resolve member %s for cancellation notice: %v", memberID, err))
				continue
			}

			notice := models.CancellationNotice{
				EventID:    event.ID,
				EventTitle: event.Title,
				StartsAt:   event.StartDateTime,
				Location:   event.Location,
				MemberID:   member.ID,
				Email:      member.Email,
				FullName:   member.FullName,
				Reason:     reason,
			}
			if err := d.Publisher.PublishCancellationNotice(notice); err != nil {
				d.Logger.Error("NOTIFY", fmt.Sprintf("Failed to publish cancellation notice for %s: %v", member.Email, err))
				continue
			}
			sent++
		}
		d.Logger.LogNotify("CANCELLATION", event.ID, fmt.Sprintf("notices queued for %d of %d attendee(s)", sent, len(memberIDs)))
	}()
	return nil
}

// Wait blocks until queued notices have been handed to the transport.
// Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
