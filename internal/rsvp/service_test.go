package rsvp_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"church-connect/internal/logger"
	"church-connect/internal/models"
	"church-connect/internal/rsvp"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ---------------- fakes ----------------

// fakeClock hands out strictly increasing instants, one second apart,
// mirroring how claimed_at is assigned in production.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(time.Second)
	return now
}

type fakeStore struct {
	mu     sync.Mutex
	events map[string]*models.Event
	rsvps  []*models.RSVP
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[string]*models.Event{}}
}

func (s *fakeStore) addEvent(e *models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *fakeStore) cancelEvent(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		cancelledAt := at
		e.CancelledAt = &cancelledAt
	}
}

func (s *fakeStore) GetEventByID(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *event
	return &copied, nil
}

func (s *fakeStore) FindActiveRSVP(_ context.Context, eventID, memberID string) (*models.RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rsvps {
		if r.EventID == eventID && r.MemberID == memberID && r.Status != models.StatusCancelled {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindLatestRSVP(_ context.Context, eventID, memberID string) (*models.RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.RSVP
	for _, r := range s.rsvps {
		if r.EventID != eventID || r.MemberID != memberID {
			continue
		}
		if latest == nil || r.ClaimedAt.After(latest.ClaimedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *fakeStore) ConfirmedCount(_ context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.rsvps {
		if r.EventID == eventID && r.Status == models.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) ListWaitlisted(_ context.Context, eventID string) ([]models.RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var queue []models.RSVP
	for _, r := range s.rsvps {
		if r.EventID == eventID && r.Status == models.StatusWaitlisted {
			queue = append(queue, *r)
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		if !queue[i].ClaimedAt.Equal(queue[j].ClaimedAt) {
			return queue[i].ClaimedAt.Before(queue[j].ClaimedAt)
		}
		return queue[i].ID < queue[j].ID
	})
	return queue, nil
}

func (s *fakeStore) CreateRSVP(_ context.Context, r *models.RSVP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	s.rsvps = append(s.rsvps, &copied)
	return nil
}

func (s *fakeStore) UpdateRSVPStatus(_ context.Context, id, status string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rsvps {
		if r.ID == id {
			r.Status = status
			r.UpdatedAt = at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeStore) statusOf(eventID, memberID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.rsvps) - 1; i >= 0; i-- {
		if s.rsvps[i].EventID == eventID && s.rsvps[i].MemberID == memberID {
			return s.rsvps[i].Status
		}
	}
	return ""
}

func (s *fakeStore) recordCount(eventID, memberID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.rsvps {
		if r.EventID == eventID && r.MemberID == memberID {
			count++
		}
	}
	return count
}

// fakeLock serializes per event with a real mutex, like the Redis lock
// does in production.
type fakeLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFakeLock() *fakeLock {
	return &fakeLock{locks: map[string]*sync.Mutex{}}
}

func (l *fakeLock) AcquireEvent(_ context.Context, eventID string) (string, error) {
	l.mu.Lock()
	m, ok := l.locks[eventID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[eventID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return uuid.NewString(), nil
}

func (l *fakeLock) ReleaseEvent(_ context.Context, eventID, _ string) error {
	l.mu.Lock()
	m := l.locks[eventID]
	l.mu.Unlock()
	m.Unlock()
	return nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	notices []models.RSVPNotice
	err     error
}

func (d *fakeDispatcher) SendRSVPNotice(memberID string, event models.Event, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.notices = append(d.notices, models.RSVPNotice{
		EventID:  event.ID,
		MemberID: memberID,
		Status:   status,
	})
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.notices)
}

// ---------------- fixtures ----------------

var baseTime = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

func futureEvent(id string, capacity *int) *models.Event {
	return &models.Event{
		ID:            id,
		Title:         "Community Dinner",
		Description:   "Monthly shared meal",
		Location:      "Fellowship Hall",
		Category:      models.CategoryCommunity,
		StartDateTime: baseTime.Add(72 * time.Hour),
		EndDateTime:   baseTime.Add(75 * time.Hour),
		Capacity:      capacity,
		CreatedBy:     "admin-1",
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}
}

func intPtr(v int) *int { return &v }

func newTestService(store *fakeStore, dispatcher *fakeDispatcher) (*rsvp.Service, *fakeClock) {
	clock := newFakeClock(baseTime)
	svc := rsvp.NewService(store, newFakeLock(), dispatcher, clock, logger.NewNop())
	return svc, clock
}

// ---------------- claim preconditions ----------------

func TestClaimEventNotFound(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), &fakeDispatcher{})

	_, err := svc.Claim(context.Background(), "missing", "member-1")

	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestClaimTerminalAndStartedEvents(t *testing.T) {
	now := baseTime

	tests := []struct {
		name   string
		mutate func(*models.Event)
		reason string
	}{
		{"cancelled", func(e *models.Event) { e.CancelledAt = &now }, "cancelled"},
		{"deleted", func(e *models.Event) { e.DeletedAt = &now }, "deleted"},
		{"already started", func(e *models.Event) {
			e.StartDateTime = baseTime.Add(-time.Hour)
			e.EndDateTime = baseTime.Add(time.Hour)
		}, "started"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			event := futureEvent("event-1", intPtr(10))
			tt.mutate(event)
			store.addEvent(event)

			svc, _ := newTestService(store, &fakeDispatcher{})
			_, err := svc.Claim(context.Background(), "event-1", "member-1")

			var invalid *models.InvalidStateError
			require.ErrorAs(t, err, &invalid)
			assert.Contains(t, invalid.Reason, tt.reason)
			// Precondition failures must not leave a record behind.
			assert.Equal(t, 0, store.recordCount("event-1", "member-1"))
		})
	}
}

// cancellingLock marks the event cancelled while the caller is waiting
// for the lock, the interleaving a cancellation cascade produces when it
// wins the race against a claim.
type cancellingLock struct {
	store *fakeStore
	clock *fakeClock
}

func (l *cancellingLock) AcquireEvent(_ context.Context, eventID string) (string, error) {
	l.store.cancelEvent(eventID, l.clock.Now())
	return uuid.NewString(), nil
}

func (l *cancellingLock) ReleaseEvent(_ context.Context, _, _ string) error { return nil }

func TestClaimRejectsEventCancelledWhileWaitingForLock(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(10)))
	clock := newFakeClock(baseTime)

	svc := rsvp.NewService(store, &cancellingLock{store: store, clock: clock}, &fakeDispatcher{}, clock, logger.NewNop())

	_, err := svc.Claim(context.Background(), "event-1", "member-a")

	// The state check runs inside the critical section, so the claim
	// sees the cancellation and must not commit anything.
	var invalid *models.InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "cancelled")
	assert.Equal(t, 0, store.recordCount("event-1", "member-a"))
}

func TestClaimDuplicatePrevention(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(1)))
	svc, _ := newTestService(store, &fakeDispatcher{})
	ctx := context.Background()

	_, err := svc.Claim(ctx, "event-1", "member-a")
	require.NoError(t, err)

	// A second active claim is a conflict, whether confirmed or
	// waitlisted.
	_, err = svc.Claim(ctx, "event-1", "member-a")
	var conflict *models.ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = svc.Claim(ctx, "event-1", "member-b")
	require.NoError(t, err)
	_, err = svc.Claim(ctx, "event-1", "member-b")
	assert.ErrorAs(t, err, &conflict)
}

func TestReclaimAfterCancellationAppendsNewRecord(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(5)))
	svc, _ := newTestService(store, &fakeDispatcher{})
	ctx := context.Background()

	_, err := svc.Claim(ctx, "event-1", "member-a")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, "event-1", "member-a")
	require.NoError(t, err)

	// A cancelled record does not block a fresh claim, and the old row
	// stays as history.
	result, err := svc.Claim(ctx, "event-1", "member-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, result.Status)
	assert.Equal(t, 2, store.recordCount("event-1", "member-a"))
}

// ---------------- admission scenarios ----------------

func TestAdmissionFillsCapacityThenWaitlists(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(2)))
	svc, _ := newTestService(store, &fakeDispatcher{})
	ctx := context.Background()

	resultA, err := svc.Claim(ctx, "event-1", "member-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, resultA.Status)
	assert.Equal(t, 1, resultA.AvailableSpots)

	resultB, err := svc.Claim(ctx, "event-1", "member-b")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, resultB.Status)
	assert.Equal(t, 0, resultB.AvailableSpots)

	resultC, err := svc.Claim(ctx, "event-1", "member-c")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitlisted, resultC.Status)
	assert.Equal(t, 0, resultC.AvailableSpots)

	// Continuing: member A cancels, the sole waitlisted member C takes
	// the seat.
	cancel, err := svc.Cancel(ctx, "event-1", "member-a")
	require.NoError(t, err)
	assert.True(t, cancel.WaitlistPromoted)
	assert.Equal(t, models.StatusConfirmed, store.statusOf("event-1", "member-c"))
}

func TestPromotionIsFIFO(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(1)))
	svc, _ := newTestService(store, &fakeDispatcher{})
	ctx := context.Background()

	_, err := svc.Claim(ctx, "event-1", "member-seated")
	require.NoError(t, err)
	_, err = svc.Claim(ctx, "event-1", "member-w1")
	require.NoError(t, err)
	_, err = svc.Claim(ctx, "event-1", "member-w2")
	require.NoError(t, err)

	cancel, err := svc.Cancel(ctx, "event-1", "member-seated")
	require.NoError(t, err)
	assert.True(t, cancel.WaitlistPromoted)

	// The earlier claim wins the seat, the later one stays queued.
	assert.Equal(t, models.StatusConfirmed, store.statusOf("event-1", "member-w1"))
	assert.Equal(t, models.StatusWaitlisted, store.statusOf("event-1", "member-w2"))

	// And the ordering stays stable across the next vacancy.
	cancel, err = svc.Cancel(ctx, "event-1", "member-w1")
	require.NoError(t, err)
	assert.True(t, cancel.WaitlistPromoted)
	assert.Equal(t, models.StatusConfirmed, store.statusOf("event-1", "member-w2"))
}

func TestNoPromotionOnUnboundedEvent(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", nil))
	svc, _ := newTestService(store, &fakeDispatcher{})
	ctx := context.Background()

	_, err := svc.Claim(ctx, "event-1", "member-a")
	require.NoError(t, err)
	_, err = svc.Claim(ctx, "event-1", "member-b")
	require.NoError(t, err)

	cancel, err := svc.Cancel(ctx, "event-1", "member-a")
	require.NoError(t, err)
	assert.False(t, cancel.WaitlistPromoted)
}

func TestUnboundedEventConfirmsEveryClaim(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", nil))
	svc, _ := newTestService(store, &fakeDispatcher{})
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		result, err := svc.Claim(ctx, "event-1", fmt.Sprintf("member-%d", i))
		require.NoError(t, err)
		require.Equal(t, models.StatusConfirmed, result.Status)
		require.Equal(t, models.UnlimitedSpots, result.AvailableSpots)
	}
}

func TestConcurrentClaimsNeverExceedCapacity(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(5)))
	svc, _ := newTestService(store, &fakeDispatcher{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Claim(ctx, "event-1", fmt.Sprintf("member-%d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	confirmed, err := store.ConfirmedCount(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, 5, confirmed)

	waitlist, err := store.ListWaitlisted(ctx, "event-1")
	require.NoError(t, err)
	assert.Len(t, waitlist, 20)
}

// ---------------- cancel preconditions ----------------

func TestCancelPreconditions(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(5)))
	svc, _ := newTestService(store, &fakeDispatcher{})
	ctx := context.Background()

	_, err := svc.Cancel(ctx, "missing", "member-a")
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	// No record for this member yet.
	_, err = svc.Cancel(ctx, "event-1", "member-a")
	assert.ErrorAs(t, err, &notFound)

	_, err = svc.Claim(ctx, "event-1", "member-a")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, "event-1", "member-a")
	require.NoError(t, err)

	// Cancelling twice hits the already-cancelled record.
	_, err = svc.Cancel(ctx, "event-1", "member-a")
	var invalid *models.InvalidStateError
	assert.ErrorAs(t, err, &invalid)
}

func TestCancelAfterEventStarted(t *testing.T) {
	store := newFakeStore()
	event := futureEvent("event-1", intPtr(5))
	event.StartDateTime = baseTime.Add(-time.Hour)
	event.EndDateTime = baseTime.Add(time.Hour)
	store.addEvent(event)
	svc, _ := newTestService(store, &fakeDispatcher{})

	_, err := svc.Cancel(context.Background(), "event-1", "member-a")
	var invalid *models.InvalidStateError
	assert.ErrorAs(t, err, &invalid)
}

// ---------------- notification boundary ----------------

func TestClaimSucceedsWhenDispatchFails(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(5)))

	dispatcher := &fakeDispatcher{err: errors.New("broker down")}
	svc, _ := newTestService(store, dispatcher)

	result, err := svc.Claim(context.Background(), "event-1", "member-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, result.Status)
	assert.Equal(t, 1, store.recordCount("event-1", "member-a"))
}

func TestClaimDispatchesNotice(t *testing.T) {
	store := newFakeStore()
	store.addEvent(futureEvent("event-1", intPtr(5)))

	dispatcher := &fakeDispatcher{}
	svc, _ := newTestService(store, dispatcher)

	_, err := svc.Claim(context.Background(), "event-1", "member-a")
	require.NoError(t, err)
	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, "member-a", dispatcher.notices[0].MemberID)
	assert.Equal(t, models.StatusConfirmed, dispatcher.notices[0].Status)
}

// ---------------- mock-based failure paths ----------------

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockDBLayer) FindActiveRSVP(ctx context.Context, eventID, memberID string) (*models.RSVP, error) {
	args := m.Called(ctx, eventID, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RSVP), args.Error(1)
}

func (m *MockDBLayer) FindLatestRSVP(ctx context.Context, eventID, memberID string) (*models.RSVP, error) {
	args := m.Called(ctx, eventID, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RSVP), args.Error(1)
}

func (m *MockDBLayer) ConfirmedCount(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockDBLayer) ListWaitlisted(ctx context.Context, eventID string) ([]models.RSVP, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RSVP), args.Error(1)
}

func (m *MockDBLayer) CreateRSVP(ctx context.Context, r *models.RSVP) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateRSVPStatus(ctx context.Context, id, status string, at time.Time) error {
	args := m.Called(ctx, id, status, at)
	return args.Error(0)
}

type MockEventLock struct {
	mock.Mock
}

func (m *MockEventLock) AcquireEvent(ctx context.Context, eventID string) (string, error) {
	args := m.Called(ctx, eventID)
	return args.String(0), args.Error(1)
}

func (m *MockEventLock) ReleaseEvent(ctx context.Context, eventID, token string) error {
	args := m.Called(ctx, eventID, token)
	return args.Error(0)
}

func TestClaimFailsWhenLockUnavailable(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)

	mockLock.On("AcquireEvent", mock.Anything, "event-1").Return("", errors.New("event lock not acquired"))

	svc := rsvp.NewService(mockDB, mockLock, &fakeDispatcher{}, newFakeClock(baseTime), logger.NewNop())

	_, err := svc.Claim(context.Background(), "event-1", "member-a")
	assert.Error(t, err)
	// Nothing is read or written until the lock is held.
	mockDB.AssertNotCalled(t, "GetEventByID", mock.Anything, mock.Anything)
	mockDB.AssertNotCalled(t, "CreateRSVP", mock.Anything, mock.Anything)
	mockLock.AssertExpectations(t)
}

func TestClaimReleasesLockOnCreateFailure(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)

	event := futureEvent("event-1", intPtr(5))
	mockDB.On("GetEventByID", mock.Anything, "event-1").Return(event, nil)
	mockDB.On("FindActiveRSVP", mock.Anything, "event-1", "member-a").Return(nil, nil)
	mockDB.On("ConfirmedCount", mock.Anything, "event-1").Return(0, nil)
	mockDB.On("CreateRSVP", mock.Anything, mock.Anything).Return(errors.New("insert failed"))
	mockLock.On("AcquireEvent", mock.Anything, "event-1").Return("token-1", nil)
	mockLock.On("ReleaseEvent", mock.Anything, "event-1", "token-1").Return(nil)

	svc := rsvp.NewService(mockDB, mockLock, &fakeDispatcher{}, newFakeClock(baseTime), logger.NewNop())

	_, err := svc.Claim(context.Background(), "event-1", "member-a")
	assert.Error(t, err)
	mockLock.AssertCalled(t, "ReleaseEvent", mock.Anything, "event-1", "token-1")
}
