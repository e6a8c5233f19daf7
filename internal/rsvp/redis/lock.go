package redis

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"church-connect/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockNotAcquired is returned when another claim or cancellation is
// still holding the event's lock after all retries.
var ErrLockNotAcquired = errors.New("event lock not acquired")

const lockKeyPrefix = "event_lock:"

// Lock serializes the check-then-act sections of the admission and
// promotion policies per event id. Different events never contend.
type Lock struct {
	Client     *redis.Client
	Logger     *logger.Logger
	RetryDelay time.Duration
	MaxRetries int
}

func NewLock(client *redis.Client, log *logger.Logger) *Lock {
	return &Lock{
		Client:     client,
		Logger:     log,
		RetryDelay: 50 * time.Millisecond,
		MaxRetries: 40,
	}
}

// getLockTTL returns the lock TTL from the environment or the default.
// The TTL only matters if a holder dies without releasing; normal
// operations release explicitly.
func (l *Lock) getLockTTL() time.Duration {
	defaultTTL := 10 * time.Second

	ttlStr := os.Getenv("EVENT_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		l.Logger.Warn("REDIS", "Invalid EVENT_LOCK_TTL_SECONDS value '"+ttlStr+"', using default 10s")
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// AcquireEvent takes the per-event lock, retrying with a fixed delay
// while another request holds it. It returns a holder token that must be
// passed back to ReleaseEvent.
func (l *Lock) AcquireEvent(ctx context.Context, eventID string) (string, error) {
	key := lockKeyPrefix + eventID
	token := uuid.NewString()
	ttl := l.getLockTTL()

	for attempt := 0; attempt <= l.MaxRetries; attempt++ {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.RetryDelay):
		}
	}

	return "", ErrLockNotAcquired
}

// ReleaseEvent drops the lock if the token still matches the holder.
// A mismatched token means the TTL expired and someone else took over;
// releasing then would break their critical section, so it is a no-op.
func (l *Lock) ReleaseEvent(ctx context.Context, eventID, token string) error {
	key := lockKeyPrefix + eventID

	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
