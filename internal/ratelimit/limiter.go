// Package ratelimit enforces the daily outreach quota. The counter lives in
// the store; nothing is cached in process between calls.
//
// Admit and Commit are separate reads of a shared counter, so concurrent
// callers can both be admitted at limit-1 and both commit. The daily count can
// therefore overshoot the limit by up to the number of concurrent in-flight
// outreaches. Commit is also a read-modify-write, so two racing commits can
// collapse into a single increment. Both are accepted in exchange for not
// needing a distributed lock.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreachbackend/internal/models"
	"github.com/outreachbackend/internal/store"
)

// DefaultDailyLimit is the number of messages allowed per UTC day.
const DefaultDailyLimit = 50

// DateLayout formats the counter key. Days roll over at midnight UTC.
const DateLayout = "2006-01-02"

// retention keeps old counters around for a week before store eviction.
const retention = 7 * 24 * time.Hour

// ErrCounterUnavailable means today's counter could not be read.
var ErrCounterUnavailable = errors.New("daily counter unavailable")

const (
	fieldDate         = "date"
	fieldMessageCount = "message_count"
	fieldUpdatedAt    = "updated_at"
)

// Decision is the result of an admission check.
type Decision struct {
	Allowed bool
	Count   int
	Limit   int
}

type Limiter struct {
	store store.Store
	limit int
	log   zerolog.Logger
	now   func() time.Time
}

func New(s store.Store, limit int, log zerolog.Logger) *Limiter {
	return &Limiter{store: s, limit: limit, log: log, now: time.Now}
}

// WithClock returns a copy of the limiter reading time from now.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	c := *l
	c.now = now
	return &c
}

func (l *Limiter) Limit() int {
	return l.limit
}

// Today returns the counter key for the current UTC date.
func (l *Limiter) Today() string {
	return DateKey(l.now())
}

func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Admit reports whether another message may be sent today. A counter that
// cannot be read denies admission: undercounting is worse than a false decline.
func (l *Limiter) Admit(ctx context.Context) (Decision, error) {
	counter, err := l.read(ctx, l.Today())
	if err != nil {
		l.log.Error().Err(err).Msg("error checking rate limit")
		return Decision{Allowed: false, Limit: l.limit}, err
	}

	d := Decision{Count: counter.MessageCount, Limit: l.limit}
	if counter.MessageCount >= l.limit {
		l.log.Warn().Int("count", counter.MessageCount).Int("limit", l.limit).Msg("daily message limit reached")
		return d, nil
	}

	d.Allowed = true
	return d, nil
}

// Commit adds one message to today's counter and returns the new count.
// Call it once per completed outreach, after delivery.
func (l *Limiter) Commit(ctx context.Context) (int, error) {
	at := l.now()
	date := DateKey(at)

	counter, err := l.read(ctx, date)
	if err != nil {
		return 0, err
	}

	counter.MessageCount++
	rec := store.Record{
		fieldDate:         date,
		fieldMessageCount: store.FormatInt(counter.MessageCount),
		fieldUpdatedAt:    store.FormatTime(at),
		store.TTLField:    store.FormatTTL(at.Add(retention)),
	}
	if err := l.store.Put(ctx, date, rec); err != nil {
		return 0, fmt.Errorf("failed to save daily counter: %w", err)
	}

	return counter.MessageCount, nil
}

// Count returns today's message count, zero if nothing was sent yet.
func (l *Limiter) Count(ctx context.Context) (int, error) {
	counter, err := l.read(ctx, l.Today())
	if err != nil {
		return 0, err
	}
	return counter.MessageCount, nil
}

func (l *Limiter) read(ctx context.Context, date string) (models.DailyCounter, error) {
	rec, err := l.store.Get(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		return models.DailyCounter{Date: date}, nil
	}
	if err != nil {
		return models.DailyCounter{}, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}

	count, err := rec.Int(fieldMessageCount)
	if err != nil || count < 0 {
		return models.DailyCounter{}, fmt.Errorf("%w: bad message_count %q", ErrCounterUnavailable, rec[fieldMessageCount])
	}

	counter := models.DailyCounter{Date: date, MessageCount: count}
	if ts, err := rec.Time(fieldUpdatedAt); err == nil {
		counter.UpdatedAt = ts
	}
	return counter, nil
}
