// Package store is the key-value persistence used for the icebreaker cache,
// the daily counters and idempotency records. Records are flat string maps so
// that every backend can hold them without a schema of its own.
package store

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// TTLField is the optional epoch-seconds attribute backends may use for
// eviction. Readers must not rely on it; expiry is checked at read time.
const TTLField = "ttl"

// Record is a flat field map.
type Record map[string]string

// Store is the key-value contract consumed by the core. No transactions.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	Put(ctx context.Context, key string, rec Record) error
}

// Time reads an RFC3339 timestamp field.
func (r Record) Time(field string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r[field])
}

// Int reads an integer field. A missing field reads as zero.
func (r Record) Int(field string) (int, error) {
	v, ok := r[field]
	if !ok || v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// Float reads a float field. A missing field reads as zero.
func (r Record) Float(field string) (float64, error) {
	v, ok := r[field]
	if !ok || v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func FormatInt(n int) string {
	return strconv.Itoa(n)
}

func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func FormatTTL(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
