package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachbackend/internal/store"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(s store.Store) *Service {
	svc := New(s, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

type counter struct{ calls int }

func (c *counter) handler(resp any, err error) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		c.calls++
		return resp, err
	}
}

func TestGenerateKey_ScopedByAction(t *testing.T) {
	assert.Equal(t, GenerateKey("abc", "process_outreach"), GenerateKey("abc", "process_outreach"))
	assert.NotEqual(t, GenerateKey("abc", "process_outreach"), GenerateKey("abc", "generate_icebreaker"))
	assert.Len(t, GenerateKey("abc", "x"), 64)
}

func TestProcess_ReplaysCompletedResponse(t *testing.T) {
	ctx := context.Background()
	svc := newService(store.NewMemory())
	c := &counter{}
	body := []byte(`{"profile":{"name":"Jane"}}`)

	first, err := svc.Process(ctx, "k1", "process_outreach", body, c.handler(map[string]any{"success": true}, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(first))

	second, err := svc.Process(ctx, "k1", "process_outreach", body, c.handler(map[string]any{"success": false}, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(second))
	assert.Equal(t, 1, c.calls)
}

func TestProcess_ConflictOnDifferentBody(t *testing.T) {
	ctx := context.Background()
	svc := newService(store.NewMemory())
	c := &counter{}

	_, err := svc.Process(ctx, "k1", "process_outreach", []byte(`{"a":1}`), c.handler("ok", nil))
	require.NoError(t, err)

	_, err = svc.Process(ctx, "k1", "process_outreach", []byte(`{"a":2}`), c.handler("ok", nil))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, c.calls)
}

func TestProcess_InProgress(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)
	body := []byte(`{}`)

	require.NoError(t, svc.save(ctx, Record{
		Key:         GenerateKey("k1", "process_outreach"),
		RequestHash: GenerateRequestHash(body),
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}))

	c := &counter{}
	_, err := svc.Process(ctx, "k1", "process_outreach", body, c.handler("ok", nil))
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Zero(t, c.calls)
}

func TestProcess_FailedAttemptCanBeRetried(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)
	c := &counter{}
	body := []byte(`{}`)

	_, err := svc.Process(ctx, "k1", "get_stats", body, c.handler(nil, errors.New("boom")))
	require.EqualError(t, err, "boom")

	rec, err := svc.Check(ctx, GenerateKey("k1", "get_stats"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "error: boom", rec.Response)

	out, err := svc.Process(ctx, "k1", "get_stats", body, c.handler(42, nil))
	require.NoError(t, err)
	assert.Equal(t, "42", string(out))
	assert.Equal(t, 2, c.calls)
}

func TestCheck_ExpiredRecordIsIgnored(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)
	c := &counter{}

	_, err := svc.Process(ctx, "k1", "process_outreach", []byte(`{}`), c.handler("first", nil))
	require.NoError(t, err)

	svc.now = func() time.Time { return now.Add(DefaultTTL) }
	rec, err := svc.Check(ctx, GenerateKey("k1", "process_outreach"))
	require.NoError(t, err)
	assert.Nil(t, rec)

	out, err := svc.Process(ctx, "k1", "process_outreach", []byte(`{}`), c.handler("second", nil))
	require.NoError(t, err)
	assert.Equal(t, `"second"`, string(out))
	assert.Equal(t, 2, c.calls)
}

func TestProcess_RecordShape(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)

	_, err := svc.Process(ctx, "k1", "process_outreach", []byte(`{}`), func(context.Context) (any, error) { return "ok", nil })
	require.NoError(t, err)

	rec, err := mem.Get(ctx, GenerateKey("k1", "process_outreach"))
	require.NoError(t, err)
	assert.Equal(t, "completed", rec["status"])
	assert.Equal(t, `"ok"`, rec["response"])
	assert.Equal(t, store.FormatTime(now.Add(24*time.Hour)), rec["expires_at"])
	assert.Equal(t, store.FormatTTL(now.Add(24*time.Hour)), rec[store.TTLField])
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (store.Record, error) { return nil, errors.New("down") }
func (brokenStore) Put(context.Context, string, store.Record) error  { return errors.New("down") }

func TestProcess_StoreFaultFailsRequest(t *testing.T) {
	c := &counter{}
	_, err := newService(brokenStore{}).Process(context.Background(), "k1", "x", nil, c.handler("ok", nil))
	assert.ErrorContains(t, err, "failed to check idempotency")
	assert.Zero(t, c.calls)
}

func TestProcess_RetryableResponseIsReturnedButNotReplayed(t *testing.T) {
	ctx := context.Background()
	svc := newService(store.NewMemory())
	body := []byte(`{"profile":{"name":"Jane"}}`)
	calls := 0

	handler := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, Retryable(map[string]any{"success": false, "reason": "delivery_failed"})
		}
		return map[string]any{"success": true}, nil
	}

	first, err := svc.Process(ctx, "k1", "process_outreach", body, handler)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"reason":"delivery_failed"}`, string(first))

	rec, err := svc.Check(ctx, GenerateKey("k1", "process_outreach"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusFailed, rec.Status)

	second, err := svc.Process(ctx, "k1", "process_outreach", body, handler)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(second))
	assert.Equal(t, 2, calls)

	third, err := svc.Process(ctx, "k1", "process_outreach", body, handler)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(third))
	assert.Equal(t, 2, calls)
}
