package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T, table string) *SQL {
	t.Helper()
	db, err := OpenDB(SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQL(db, SQLite, table)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestSQL_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, "linkedin_icebreakers")

	_, err := s.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "abc", Record{"icebreaker": "ct", "tokens_used": "50"}))
	rec, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, Record{"icebreaker": "ct", "tokens_used": "50"}, rec)
}

func TestSQL_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, "linkedin_rate_limits")

	require.NoError(t, s.Put(ctx, "2025-03-01", Record{"message_count": "1"}))
	require.NoError(t, s.Put(ctx, "2025-03-01", Record{"message_count": "2"}))

	rec, err := s.Get(ctx, "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2", rec["message_count"])
}

func TestSQL_InitIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t, "linkedin_idempotency")
	require.NoError(t, s.Init(context.Background()))
}

func TestNewSQL_RejectsBadTableName(t *testing.T) {
	for _, name := range []string{"", "1table", "drop table;", "a-b"} {
		_, err := NewSQL(nil, SQLite, name)
		assert.Error(t, err, name)
	}
}

func TestOpenDB_EmptyDSN(t *testing.T) {
	_, err := OpenDB(Postgres, "")
	assert.Error(t, err)
}
