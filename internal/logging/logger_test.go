package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "debug", Format: "json", Service: "outreach", Writer: &buf})

	l := Named(log, "cache")
	l.Info().Str("profile_id", "abc").Msg("cached icebreaker")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "outreach", line["service"])
	assert.Equal(t, "cache", line["component"])
	assert.Equal(t, "abc", line["profile_id"])
	assert.Equal(t, "cached icebreaker", line["message"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Writer: &buf})

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_SERVICE", "")

	opt := FromEnv()
	assert.Equal(t, "debug", opt.Level)
	assert.Equal(t, "console", opt.Format)
	assert.Equal(t, "outreach", opt.Service)
}

func TestNew_LeavesTimeFormatAlone(t *testing.T) {
	assert.Equal(t, time.RFC3339Nano, zerolog.TimeFieldFormat)

	zerolog.TimeFieldFormat = time.RFC3339
	t.Cleanup(func() { zerolog.TimeFieldFormat = time.RFC3339Nano })

	New(Options{Writer: &bytes.Buffer{}})
	assert.Equal(t, time.RFC3339, zerolog.TimeFieldFormat)
}
