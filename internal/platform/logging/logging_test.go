package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_WritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontdesk.log")

	logger, closer := New(Options{Level: "info", File: path, MaxSizeMB: 1, Service: "frontdesk"})
	logger.Info().Str("doctor_id", "d-1").Msg("appointment booked")
	logger.Debug().Msg("filtered out")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"message":"appointment booked"`)
	assert.Contains(t, out, `"service":"frontdesk"`)
	assert.Contains(t, out, `"doctor_id":"d-1"`)
	assert.False(t, strings.Contains(out, "filtered out"))
}

func TestNew_WithoutFileReturnsNopCloser(t *testing.T) {
	_, closer := New(Options{Level: "info"})
	require.NotNil(t, closer)
	assert.NoError(t, closer.Close())
}
