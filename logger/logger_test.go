package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)

		out = append(out, rec)
	}

	return out
}

func TestLogger(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "test",
		JSON:      true,
		Output:    &buf,
	})

	Get().Info("default subsystem")
	Get(WithSubsystem(t.Context(), "overridden")).Info("overridden subsystem")
	Get(With(t.Context(), "invocation_id", "abc")).Info("with values")
	Get(WithMuted(t.Context(), true)).Info("muted")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "test", lines[0]["subsystem"])
	assert.NotEmpty(t, lines[0]["host"])
	assert.Equal(t, "overridden", lines[1]["subsystem"])
	assert.Equal(t, "abc", lines[2]["invocation_id"])
}

func TestLegacy(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem:   "test",
		JSON:        true,
		MinLevel:    slog.LevelDebug,
		LegacyLevel: slog.LevelInfo,
		Output:      &buf,
	})

	log.Println("legacy line")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "legacy line", lines[0]["msg"])
}

func TestTee(t *testing.T) { //nolint:paralleltest
	var primary, secondary bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "test",
		JSON:      true,
		Output:    &primary,
		Tee:       []slog.Handler{slog.NewJSONHandler(&secondary, nil)},
	})

	Get().Info("fan out", "key", "value")

	require.Len(t, decodeLines(t, &primary), 1)
	require.Len(t, decodeLines(t, &secondary), 1)
	assert.Equal(t, "value", decodeLines(t, &secondary)[0]["key"])
}

func TestWithDoesNotShareValues(t *testing.T) {
	t.Parallel()

	base := With(context.Background(), "a", 1)
	left := With(base, "b", 2)
	right := With(base, "c", 3)

	assert.Equal(t, []any{"a", 1, "b", 2}, getValues(left))
	assert.Equal(t, []any{"a", 1, "c", 3}, getValues(right))
	assert.Same(t, base, With(base))
}

func TestEnvOptions(t *testing.T) {
	t.Parallel()

	opts, err := Env{JSON: true, Level: "debug", LegacyLevel: "warn", Output: "stderr"}.Options("flows")
	require.NoError(t, err)

	assert.Equal(t, "flows", opts.Subsystem)
	assert.True(t, opts.JSON)
	assert.Equal(t, slog.LevelDebug, opts.MinLevel)
	assert.Equal(t, slog.LevelWarn, opts.LegacyLevel)
	assert.Equal(t, os.Stderr, opts.Output)

	_, err = Env{Level: "loud"}.Options("flows")
	require.ErrorIs(t, err, ErrInvalidLogLevel)

	_, err = Env{Level: "info", LegacyLevel: "info", Output: "syslog"}.Options("flows")
	require.ErrorIs(t, err, ErrInvalidLogOutput)
}

func TestConfigureLogging(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	logger, err := ConfigureLogging("flows", WithOutput(&buf))
	require.NoError(t, err)

	logger.Info("configured")

	assert.Contains(t, buf.String(), "configured")
	assert.Equal(t, "flows", GetSubsystem(context.Background()))
}
