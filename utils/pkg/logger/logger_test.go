package logger

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRewards_Logger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 14, 5, 7, 123_456_789, time.FixedZone("X", 3600))
	require.Equal(t, "2024-03-09T13:05:07.123Z", formatRFC3339Millis(ts))
}

func TestRewards_Logger_DropsEmptyStrings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, true)
	log.Debug("driver: pass completed", "pass_id", "", "intervals", 5)

	out := buf.String()
	require.Contains(t, out, "driver: pass completed")
	require.Contains(t, out, "intervals=5")
	require.NotContains(t, out, "pass_id")
}

func TestRewards_Logger_InfoHidesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, false)
	log.Debug("hidden")
	log.Info("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestRewards_Logger_TimestampsInUTC(t *testing.T) {
	t.Parallel()

	a := replaceAttr(nil, slog.Time(slog.TimeKey, time.Date(2026, 3, 1, 2, 0, 0, 5_000_000, time.FixedZone("X", 2*3600))))
	require.Equal(t, "2026-03-01T00:00:00.005Z", a.Value.String())
}
