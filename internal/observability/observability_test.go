package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/vsts-npm-auth/internal/observability"
)

func restoreDefault(t *testing.T) {
	t.Helper()
	previous := slog.Default()
	t.Cleanup(func() {
		_ = observability.Shutdown(context.Background())
		slog.SetDefault(previous)
	})
}

func TestInstrumentWriter(t *testing.T) {
	restoreDefault(t)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "")

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, observability.InstrumentWriter(&buf, slog.LevelInfo, "json"))

		slog.Debug("hidden")
		slog.Info("shown", "key", "value")

		out := buf.String()
		assert.Contains(t, out, "shown")
		assert.Contains(t, out, "key")
		assert.Contains(t, out, "value")
		assert.NotContains(t, out, "hidden")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, observability.InstrumentWriter(&buf, slog.LevelDebug, "text"))

		slog.Debug("shown")
		assert.Contains(t, buf.String(), "msg=shown")
	})

	t.Run("unknown format", func(t *testing.T) {
		require.Error(t, observability.InstrumentWriter(&bytes.Buffer{}, slog.LevelInfo, "xml"))
	})
}

func TestInstrumentWriterExportsToCollector(t *testing.T) {
	restoreDefault(t)

	var requests atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/logs" {
			requests.Add(1)
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(collector.Close)

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", collector.URL)
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")

	var buf bytes.Buffer
	require.NoError(t, observability.InstrumentWriter(&buf, slog.LevelInfo, "text"))

	slog.Info("exported")
	require.NoError(t, observability.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "msg=exported", "local output is kept")
	assert.Positive(t, requests.Load())
}

func TestShutdownWithoutInstrument(t *testing.T) {
	require.NoError(t, observability.Shutdown(context.Background()))
}
