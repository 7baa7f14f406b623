package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("fetch-metadata", "json", "warn", &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("file", "stats.yaml").Msg("skipped")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "fetch-metadata", entry["service"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "stats.yaml", entry["file"])
	assert.Contains(t, entry, "time")
}

func TestNewLoggerConsoleDefault(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("fetch-benchmarks", "", "", &buf)
	require.NoError(t, err)

	logger.Info().Msg("downloaded")
	assert.Contains(t, buf.String(), "downloaded")
	assert.Contains(t, buf.String(), "fetch-benchmarks")
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	_, err := NewLogger("svc", "xml", "info", nil)
	require.Error(t, err)

	_, err = NewLogger("svc", "json", "loud", nil)
	require.Error(t, err)
}

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "svc", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(context.Background(), "", "")
	require.Error(t, err)
}

func TestTransportPassesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := &http.Client{Transport: Transport(nil)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}
