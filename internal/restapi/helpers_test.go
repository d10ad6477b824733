package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"rosariobus.dev/internal/app"
	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/clock"
	"rosariobus.dev/internal/coordinator"
	"rosariobus.dev/internal/integration"
	"rosariobus.dev/internal/metrics"
	"rosariobus.dev/internal/models"
	"rosariobus.dev/internal/predictions"
)

var testNow = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

type stubFetcher struct {
	mu      sync.Mutex
	records map[predictions.RouteStop]*predictions.Record
	err     error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string, keys []predictions.RouteStop) (map[predictions.RouteStop]*predictions.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[predictions.RouteStop]*predictions.Record)
	for _, k := range keys {
		if r, ok := f.records[k]; ok {
			out[k] = r
		}
	}
	return out, nil
}

func (f *stubFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func sampleRecord() *predictions.Record {
	return &predictions.Record{
		AgencyTitle: "MOVI",
		RouteTitle:  "101",
		StopTitle:   "4521",
		Directions: []predictions.Direction{{
			Title: "Centro",
			Predictions: []predictions.Prediction{
				{Minutes: "7", EpochTimeMS: testNow.Add(7 * time.Minute).UnixMilli()},
				{Minutes: "3", EpochTimeMS: testNow.Add(3 * time.Minute).UnixMilli()},
			},
		}},
	}
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{records: map[predictions.RouteStop]*predictions.Record{
		predictions.NewRouteStop("101", "4521"): sampleRecord(),
	}}
}

func createTestApiWith(t *testing.T, f coordinator.Fetcher, cfg appconf.Config) (*RestAPI, *clock.MockClock) {
	t.Helper()

	mockClock := clock.NewMockClock(testNow)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWithLogger(logger)
	registry := coordinator.NewRegistry(coordinator.NewFactory(f, coordinator.Options{
		Interval: time.Hour,
		Logger:   logger,
		Metrics:  m,
		Clock:    mockClock,
	}), m)

	application := &app.Application{
		Config:      cfg,
		Logger:      logger,
		Clock:       mockClock,
		Metrics:     m,
		Registry:    registry,
		Integration: integration.New(registry, mockClock, logger),
	}
	api := NewRestAPI(application)
	t.Cleanup(func() {
		api.Shutdown()
		application.Shutdown()
	})
	return api, mockClock
}

func createTestApi(t *testing.T) *RestAPI {
	api, _ := createTestApiWith(t, newStubFetcher(), appconf.Config{Env: appconf.Test, RateLimit: 100})
	return api
}

func newTestServer(t *testing.T, api *RestAPI) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	server := httptest.NewServer(api.Wrap(mux))
	t.Cleanup(server.Close)
	return server
}

// serveAndRetrieveEndpoint performs one request and decodes the envelope
// when the response has a body.
func serveAndRetrieveEndpoint(t *testing.T, server *httptest.Server, method, path string, body interface{}) (*http.Response, models.ResponseModel) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var model models.ResponseModel
	if len(bytes.TrimSpace(raw)) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &model), "body: %s", raw)
	}
	return resp, model
}

func entryOf(t *testing.T, model models.ResponseModel) map[string]interface{} {
	t.Helper()
	data, ok := model.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", model.Data)
	entry, ok := data["entry"].(map[string]interface{})
	require.True(t, ok, "entry is %T", data["entry"])
	return entry
}

func listOf(t *testing.T, model models.ResponseModel) []interface{} {
	t.Helper()
	data, ok := model.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", model.Data)
	list, ok := data["list"].([]interface{})
	require.True(t, ok, "list is %T", data["list"])
	return list
}

// collectIDs extracts the string at key from every object in list.
func collectIDs(t *testing.T, list []interface{}, key string) []string {
	t.Helper()
	ids := make([]string, 0, len(list))
	for i, item := range list {
		object, ok := item.(map[string]interface{})
		require.True(t, ok, "item %d is not an object", i)
		id, ok := object[key].(string)
		require.True(t, ok, "item %d key %q is not a string", i, key)
		ids = append(ids, id)
	}
	return ids
}

func testConfig() appconf.Config {
	return appconf.Config{Env: appconf.Test, RateLimit: 100}
}

func sensorConfig(route, stop string) appconf.SensorConfig {
	return appconf.SensorConfig{Route: route, Stop: stop}
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// newTestHandler is the full middleware chain over the real routes, for tests
// that serve requests synchronously through a recorder.
func newTestHandler(api *RestAPI) http.Handler {
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	return api.Wrap(mux)
}

// captureLogs points the API logger at a JSON buffer. Call it before building
// the handler.
func captureLogs(api *RestAPI) *bytes.Buffer {
	buf := &bytes.Buffer{}
	api.Logger = slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return buf
}

// findLog returns the first JSON log line whose msg is msg and whose fields
// include every key/value in match.
func findLog(t *testing.T, buf *bytes.Buffer, msg string, match map[string]interface{}) map[string]interface{} {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "log line: %s", line)
		if entry["msg"] != msg {
			continue
		}
		matched := true
		for k, v := range match {
			if entry[k] != v {
				matched = false
				break
			}
		}
		if matched {
			return entry
		}
	}
	require.Failf(t, "log line not found", "msg %q with %v in:\n%s", msg, match, buf.String())
	return nil
}
