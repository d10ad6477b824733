package webui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rosariobus.dev/internal/app"
	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/coordinator"
	"rosariobus.dev/internal/integration"
	"rosariobus.dev/internal/predictions"
)

type staticFetcher struct{}

func (staticFetcher) Fetch(_ context.Context, _ string, keys []predictions.RouteStop) (map[predictions.RouteStop]*predictions.Record, error) {
	out := make(map[predictions.RouteStop]*predictions.Record, len(keys))
	for _, k := range keys {
		out[k] = &predictions.Record{
			RouteTitle: k.RouteTag,
			StopTitle:  k.StopTag,
			Directions: []predictions.Direction{{
				Title:       "Terminal Norte",
				Predictions: []predictions.Prediction{{Minutes: "6", EpochTimeMS: 1700000000000}},
			}},
		}
	}
	return out, nil
}

func newDevWebUI(t *testing.T) *WebUI {
	t.Helper()
	registry := coordinator.NewRegistry(coordinator.NewFactory(staticFetcher{}, coordinator.Options{Interval: time.Hour}), nil)
	integ := integration.New(registry, nil, nil)
	t.Cleanup(registry.Shutdown)

	_, err := integ.SetupEntry(context.Background(), appconf.SensorConfig{Route: "101", Stop: "4521", Name: "Parada Oroño"})
	require.NoError(t, err)

	return &WebUI{Application: &app.Application{
		Config:      appconf.Config{Env: appconf.Development},
		Registry:    registry,
		Integration: integ,
	}}
}

func TestDebugIndexHandler_ProductionReturns404(t *testing.T) {
	webUI := &WebUI{
		Application: &app.Application{
			Config: appconf.Config{Env: appconf.Production},
		},
	}

	req := httptest.NewRequest("GET", "/debug?dataType=agencies", nil)
	rr := httptest.NewRecorder()

	webUI.debugIndexHandler(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code, "Should return 404 in Production")
}

func TestDebugIndexHandler_DataTypes(t *testing.T) {
	webUI := newDevWebUI(t)
	mux := http.NewServeMux()
	webUI.SetWebUIRoutes(mux)

	tests := []struct {
		dataType string
		title    string
		contains string
	}{
		{"agencies", "Coordinators", "101|4521"},
		{"sensors", "Sensors", "sensor.parada_oroño"},
		{"predictions", "Cached Predictions", "Terminal Norte"},
		{"", "Choose a data type", "agencies, sensors, predictions"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/debug?dataType="+tt.dataType, nil)
			rr := httptest.NewRecorder()

			mux.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
			body := rr.Body.String()
			assert.Contains(t, body, "<h1>"+tt.title+"</h1>")
			assert.Contains(t, body, tt.contains)
		})
	}
}
