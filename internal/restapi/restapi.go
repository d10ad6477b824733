package restapi

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"rosariobus.dev/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter   *RateLimitMiddleware
	staleDetector *StaleDetector
	agencyCache   time.Duration
}

// NewRestAPI creates a new RestAPI instance with a per-client rate limiter.
func NewRestAPI(app *app.Application) *RestAPI {
	return &RestAPI{
		Application:   app,
		rateLimiter:   NewRateLimitMiddleware(app.Config.RateLimit, time.Second, app.Clock),
		staleDetector: NewStaleDetector().WithThreshold(staleThreshold(app.Config.PollInterval)),
		agencyCache:   agencyCacheTTL(app.Config.PollInterval),
	}
}

func (api *RestAPI) limited(ttl time.Duration, h http.HandlerFunc) http.Handler {
	return api.rateLimiter.Handler()(CacheControlMiddleware(ttl, h))
}

// SetRoutes registers every API route on mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", api.healthHandler)

	mux.Handle("GET /api/config", api.limited(configCache, api.configHandler))
	mux.Handle("GET /api/sensors", api.limited(0, api.sensorsHandler))
	mux.Handle("POST /api/sensors", api.limited(0, api.createSensorHandler))
	mux.Handle("GET /api/sensors/{id}", api.limited(0, api.sensorHandler))
	mux.Handle("DELETE /api/sensors/{id}", api.limited(0, api.deleteSensorHandler))
	mux.Handle("GET /api/agencies", api.limited(api.agencyCache, api.agenciesHandler))
	mux.Handle("GET /api/agencies/{agency}/predictions", api.limited(0, api.predictionsHandler))

	if api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Wrap applies the cross-cutting middleware to the whole router.
func (api *RestAPI) Wrap(next http.Handler) http.Handler {
	h := MetricsHandler(api.Metrics)(next)
	h = NewRequestLoggingMiddleware(api.Logger)(h)
	h = RequestIDMiddleware(h)
	return gzhttp.GzipHandler(h)
}

// Shutdown stops the rate limiter's background cleanup.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
