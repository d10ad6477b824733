package restapi

import (
	"net/http"
	"strconv"
	"time"

	"rosariobus.dev/internal/coordinator"
)

const noStore = "no-cache, no-store, must-revalidate"

const (
	maxAgencyCache = 30 * time.Second
	configCache    = 5 * time.Minute
)

// agencyCacheTTL keeps the agency list from being cached across more than
// half a polling cycle.
func agencyCacheTTL(pollInterval time.Duration) time.Duration {
	if pollInterval <= 0 {
		pollInterval = coordinator.DefaultInterval
	}
	return min(maxAgencyCache, pollInterval/2)
}

func cacheControlValue(ttl time.Duration) string {
	if ttl < time.Second {
		return noStore
	}
	return "public, max-age=" + strconv.Itoa(int(ttl/time.Second))
}

// CacheControlMiddleware marks successful GET responses cacheable for ttl.
// Writes, errors and a ttl under a second get no-store.
func CacheControlMiddleware(ttl time.Duration, next http.Handler) http.Handler {
	success := cacheControlValue(ttl)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerValue := success
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			headerValue = noStore
		}
		next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, headerValue: headerValue}, r)
	})
}

type cacheControlWriter struct {
	http.ResponseWriter
	headerValue   string
	headerWritten bool
}

func (w *cacheControlWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.headerWritten = true
		value := noStore
		if code >= 200 && code < 300 {
			value = w.headerValue
		}
		w.ResponseWriter.Header().Set("Cache-Control", value)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
