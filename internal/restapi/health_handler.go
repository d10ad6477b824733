package restapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"rosariobus.dev/internal/clock"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status   string   `json:"status"`
	Detail   string   `json:"detail,omitempty"`
	Agencies []string `json:"agencies,omitempty"`
}

// healthHandler reports "ok" while every coordinator's latest refresh
// succeeded and is recent, "degraded" (still 200) otherwise, and 503 until
// the application is wired.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if api.Application == nil || api.Registry == nil || api.Integration == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "starting",
			Detail: "application not initialized",
		})
		return
	}

	c := api.Clock
	if c == nil {
		c = clock.RealClock{}
	}
	now := c.Now()

	var failing, stale []string
	for _, coord := range api.Registry.Coordinators() {
		switch {
		case coord.LastError() != nil:
			failing = append(failing, coord.Agency())
		case api.staleDetector != nil && api.staleDetector.Check(coord.LastUpdate(), now):
			stale = append(stale, coord.Agency())
		}
	}

	if len(failing) == 0 && len(stale) == 0 {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
		return
	}

	var detail []string
	if len(failing) > 0 {
		detail = append(detail, "last refresh failed for "+strings.Join(failing, ", "))
	}
	if len(stale) > 0 {
		detail = append(detail, "stale predictions for "+strings.Join(stale, ", "))
	}
	agencies := append(failing, stale...)
	sort.Strings(agencies)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:   "degraded",
		Detail:   strings.Join(detail, "; "),
		Agencies: agencies,
	})
}
