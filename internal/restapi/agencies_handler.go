package restapi

import (
	"net/http"

	"rosariobus.dev/internal/models"
)

func (api *RestAPI) agenciesHandler(w http.ResponseWriter, r *http.Request) {
	coordinators := api.Registry.Coordinators()
	list := make([]models.AgencyModel, 0, len(coordinators))
	for _, c := range coordinators {
		snap := c.Snapshot()
		list = append(list, models.AgencyModel{
			Agency:      snap.Agency,
			Attribution: snap.Attribution,
			RouteStops:  snap.RouteStops,
			LastUpdate:  snap.LastUpdate,
			LastError:   snap.LastError,
		})
	}
	api.sendResponse(w, r, models.NewListResponse(list, api.Clock))
}

// predictionsHandler returns the cached record for one stop and route.
func (api *RestAPI) predictionsHandler(w http.ResponseWriter, r *http.Request) {
	stop := r.URL.Query().Get("stop")
	route := r.URL.Query().Get("route")

	problems := map[string][]string{}
	if stop == "" {
		problems["stop"] = []string{"required"}
	}
	if route == "" {
		problems["route"] = []string{"required"}
	}
	if len(problems) > 0 {
		api.validationErrorResponse(w, r, problems)
		return
	}

	c, ok := api.Registry.Get(r.PathValue("agency"))
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	record := c.GetPredictionData(stop, route)
	if record == nil {
		api.sendNotFound(w, r)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(record, api.Clock))
}
