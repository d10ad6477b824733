package restapi

import (
	"net/http"

	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/models"
)

func (api *RestAPI) configHandler(w http.ResponseWriter, r *http.Request) {
	cfg := api.Config.WithDefaults()

	configEntry := models.ConfigModel{
		Id:            "rosariobus",
		Name:          "Rosario bus arrivals",
		Environment:   cfg.Env.String(),
		UpstreamURL:   cfg.BaseURL,
		PollInterval:  cfg.PollInterval.String(),
		Timeout:       cfg.RequestTimeout.String(),
		MaxResults:    cfg.MaxResults,
		DefaultAgency: appconf.DefaultAgency,
	}

	api.sendResponse(w, r, models.NewEntryResponse(configEntry, api.Clock))
}
