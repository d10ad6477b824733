package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/integration"
	"rosariobus.dev/internal/logging"
	"rosariobus.dev/internal/models"
	"rosariobus.dev/internal/predictions"
)

const maxRequestBody = 1 << 20

var validate = validator.New()

type createSensorRequest struct {
	Agency string `json:"agency" validate:"omitempty,max=32,printascii"`
	Route  string `json:"route" validate:"required,max=32"`
	Stop   string `json:"stop" validate:"required,max=32"`
	Name   string `json:"name" validate:"max=100"`
}

func (api *RestAPI) sensorsHandler(w http.ResponseWriter, r *http.Request) {
	sensors := api.Integration.Sensors()
	list := make([]models.EntityState, 0, len(sensors))
	for _, s := range sensors {
		list = append(list, s.EntityState())
	}
	api.sendResponse(w, r, models.NewListResponse(list, api.Clock))
}

func (api *RestAPI) sensorHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := api.Integration.Sensor(r.PathValue("id"))
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(s.EntityState(), api.Clock))
}

func (api *RestAPI) createSensorHandler(w http.ResponseWriter, r *http.Request) {
	var req createSensorRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		api.badRequestResponse(w, r, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			api.validationErrorResponse(w, r, fieldErrors(verrs))
			return
		}
		api.badRequestResponse(w, r, err)
		return
	}

	// The first refresh runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	s, err := api.Integration.SetupEntry(ctx, appconf.SensorConfig{
		Agency: req.Agency,
		Route:  req.Route,
		Stop:   req.Stop,
		Name:   req.Name,
	})
	switch {
	case errors.Is(err, integration.ErrDuplicateEntry):
		api.conflictResponse(w, r, err)
		return
	case errors.Is(err, predictions.ErrMalformedInput):
		api.badRequestResponse(w, r, err)
		return
	case err != nil:
		api.serverErrorResponse(w, r, err)
		return
	}

	logging.LogOperation(logging.FromContextOr(r.Context(), api.Logger), "sensor_created",
		slog.String("unique_id", s.UniqueID()),
		slog.String("agency", s.Agency()))

	w.Header().Set("Location", "/api/sensors/"+s.UniqueID())
	response := models.NewResponse(http.StatusCreated, models.EntryData{Entry: s.EntityState()}, "Created", api.Clock)
	api.sendStatus(w, r, http.StatusCreated, response)
}

func (api *RestAPI) deleteSensorHandler(w http.ResponseWriter, r *http.Request) {
	err := api.Integration.UnloadEntry(r.PathValue("id"))
	if errors.Is(err, integration.ErrEntryNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func fieldErrors(verrs validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out[field] = append(out[field], msg)
	}
	return out
}
