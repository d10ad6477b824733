package restapi

import (
	"fmt"
	"log/slog"
	"net/http"

	"rosariobus.dev/internal/logging"
	"rosariobus.dev/internal/models"
)

// logError uses the request-scoped logger, which already carries request_id.
func (api *RestAPI) logError(r *http.Request, err error) {
	logger := logging.FromContextOr(r.Context(), api.Logger)
	logging.LogError(logger, "request failed", err,
		slog.String("method", r.Method),
		slog.String("uri", r.URL.RequestURI()))
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.logError(r, err)
	api.sendError(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}

func (api *RestAPI) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.sendError(w, r, http.StatusBadRequest, err.Error())
}

func (api *RestAPI) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.sendError(w, r, http.StatusConflict, err.Error())
}

// validationErrorResponse reports per-field problems under data.fieldErrors.
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	response := models.NewResponse(http.StatusBadRequest,
		map[string]interface{}{"fieldErrors": fieldErrors},
		fmt.Sprintf("validation failed for %d field(s)", len(fieldErrors)),
		api.Clock)
	api.sendStatus(w, r, http.StatusBadRequest, response)
}
