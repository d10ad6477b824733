package restapi

import (
	"encoding/json"
	"net/http"

	"rosariobus.dev/internal/models"
)

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	setJSONResponseType(&w)
	if err := encodeJSON(w, response); err != nil {
		api.logError(r, err)
	}
}

// sendStatus writes response with an explicit HTTP status.
func (api *RestAPI) sendStatus(w http.ResponseWriter, r *http.Request, code int, response models.ResponseModel) {
	setJSONResponseType(&w)
	w.WriteHeader(code)
	if err := encodeJSON(w, response); err != nil {
		api.logError(r, err)
	}
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusNotFound, "resource not found")
}

func encodeJSON(w http.ResponseWriter, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	response := models.ResponseModel{
		Code:        code,
		CurrentTime: models.ResponseCurrentTime(api.Clock),
		Text:        message,
		Version:     2,
	}
	api.sendStatus(w, r, code, response)
}
