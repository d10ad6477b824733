package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rosariobus.dev/internal/app"
	"rosariobus.dev/internal/models"
)

func TestSendResponse(t *testing.T) {
	api := createTestApi(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	api.sendResponse(w, r, models.NewOKResponse(map[string]string{"test": "data"}, api.Clock))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var decoded models.ResponseModel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, http.StatusOK, decoded.Code)
	assert.Equal(t, "OK", decoded.Text)
	assert.Equal(t, 2, decoded.Version)
	assert.Equal(t, testNow.UnixMilli(), decoded.CurrentTime)
}

func TestSendNotFound(t *testing.T) {
	api := createTestApi(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	api.sendNotFound(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response models.ResponseModel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, http.StatusNotFound, response.Code)
	assert.Equal(t, "resource not found", response.Text)
	assert.Nil(t, response.Data)
}

func TestSendErrorWithoutClock(t *testing.T) {
	api := &RestAPI{Application: &app.Application{}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	api.sendError(w, r, http.StatusTeapot, "short and stout")

	assert.Equal(t, http.StatusTeapot, w.Code)
	var response models.ResponseModel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "short and stout", response.Text)
	assert.Positive(t, response.CurrentTime)
}

func TestSetJSONResponseType(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("Content-Type", "text/html")
	var wInterface http.ResponseWriter = w

	setJSONResponseType(&wInterface)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}
