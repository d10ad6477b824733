package webui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"
	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/coordinator"
	"rosariobus.dev/internal/models"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

var dumper = spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}

type debugData struct {
	Title string
	Pre   string
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := debugTemplate.Execute(w, debugData{
		Title: title,
		Pre:   dumper.Sdump(data),
	})
	if err != nil {
		slog.Error("failed to execute debug template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Application == nil || webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	var data interface{}
	var title string

	switch r.URL.Query().Get("dataType") {
	case "agencies":
		data = webUI.snapshots()
		title = "Coordinators"
	case "sensors":
		data = webUI.entityStates()
		title = "Sensors"
	case "predictions":
		records := make(map[string]interface{})
		for _, snap := range webUI.snapshots() {
			records[snap.Agency] = snap.Records
		}
		data = records
		title = "Cached Predictions"
	default:
		data = map[string]string{
			"error": "Please use one of the following: agencies, sensors, predictions.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}

func (webUI *WebUI) snapshots() []coordinator.Snapshot {
	if webUI.Registry == nil {
		return nil
	}
	coordinators := webUI.Registry.Coordinators()
	out := make([]coordinator.Snapshot, 0, len(coordinators))
	for _, c := range coordinators {
		out = append(out, c.Snapshot())
	}
	return out
}

func (webUI *WebUI) entityStates() []models.EntityState {
	if webUI.Integration == nil {
		return nil
	}
	sensors := webUI.Integration.Sensors()
	out := make([]models.EntityState, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, s.EntityState())
	}
	return out
}
