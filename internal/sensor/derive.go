package sensor

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"rosariobus.dev/internal/clock"
	"rosariobus.dev/internal/predictions"
)

// Attribute names exported on every sensor.
const (
	AttrAgency    = "agency"
	AttrRoute     = "route"
	AttrStop      = "stop"
	AttrMessage   = "message"
	AttrDirection = "direction"
	AttrUpcoming  = "upcoming"
	AttrDueIn     = "due_in"
	AttrDueAt     = "due_at"
	AttrLaterBus  = "later_bus"
)

const (
	NoUpcoming  = "No upcoming predictions"
	NoLaterBus  = "None"
	dueAtLayout = "15:04"
	messageSep  = " -- "
	listSep     = ", "
)

// Derive computes the native value and attributes for one record. A nil
// record keeps prev minus the prediction-dependent attributes.
func Derive(prev map[string]string, rec *predictions.Record) (*time.Time, map[string]string) {
	if rec == nil {
		attrs := make(map[string]string, len(prev))
		for k, v := range prev {
			attrs[k] = v
		}
		delete(attrs, AttrUpcoming)
		delete(attrs, AttrDueIn)
		delete(attrs, AttrDueAt)
		delete(attrs, AttrLaterBus)
		return nil, attrs
	}

	attrs := map[string]string{
		AttrAgency:    rec.AgencyTitle,
		AttrRoute:     rec.RouteTitle,
		AttrStop:      rec.StopTitle,
		AttrMessage:   joinMessages(rec.Messages),
		AttrDirection: joinDirections(rec.Directions),
	}

	flat := rec.Flatten()
	if len(flat) == 0 {
		attrs[AttrUpcoming] = NoUpcoming
		attrs[AttrLaterBus] = NoLaterBus
		return nil, attrs
	}

	first := flat[0].Prediction
	value := first.Time()

	attrs[AttrUpcoming] = strings.Join(sortedMinutes(flat), listSep)
	attrs[AttrDueIn] = first.Minutes
	attrs[AttrDueAt] = value.In(clock.Rosario()).Format(dueAtLayout)
	attrs[AttrLaterBus] = NoLaterBus
	if len(flat) > 1 {
		attrs[AttrLaterBus] = rec.RouteTitle + " in " + flat[1].Prediction.Minutes
	}
	return &value, attrs
}

func joinMessages(msgs []predictions.Message) string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, messageSep)
}

func joinDirections(dirs []predictions.Direction) string {
	titles := make([]string, 0, len(dirs))
	for _, d := range dirs {
		titles = append(titles, d.Title)
	}
	return strings.Join(titles, listSep)
}

// sortedMinutes orders minutes numerically, keeping source order on ties.
// Values that are not numbers go last.
func sortedMinutes(flat []predictions.DirectionPrediction) []string {
	type entry struct {
		text    string
		value   float64
		numeric bool
	}
	entries := make([]entry, 0, len(flat))
	for _, dp := range flat {
		v, err := strconv.ParseFloat(strings.TrimSpace(dp.Prediction.Minutes), 64)
		entries = append(entries, entry{text: dp.Prediction.Minutes, value: v, numeric: err == nil})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.numeric != b.numeric {
			return a.numeric
		}
		if !a.numeric {
			return false
		}
		return a.value < b.value
	})

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.text)
	}
	return out
}
