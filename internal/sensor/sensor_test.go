package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rosariobus.dev/internal/clock"
	"rosariobus.dev/internal/predictions"
)

type fakeSource struct {
	record *predictions.Record
	err    error
}

func (f *fakeSource) GetPredictionData(stop, route string) *predictions.Record { return f.record }
func (f *fakeSource) LastError() error                                         { return f.err }
func (f *fakeSource) Attribution() string                                      { return "Data provided by test" }

func northRecord() *predictions.Record {
	return &predictions.Record{
		AgencyTitle: "MOVI",
		RouteTitle:  "101",
		StopTitle:   "4521",
		Messages:    []predictions.Message{{Text: "Desvio"}, {Text: "Obras"}},
		Directions: []predictions.Direction{{
			Title: "North",
			Predictions: []predictions.Prediction{
				{Minutes: "5", EpochTimeMS: 1000000},
				{Minutes: "2", EpochTimeMS: 900000},
			},
		}},
	}
}

func TestDerive_ValueTracksSourceOrderUpcomingIsSorted(t *testing.T) {
	value, attrs := Derive(nil, northRecord())

	require.NotNil(t, value)
	assert.Equal(t, time.UnixMilli(1000000).UTC(), *value)
	assert.NotEqual(t, time.UnixMilli(900000).UTC(), *value)
	assert.Equal(t, "2, 5", attrs[AttrUpcoming])
	assert.Equal(t, "5", attrs[AttrDueIn])
	assert.Equal(t, "101 in 2", attrs[AttrLaterBus])
	assert.Equal(t, "Desvio -- Obras", attrs[AttrMessage])
	assert.Equal(t, "North", attrs[AttrDirection])
	assert.Equal(t, "MOVI", attrs[AttrAgency])
	assert.Equal(t, "101", attrs[AttrRoute])
	assert.Equal(t, "4521", attrs[AttrStop])
}

func TestDerive_DueAtInRosarioTime(t *testing.T) {
	at := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	rec := &predictions.Record{Directions: []predictions.Direction{{
		Title:       "Sur",
		Predictions: []predictions.Prediction{{Minutes: "3", EpochTimeMS: at.UnixMilli()}},
	}}}

	_, attrs := Derive(nil, rec)
	assert.Equal(t, "12:30", attrs[AttrDueAt])
	assert.Equal(t, NoLaterBus, attrs[AttrLaterBus])
}

func TestDerive_EmptyDirections(t *testing.T) {
	value, attrs := Derive(nil, &predictions.Record{RouteTitle: "101"})

	assert.Nil(t, value)
	assert.Equal(t, NoUpcoming, attrs[AttrUpcoming])
	assert.Equal(t, "", attrs[AttrMessage])
	assert.Equal(t, "", attrs[AttrDirection])
	assert.NotContains(t, attrs, AttrDueIn)
}

func TestDerive_NilRecordClearsUpcoming(t *testing.T) {
	_, prev := Derive(nil, northRecord())

	value, attrs := Derive(prev, nil)

	assert.Nil(t, value)
	assert.NotContains(t, attrs, AttrUpcoming)
	assert.NotContains(t, attrs, AttrDueIn)
	assert.NotContains(t, attrs, AttrDueAt)
	assert.Equal(t, "North", attrs[AttrDirection], "other attributes keep their previous values")
	assert.Contains(t, prev, AttrUpcoming, "previous map is not mutated")
}

func TestDerive_StableNumericSort(t *testing.T) {
	rec := &predictions.Record{Directions: []predictions.Direction{
		{Title: "A", Predictions: []predictions.Prediction{{Minutes: "10"}, {Minutes: "arribando"}}},
		{Title: "B", Predictions: []predictions.Prediction{{Minutes: "3"}, {Minutes: "03"}, {Minutes: "9"}}},
	}}

	_, attrs := Derive(nil, rec)
	assert.Equal(t, "3, 03, 9, 10, arribando", attrs[AttrUpcoming])
	assert.Equal(t, "A, B", attrs[AttrDirection])
}

func TestSensor_States(t *testing.T) {
	src := &fakeSource{}
	c := clock.NewMockClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s := New(Config{Agency: "MOVI", Route: "101", Stop: "4521", Name: "Bus 101"}, src, c)

	assert.Equal(t, StateUnavailable, s.State(), "never updated")

	s.Update()
	assert.Equal(t, StateUnknown, s.State())
	assert.True(t, s.Available())

	src.record = northRecord()
	s.Update()
	assert.Equal(t, time.UnixMilli(1000000).UTC().Format(time.RFC3339), s.State())

	src.err = errors.New("boom")
	s.Update()
	assert.Equal(t, StateUnavailable, s.State())
	assert.Nil(t, s.Value())
	assert.NotContains(t, s.Attributes(), AttrUpcoming)
}

func TestSensor_EntityState(t *testing.T) {
	src := &fakeSource{record: northRecord()}
	c := clock.NewMockClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s := New(Config{Agency: "MOVI", Route: "101", Stop: "4521", Name: "Bus 101 (Centro)"}, src, c)
	s.Update()

	state := s.EntityState()
	assert.Equal(t, "sensor.bus_101_centro", state.EntityID)
	assert.Equal(t, "MOVI_4521_101", state.UniqueID)
	assert.Equal(t, "2026-01-02T03:04:05Z", state.LastUpdated)
	assert.Equal(t, Icon, state.Attributes["icon"])
	assert.Equal(t, DeviceClass, state.Attributes["device_class"])
	assert.Equal(t, "Bus 101 (Centro)", state.Attributes["friendly_name"])
	assert.Equal(t, "Data provided by test", state.Attributes["attribution"])
	assert.Equal(t, "2, 5", state.Attributes[AttrUpcoming])
}

func TestSensor_DefaultName(t *testing.T) {
	s := New(Config{Agency: "MOVI", Route: "101", Stop: "4521"}, &fakeSource{}, nil)
	assert.Equal(t, "Next Bus 101 4521", s.Name())
	assert.Equal(t, "sensor.next_bus_101_4521", s.EntityID())
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "parada_oroño", Slug("  Parada Oroño!! "))
	assert.Equal(t, "unnamed", Slug("!!"))
}
