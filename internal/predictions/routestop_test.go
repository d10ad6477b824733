package predictions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteStopString(t *testing.T) {
	assert.Equal(t, "101|4521", NewRouteStop("101", "4521").String())
	assert.Equal(t, "K|", NewRouteStop("K", "").String())
}

func TestRouteStopFromMap_RoundTrip(t *testing.T) {
	tests := []RouteStop{
		NewRouteStop("101", "4521"),
		NewRouteStop("Linea K", "00012"),
		NewRouteStop("q", "Q"),
	}

	for _, rs := range tests {
		t.Run(rs.String(), func(t *testing.T) {
			got, err := RouteStopFromMap(map[string]string{
				"route_tag": rs.RouteTag,
				"stop_tag":  rs.StopTag,
			})
			require.NoError(t, err)
			assert.Equal(t, rs, got)
		})
	}
}

func TestRouteStopFromMap_MissingKeys(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]string
		missing string
	}{
		{name: "no route", input: map[string]string{"stop_tag": "1"}, missing: "route_tag"},
		{name: "no stop", input: map[string]string{"route_tag": "1"}, missing: "stop_tag"},
		{name: "empty", input: map[string]string{}, missing: "route_tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RouteStopFromMap(tt.input)
			require.ErrorIs(t, err, ErrMalformedInput)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestRouteStopEquality(t *testing.T) {
	assert.Equal(t, NewRouteStop("101", "1"), NewRouteStop("101", "1"))
	assert.NotEqual(t, NewRouteStop("k", "1"), NewRouteStop("K", "1"))
	assert.NotEqual(t, NewRouteStop("1", "2"), NewRouteStop("2", "1"))

	set := map[RouteStop]int{NewRouteStop("101", "1"): 1}
	set[NewRouteStop("101", "1")]++
	assert.Len(t, set, 1)
	assert.Equal(t, 2, set[NewRouteStop("101", "1")])
}

func TestRouteStopValidate(t *testing.T) {
	assert.NoError(t, NewRouteStop("101", "4521").Validate())
	assert.ErrorIs(t, NewRouteStop("", "4521").Validate(), ErrMalformedInput)
	assert.ErrorIs(t, NewRouteStop("101", "").Validate(), ErrMalformedInput)
}
