package predictions

import (
	"errors"
	"fmt"
)

// ErrMalformedInput reports a subscription key that cannot be built.
var ErrMalformedInput = errors.New("malformed input")

// RouteStop identifies one (route, stop) subscription. Both tags are opaque
// labels; a numeric stop tag is never treated as a number.
type RouteStop struct {
	RouteTag string
	StopTag  string
}

func NewRouteStop(routeTag, stopTag string) RouteStop {
	return RouteStop{RouteTag: routeTag, StopTag: stopTag}
}

// RouteStopFromMap builds a RouteStop from the legacy {"route_tag", "stop_tag"} mapping.
func RouteStopFromMap(m map[string]string) (RouteStop, error) {
	route, ok := m["route_tag"]
	if !ok {
		return RouteStop{}, fmt.Errorf("%w: missing key %q", ErrMalformedInput, "route_tag")
	}
	stop, ok := m["stop_tag"]
	if !ok {
		return RouteStop{}, fmt.Errorf("%w: missing key %q", ErrMalformedInput, "stop_tag")
	}
	return NewRouteStop(route, stop), nil
}

// String returns the canonical "<route>|<stop>" form.
func (rs RouteStop) String() string {
	return rs.RouteTag + "|" + rs.StopTag
}

// Validate rejects keys that cannot be subscribed.
func (rs RouteStop) Validate() error {
	if rs.RouteTag == "" {
		return fmt.Errorf("%w: empty route tag", ErrMalformedInput)
	}
	if rs.StopTag == "" {
		return fmt.Errorf("%w: empty stop tag", ErrMalformedInput)
	}
	return nil
}
