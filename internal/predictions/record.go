package predictions

import "time"

// Record is every prediction the upstream returned for one RouteStop.
type Record struct {
	AgencyTitle string      `json:"agencyTitle"`
	RouteTitle  string      `json:"routeTitle"`
	StopTitle   string      `json:"stopTitle"`
	Messages    []Message   `json:"messages"`
	Directions  []Direction `json:"directions"`
}

type Message struct {
	Text string `json:"text"`
}

type Direction struct {
	Title       string       `json:"title"`
	Predictions []Prediction `json:"predictions"`
}

// Prediction is one forecast arrival. Minutes is kept as the upstream sent it.
type Prediction struct {
	Minutes     string `json:"minutes"`
	EpochTimeMS int64  `json:"epochTime"`
}

// Time returns the absolute arrival time.
func (p Prediction) Time() time.Time {
	return time.UnixMilli(p.EpochTimeMS).UTC()
}

// DirectionPrediction pairs a prediction with the direction it belongs to.
type DirectionPrediction struct {
	Direction  Direction
	Prediction Prediction
}

// Flatten lists every (direction, prediction) pair in source order.
func (r *Record) Flatten() []DirectionPrediction {
	if r == nil {
		return nil
	}
	var out []DirectionPrediction
	for _, d := range r.Directions {
		for _, p := range d.Predictions {
			out = append(out, DirectionPrediction{Direction: d, Prediction: p})
		}
	}
	return out
}
