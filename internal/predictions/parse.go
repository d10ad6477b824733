package predictions

import (
	"fmt"
	"math"
	"strconv"

	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

// Parse decodes an upstream body into records keyed by RouteStop, keeping only
// keys present in wanted. The upstream is loose about cardinality: message,
// direction and prediction may each be a single object or an array, and
// minutes/epochTime may be strings or numbers.
func Parse(body []byte, wanted map[RouteStop]struct{}) (map[RouteStop]*Record, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	root, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if root.Type() != fastjson.TypeArray {
		return nil, fmt.Errorf("expected top-level array, got %s", root.Type())
	}
	items, _ := root.Array()

	results := make(map[RouteStop]*Record)
	for i, item := range items {
		if item.Type() != fastjson.TypeObject {
			return nil, fmt.Errorf("item %d: expected object, got %s", i, item.Type())
		}

		routeTitle := stringField(item, "routeTitle")
		stopTitle := stringField(item, "stopTitle")
		key := NewRouteStop(
			firstNonEmpty(stringField(item, "routeTag"), routeTitle),
			firstNonEmpty(stringField(item, "stopTag"), stopTitle),
		)
		if _, ok := wanted[key]; !ok {
			continue
		}

		messages, err := parseMessages(item.Get("message"))
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		directions, err := parseDirections(item.Get("direction"))
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		record, seen := results[key]
		if !seen {
			record = &Record{
				AgencyTitle: stringField(item, "agencyTitle"),
				RouteTitle:  routeTitle,
				StopTitle:   stopTitle,
			}
			results[key] = record
		}
		record.Messages = append(record.Messages, messages...)
		record.Directions = append(record.Directions, directions...)
	}

	return results, nil
}

func parseMessages(v *fastjson.Value) ([]Message, error) {
	var messages []Message
	for _, m := range listOf(v) {
		switch m.Type() {
		case fastjson.TypeString:
			messages = append(messages, Message{Text: scalarString(m)})
		case fastjson.TypeObject:
			messages = append(messages, Message{Text: stringField(m, "text")})
		default:
			return nil, fmt.Errorf("message: unexpected %s", m.Type())
		}
	}
	return messages, nil
}

func parseDirections(v *fastjson.Value) ([]Direction, error) {
	var directions []Direction
	for _, d := range listOf(v) {
		if d.Type() != fastjson.TypeObject {
			return nil, fmt.Errorf("direction: unexpected %s", d.Type())
		}
		direction := Direction{Title: stringField(d, "title")}
		for _, p := range listOf(d.Get("prediction")) {
			if p.Type() != fastjson.TypeObject {
				return nil, fmt.Errorf("prediction: unexpected %s", p.Type())
			}
			epoch, ok, err := int64Field(p, "epochTime")
			if err != nil {
				return nil, fmt.Errorf("prediction epochTime: %w", err)
			}
			if !ok {
				// An arrival without a time cannot be shown.
				continue
			}
			direction.Predictions = append(direction.Predictions, Prediction{
				Minutes:     stringField(p, "minutes"),
				EpochTimeMS: epoch,
			})
		}
		directions = append(directions, direction)
	}
	return directions, nil
}

// listOf normalises a missing value, a single value or an array into a slice.
func listOf(v *fastjson.Value) []*fastjson.Value {
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil
	}
	if v.Type() == fastjson.TypeArray {
		items, _ := v.Array()
		return items
	}
	return []*fastjson.Value{v}
}

func stringField(v *fastjson.Value, key string) string {
	return scalarString(v.Get(key))
}

func scalarString(v *fastjson.Value) string {
	if v == nil {
		return ""
	}
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeNumber, fastjson.TypeTrue, fastjson.TypeFalse:
		return string(v.MarshalTo(nil))
	default:
		return ""
	}
}

// int64Field reports ok=false when key is missing or null. A present value
// that is not an integer in int64 range is an error.
func int64Field(v *fastjson.Value, key string) (int64, bool, error) {
	field := v.Get(key)
	if field == nil || field.Type() == fastjson.TypeNull {
		return 0, false, nil
	}
	switch field.Type() {
	case fastjson.TypeNumber:
		if n, err := field.Int64(); err == nil {
			return n, true, nil
		}
		f, err := field.Float64()
		if err != nil {
			return 0, false, err
		}
		if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, false, fmt.Errorf("%s out of range", field)
		}
		return int64(math.Round(f)), true, nil
	case fastjson.TypeString:
		b, _ := field.StringBytes()
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return 0, false, err
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("unexpected %s", field.Type())
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
