// Package sensor turns a coordinator's cached predictions for one route/stop
// into the state and attributes a home-automation host displays.
package sensor

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"rosariobus.dev/internal/clock"
	"rosariobus.dev/internal/models"
	"rosariobus.dev/internal/predictions"
)

const (
	Icon        = "mdi:bus"
	DeviceClass = "timestamp"

	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// Source is the part of a coordinator a sensor reads from.
type Source interface {
	GetPredictionData(stop, route string) *predictions.Record
	LastError() error
	Attribution() string
}

type Config struct {
	Agency string
	Route  string
	Stop   string
	Name   string
}

type Sensor struct {
	agency string
	route  string
	stop   string
	name   string
	source Source
	clock  clock.Clock

	mu          sync.RWMutex
	value       *time.Time
	attrs       map[string]string
	available   bool
	lastUpdated time.Time
}

func New(cfg Config, source Source, c clock.Clock) *Sensor {
	if c == nil {
		c = clock.RealClock{}
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("Next Bus %s %s", cfg.Route, cfg.Stop)
	}
	return &Sensor{
		agency: cfg.Agency,
		route:  cfg.Route,
		stop:   cfg.Stop,
		name:   name,
		source: source,
		clock:  c,
		attrs:  map[string]string{},
	}
}

// UniqueID builds the id an entry is registered under.
func UniqueID(agency, stop, route string) string {
	return agency + "_" + stop + "_" + route
}

func (s *Sensor) UniqueID() string { return UniqueID(s.agency, s.stop, s.route) }
func (s *Sensor) EntityID() string { return "sensor." + Slug(s.name) }
func (s *Sensor) Name() string     { return s.name }
func (s *Sensor) Agency() string   { return s.agency }
func (s *Sensor) Route() string    { return s.route }
func (s *Sensor) Stop() string     { return s.stop }

// Update re-derives the sensor from its source. It is registered as a
// coordinator listener.
func (s *Sensor) Update() {
	rec := s.source.GetPredictionData(s.stop, s.route)
	failed := s.source.LastError() != nil
	if failed {
		rec = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.attrs = Derive(s.attrs, rec)
	s.available = !failed
	s.lastUpdated = s.clock.Now()
}

// Value is the next arrival time, nil when there is none.
func (s *Sensor) Value() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.value == nil {
		return nil
	}
	v := *s.value
	return &v
}

func (s *Sensor) Attributes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

func (s *Sensor) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

func (s *Sensor) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case !s.available:
		return StateUnavailable
	case s.value == nil:
		return StateUnknown
	default:
		return s.value.Format(time.RFC3339)
	}
}

// EntityState exports the sensor in the host's entity shape.
func (s *Sensor) EntityState() models.EntityState {
	state := s.State()

	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs := make(map[string]interface{}, len(s.attrs)+4)
	for k, v := range s.attrs {
		attrs[k] = v
	}
	attrs["friendly_name"] = s.name
	attrs["device_class"] = DeviceClass
	attrs["icon"] = Icon
	attrs["attribution"] = s.source.Attribution()

	lastUpdated := ""
	if !s.lastUpdated.IsZero() {
		lastUpdated = s.lastUpdated.UTC().Format(time.RFC3339)
	}

	return models.EntityState{
		EntityID:    "sensor." + Slug(s.name),
		UniqueID:    UniqueID(s.agency, s.stop, s.route),
		State:       state,
		Attributes:  attrs,
		LastUpdated: lastUpdated,
	}
}

// Slug lowercases name and collapses every run of other characters to "_".
func Slug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
