// Package integration is the host-side adapter: it turns configured entries
// into registry subscriptions and sensors, and reverses that on unload.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/clock"
	"rosariobus.dev/internal/coordinator"
	"rosariobus.dev/internal/logging"
	"rosariobus.dev/internal/predictions"
	"rosariobus.dev/internal/sensor"
)

var (
	ErrDuplicateEntry = errors.New("entry already configured")
	ErrEntryNotFound  = errors.New("entry not found")
)

type entry struct {
	cfg            appconf.SensorConfig
	sensor         *sensor.Sensor
	removeListener func()
}

type Integration struct {
	registry *coordinator.Registry
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func New(registry *coordinator.Registry, c clock.Clock, logger *slog.Logger) *Integration {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = clock.RealClock{}
	}
	return &Integration{
		registry: registry,
		clock:    c,
		logger:   logger.With(slog.String("component", "integration")),
		entries:  make(map[string]*entry),
	}
}

// SetupEntry subscribes the entry's (stop, route), waits for the first
// refresh and returns the wired sensor.
func (i *Integration) SetupEntry(ctx context.Context, cfg appconf.SensorConfig) (*sensor.Sensor, error) {
	cfg = cfg.WithDefaults()
	if err := predictions.NewRouteStop(cfg.Route, cfg.Stop).Validate(); err != nil {
		return nil, err
	}
	id := sensor.UniqueID(cfg.Agency, cfg.Stop, cfg.Route)

	i.mu.Lock()
	if _, ok := i.entries[id]; ok {
		i.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, id)
	}
	// Reserve the id so a concurrent setup of the same entry fails fast.
	i.entries[id] = nil
	i.mu.Unlock()

	c, err := i.registry.Subscribe(ctx, cfg.Agency, cfg.Stop, cfg.Route)
	if err != nil {
		i.mu.Lock()
		delete(i.entries, id)
		i.mu.Unlock()
		return nil, fmt.Errorf("subscribing %s: %w", id, err)
	}

	s := sensor.New(sensor.Config{
		Agency: cfg.Agency,
		Route:  cfg.Route,
		Stop:   cfg.Stop,
		Name:   cfg.Name,
	}, c, i.clock)
	remove := c.AddListener(s.Update)
	s.Update()

	i.mu.Lock()
	i.entries[id] = &entry{cfg: cfg, sensor: s, removeListener: remove}
	i.mu.Unlock()

	logging.LogOperation(i.logger, "entry_setup",
		slog.String("unique_id", id),
		slog.String("entity_id", s.EntityID()))
	return s, nil
}

// UnloadEntry removes the sensor and its subscription.
func (i *Integration) UnloadEntry(id string) error {
	i.mu.Lock()
	e, ok := i.entries[id]
	if !ok || e == nil {
		i.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	delete(i.entries, id)
	i.mu.Unlock()

	e.removeListener()
	i.registry.Unsubscribe(e.cfg.Agency, e.cfg.Stop, e.cfg.Route)

	logging.LogOperation(i.logger, "entry_unloaded", slog.String("unique_id", id))
	return nil
}

func (i *Integration) Sensor(id string) (*sensor.Sensor, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	e, ok := i.entries[id]
	if !ok || e == nil {
		return nil, false
	}
	return e.sensor, true
}

// Sensors returns every loaded sensor ordered by unique id.
func (i *Integration) Sensors() []*sensor.Sensor {
	i.mu.Lock()
	ids := make([]string, 0, len(i.entries))
	for id, e := range i.entries {
		if e != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*sensor.Sensor, 0, len(ids))
	for _, id := range ids {
		out = append(out, i.entries[id].sensor)
	}
	i.mu.Unlock()
	return out
}

// SetupAll loads every configured entry, stopping at the first failure.
func (i *Integration) SetupAll(ctx context.Context, entries []appconf.SensorConfig) error {
	for _, cfg := range entries {
		if _, err := i.SetupEntry(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown unloads every entry.
func (i *Integration) Shutdown() {
	for _, s := range i.Sensors() {
		if err := i.UnloadEntry(s.UniqueID()); err != nil {
			logging.LogError(i.logger, "Error unloading entry", err)
		}
	}
}
