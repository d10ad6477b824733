package app

import (
	"log/slog"

	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/clock"
	"rosariobus.dev/internal/coordinator"
	"rosariobus.dev/internal/integration"
	"rosariobus.dev/internal/metrics"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config      appconf.Config
	Logger      *slog.Logger
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	Registry    *coordinator.Registry
	Integration *integration.Integration
}

// Shutdown unloads every sensor and stops the remaining coordinators.
func (app *Application) Shutdown() {
	if app.Integration != nil {
		app.Integration.Shutdown()
	}
	if app.Registry != nil {
		app.Registry.Shutdown()
	}
}
