package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"rosariobus.dev/internal/app"
	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/clock"
	"rosariobus.dev/internal/coordinator"
	"rosariobus.dev/internal/integration"
	"rosariobus.dev/internal/logging"
	"rosariobus.dev/internal/metrics"
	"rosariobus.dev/internal/predictions"
	"rosariobus.dev/internal/restapi"
	"rosariobus.dev/internal/webui"
)

// BuildApplication wires the logger, metrics, upstream client, registry and
// integration, then loads the configured sensors.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	cfg = cfg.WithDefaults()

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", cfg.BaseURL)
	}

	logger := logging.NewLogger(os.Stdout, cfg.Verbose, cfg.Env == appconf.Production)
	appClock := clock.RealClock{}
	appMetrics := metrics.NewWithLogger(logger)

	client := predictions.NewClient(predictions.ClientConfig{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.RequestTimeout,
		MaxResults: cfg.MaxResults,
		Logger:     logger,
	})

	registry := coordinator.NewRegistry(coordinator.NewFactory(client, coordinator.Options{
		Interval: cfg.PollInterval,
		Logger:   logger,
		Metrics:  appMetrics,
		Clock:    appClock,
	}), appMetrics)

	coreApp := &app.Application{
		Config:      cfg,
		Logger:      logger,
		Clock:       appClock,
		Metrics:     appMetrics,
		Registry:    registry,
		Integration: integration.New(registry, appClock, logger),
	}

	if err := coreApp.Integration.SetupAll(context.Background(), cfg.Sensors); err != nil {
		coreApp.Shutdown()
		return nil, fmt.Errorf("failed to set up sensors: %w", err)
	}
	return coreApp, nil
}

// CreateServer builds the HTTP server and the API whose Shutdown the caller owns.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)
	webUI := &webui.WebUI{Application: coreApp}

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	webUI.SetWebUIRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.Wrap(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv, api
}
