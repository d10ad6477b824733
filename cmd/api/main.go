package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rosariobus.dev/internal/app"
	"rosariobus.dev/internal/appconf"
	"rosariobus.dev/internal/logging"
	"rosariobus.dev/internal/restapi"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		logging.LogError(slog.Default(), "Failed to build application", err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, srv, coreApp, api); err != nil {
		logging.LogError(coreApp.Logger, "Server exited with error", err)
		os.Exit(1)
	}
}

// sensorFlags collects repeated -sensor values of the form stop:route[:agency].
type sensorFlags []appconf.SensorConfig

func (s *sensorFlags) String() string {
	parts := make([]string, 0, len(*s))
	for _, sc := range *s {
		parts = append(parts, sc.Stop+":"+sc.Route+":"+sc.Agency)
	}
	return strings.Join(parts, ",")
}

func (s *sensorFlags) Set(value string) error {
	sc, err := ParseSensorFlag(value)
	if err != nil {
		return err
	}
	*s = append(*s, sc)
	return nil
}

// ParseSensorFlag parses "stop:route" or "stop:route:agency".
func ParseSensorFlag(value string) (appconf.SensorConfig, error) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return appconf.SensorConfig{}, fmt.Errorf("sensor %q: want stop:route[:agency]", value)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	sc := appconf.SensorConfig{Stop: parts[0], Route: parts[1]}
	if len(parts) == 3 {
		sc.Agency = parts[2]
	}
	if sc.Stop == "" || sc.Route == "" {
		return appconf.SensorConfig{}, fmt.Errorf("sensor %q: stop and route are required", value)
	}
	return sc.WithDefaults(), nil
}

// parseConfig reads flags, or the YAML file named by -f, into a Config.
func parseConfig(args []string) (appconf.Config, error) {
	fs := flag.NewFlagSet("rosariobus", flag.ContinueOnError)

	var (
		configFile string
		env        string
		sensors    sensorFlags
		cfg        appconf.Config
	)
	fs.StringVar(&configFile, "f", "", "Path to a YAML config file; other flags are ignored when set")
	fs.IntVar(&cfg.Port, "port", appconf.DefaultPort, "API server port")
	fs.StringVar(&env, "env", "development", "Environment (development|test|production)")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable debug logging")
	fs.IntVar(&cfg.RateLimit, "rate-limit", appconf.DefaultRateLimit, "Requests per second per client")
	fs.StringVar(&cfg.BaseURL, "upstream", appconf.DefaultBaseURL, "Arrival predictions endpoint")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", appconf.DefaultPollInterval, "How often each agency is polled")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", appconf.DefaultTimeout, "Upstream request timeout")
	fs.IntVar(&cfg.MaxResults, "max-results", appconf.DefaultMaxResults, "Predictions requested per route and stop")
	fs.Var(&sensors, "sensor", "Sensor to load at startup as stop:route[:agency]; repeatable")

	if err := fs.Parse(args); err != nil {
		return appconf.Config{}, err
	}

	if configFile != "" {
		fc, err := appconf.LoadFromFile(configFile)
		if err != nil {
			return appconf.Config{}, err
		}
		return fc.ToAppConfig(), nil
	}

	parsedEnv, err := appconf.ParseEnvironment(env)
	if err != nil {
		return appconf.Config{}, err
	}
	cfg.Env = parsedEnv
	cfg.Sensors = sensors
	return cfg.WithDefaults(), nil
}

// Run serves until ctx is cancelled, then drains the server and stops every
// coordinator.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	errCh := make(chan error, 1)
	go func() {
		logging.LogOperation(coreApp.Logger, "server_starting",
			slog.String("addr", srv.Addr),
			slog.String("env", coreApp.Config.Env.String()))
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		logging.LogOperation(coreApp.Logger, "server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	api.Shutdown()
	coreApp.Shutdown()
	logging.LogOperation(coreApp.Logger, "server_stopped")
	return serveErr
}
