package appconf

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the YAML configuration file.
type FileConfig struct {
	Port      int            `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Env       string         `yaml:"env" validate:"omitempty,oneof=development dev test production prod"`
	Verbose   bool           `yaml:"verbose"`
	RateLimit int            `yaml:"rate-limit" validate:"omitempty,min=1"`
	Upstream  UpstreamConfig `yaml:"upstream"`
	Sensors   []SensorConfig `yaml:"sensors" validate:"dive"`
}

type UpstreamConfig struct {
	BaseURL      string        `yaml:"base-url" validate:"omitempty,url"`
	PollInterval time.Duration `yaml:"poll-interval" validate:"omitempty,min=1s"`
	Timeout      time.Duration `yaml:"timeout" validate:"omitempty,min=1ms"`
	MaxResults   int           `yaml:"max-results" validate:"omitempty,min=1,max=50"`
}

var validate = validator.New()

// Validate checks the struct tags and that no sensor is listed twice.
func (fc *FileConfig) Validate() error {
	if err := validate.Struct(fc); err != nil {
		return err
	}
	seen := make(map[string]int, len(fc.Sensors))
	for i, s := range fc.Sensors {
		s = s.WithDefaults()
		id := s.Agency + "_" + s.Stop + "_" + s.Route
		if j, ok := seen[id]; ok {
			return fmt.Errorf("sensors[%d] duplicates sensors[%d] (%s)", i, j, id)
		}
		seen[id] = i
	}
	return nil
}

// LoadFromFile reads, parses and validates a YAML configuration file.
func LoadFromFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &fc, nil
}

// ToAppConfig converts the file form into a Config with defaults applied.
func (fc *FileConfig) ToAppConfig() Config {
	env, _ := ParseEnvironment(fc.Env)

	sensors := make([]SensorConfig, 0, len(fc.Sensors))
	for _, s := range fc.Sensors {
		sensors = append(sensors, s.WithDefaults())
	}

	return Config{
		Port:           fc.Port,
		Env:            env,
		Verbose:        fc.Verbose,
		RateLimit:      fc.RateLimit,
		BaseURL:        fc.Upstream.BaseURL,
		PollInterval:   fc.Upstream.PollInterval,
		RequestTimeout: fc.Upstream.Timeout,
		MaxResults:     fc.Upstream.MaxResults,
		Sensors:        sensors,
	}.WithDefaults()
}
