// Package appconf holds the runtime configuration of the service and loads it
// from YAML files.
package appconf

import (
	"fmt"
	"strings"
	"time"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// ParseEnvironment accepts the long and short spellings used in flags and files.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "development", "dev":
		return Development, nil
	case "test":
		return Test, nil
	case "production", "prod":
		return Production, nil
	}
	return Development, fmt.Errorf("unknown environment %q", s)
}

const (
	DefaultPort         = 4000
	DefaultRateLimit    = 100
	DefaultAgency       = "MOVI"
	DefaultBaseURL      = "https://ws.rosario.gob.ar/ubicaciones/public/cuandollega"
	DefaultPollInterval = time.Minute
	DefaultTimeout      = 10 * time.Second
	DefaultMaxResults   = 2
)

// Config is what the application is built from.
type Config struct {
	Port           int
	Env            Environment
	Verbose        bool
	RateLimit      int // requests per second per client
	BaseURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	MaxResults     int
	Sensors        []SensorConfig
}

// SensorConfig is one configured (agency, stop, route) entry.
type SensorConfig struct {
	Agency string `yaml:"agency" json:"agency"`
	Route  string `yaml:"route" json:"route" validate:"required"`
	Stop   string `yaml:"stop" json:"stop" validate:"required"`
	Name   string `yaml:"name" json:"name"`
}

// WithDefaults fills the agency when it was left empty.
func (s SensorConfig) WithDefaults() SensorConfig {
	s.Agency = strings.TrimSpace(s.Agency)
	if s.Agency == "" {
		s.Agency = DefaultAgency
	}
	return s
}

// WithDefaults returns c with every zero upstream setting replaced by its default.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultTimeout
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	return c
}
