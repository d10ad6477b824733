package models

import "time"

// EntityState is a sensor as a Home Assistant style host sees it.
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	UniqueID    string                 `json:"unique_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastUpdated string                 `json:"last_updated"`
}

// AgencyModel summarises one agency's coordinator.
type AgencyModel struct {
	Agency      string    `json:"agency"`
	Attribution string    `json:"attribution"`
	RouteStops  []string  `json:"routeStops"`
	LastUpdate  time.Time `json:"lastUpdate"`
	LastError   string    `json:"lastError,omitempty"`
}

// ConfigModel describes the running service.
type ConfigModel struct {
	Id            string `json:"id"`
	Name          string `json:"name"`
	Environment   string `json:"environment"`
	UpstreamURL   string `json:"upstreamUrl"`
	PollInterval  string `json:"pollInterval"`
	Timeout       string `json:"timeout"`
	MaxResults    int    `json:"maxResults"`
	DefaultAgency string `json:"defaultAgency"`
}
