package ratelimit

import "time"

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Browser runs and model calls are the expensive ones
		{Path: "/autopilot/stream", Method: "POST", Limit: 6, Window: time.Minute, Burst: 2},
		{Path: "/tailor", Method: "POST", Limit: 20, Window: time.Hour, Burst: 3},
		{Path: "/review", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		// Calls to the field-mapping peer
		{Path: "/fields/", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},

		// Everything else uses the default limit; /health is unlimited (see matcher)
	}
}
