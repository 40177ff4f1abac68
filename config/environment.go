package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
)

const (
	// EnvironmentDevelopment exposes the canonical development environment
	// identifier. It can be used by callers outside the config package when
	// environment specific behaviour is required.
	EnvironmentDevelopment = environmentDevelopment
	// EnvironmentProduction exposes the canonical production environment
	// identifier.
	EnvironmentProduction = environmentProduction
)

var environmentAliases = map[string]string{
	"dev":   environmentDevelopment,
	"local": environmentDevelopment,
	"prod":  environmentProduction,
}

const (
	developmentStreamURL = "ws://127.0.0.1:8765/stream"
	productionStreamURL  = "wss://feed.pulsefeed.io/stream"

	// bootstrapPath is the recent-alert endpoint exposed by the producer
	// next to its stream endpoint.
	bootstrapPath = "/alerts/recent"
)

// getAppEnvironment reads the application environment from APP_ENV and
// defaults to development when no value is provided.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// AppEnvironment exposes the current application environment as configured
// through the APP_ENV environment variable. The value is normalised using
// alias rules so callers can rely on a consistent identifier.
func AppEnvironment() string {
	return getAppEnvironment()
}

// ResolveStreamURL picks the stream endpoint. An explicit configuration or
// environment override always wins; otherwise development gets the local
// producer and everything else the production endpoint.
func (c *Config) ResolveStreamURL() string {
	if c.Stream.URL != "" {
		return c.Stream.URL
	}
	if getAppEnvironment() == environmentDevelopment {
		return developmentStreamURL
	}
	return productionStreamURL
}

// ResolveBootstrapURL derives the recent-alert HTTP endpoint from the
// resolved stream URL unless an explicit override is configured. Derivation
// swaps the websocket scheme for its HTTP counterpart and replaces the path.
func (c *Config) ResolveBootstrapURL(streamURL string) (string, error) {
	if c.Bootstrap.URL != "" {
		return c.Bootstrap.URL, nil
	}

	parsed, err := url.Parse(streamURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse stream url %q: %w", streamURL, err)
	}

	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("stream url %q has non-websocket scheme %q", streamURL, parsed.Scheme)
	}
	parsed.Path = bootstrapPath
	parsed.RawQuery = ""

	return parsed.String(), nil
}
