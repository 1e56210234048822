package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP gateway server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeRevalidator runs the background session revalidation sweep.
	ServiceModeRevalidator ServiceMode = "revalidator"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeRevalidator,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeRevalidator:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, revalidator)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// RevalidatorConfig contains session revalidation sweep configuration.
type RevalidatorConfig struct {
	// Interval is the sweep tick interval.
	Interval time.Duration `env:"REVALIDATOR_INTERVAL" envDefault:"5m"`

	// Concurrency bounds parallel backend round trips per sweep.
	Concurrency int `env:"REVALIDATOR_CONCURRENCY" envDefault:"4"`
}

// Sanitize applies guardrails to revalidator configuration values.
func (r *RevalidatorConfig) Sanitize() {
	// Enforce a floor so a typo cannot hammer the auth backend.
	if r.Interval < 30*time.Second {
		r.Interval = 30 * time.Second
	}
	if r.Concurrency < 1 {
		r.Concurrency = 1
	}
	if r.Concurrency > 64 {
		r.Concurrency = 64
	}
}
