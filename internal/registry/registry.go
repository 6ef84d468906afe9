// Package registry holds parsed per-domain configuration and validates
// it before any cycle runs.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/snapfresh/snapfresh/internal/refresh"
)

// Lookup and validation failures.
var (
	ErrNotFound = errors.New("domain not configured")
	ErrInvalid  = errors.New("invalid domain configuration")
)

// Defaults applied to optional DomainConfig fields.
const (
	defaultRequestTimeoutSeconds = 5
	defaultMaxAttempts           = 3
)

// Registry is a read-only map of domain name to configuration.
type Registry struct {
	domains map[string]refresh.DomainConfig
}

// New builds a Registry from the configured domain map. The map key
// becomes the domain name. The registry is immutable after construction.
func New(domains map[string]refresh.DomainConfig) *Registry {
	out := make(map[string]refresh.DomainConfig, len(domains))
	for name, cfg := range domains {
		cfg.Name = name
		out[name] = cfg
	}
	return &Registry{domains: out}
}

// Get returns the named domain's configuration with defaults applied,
// or ErrNotFound / ErrInvalid.
func (r *Registry) Get(name string) (refresh.DomainConfig, error) {
	cfg, ok := r.domains[name]
	if !ok {
		return refresh.DomainConfig{}, fmt.Errorf("domain %q: %w", name, ErrNotFound)
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if err := validate(cfg); err != nil {
		return refresh.DomainConfig{}, err
	}
	return cfg, nil
}

// Names returns the configured domain names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.domains))
	for name := range r.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validate(cfg refresh.DomainConfig) error {
	if cfg.SourcePath == "" {
		return fmt.Errorf("domain %q: source_path is required: %w", cfg.Name, ErrInvalid)
	}
	if cfg.OutputPath == "" {
		return fmt.Errorf("domain %q: output_path is required: %w", cfg.Name, ErrInvalid)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("domain %q: batch_size must be > 0: %w", cfg.Name, ErrInvalid)
	}
	if cfg.RefreshIntervalSeconds <= 0 {
		return fmt.Errorf("domain %q: refresh_interval_seconds must be > 0: %w", cfg.Name, ErrInvalid)
	}
	if cfg.TimestampParameter == "" {
		return fmt.Errorf("domain %q: timestamp_parameter is required: %w", cfg.Name, ErrInvalid)
	}
	if !slices.Contains(cfg.ParameterNames, cfg.TimestampParameter) {
		return fmt.Errorf("domain %q: timestamp_parameter %q not in parameter_names: %w",
			cfg.Name, cfg.TimestampParameter, ErrInvalid)
	}
	return nil
}
